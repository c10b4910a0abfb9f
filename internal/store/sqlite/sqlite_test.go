package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepgate/deepgate/internal/store"
)

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestProvider_CreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	created, err := db.CreateProvider(ctx, store.Provider{
		Name: "openai-main", APIKey: "sk-test", BaseURL: "https://api.openai.com",
		RequestPath: "/v1/chat/completions", Format: store.FormatOpenAI, Valid: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := db.GetProvider(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "openai-main", got.Name)
	assert.True(t, got.Valid)

	got.Valid = false
	updated, err := db.UpdateProvider(ctx, *got)
	require.NoError(t, err)
	assert.False(t, updated.Valid)

	require.NoError(t, db.DeleteProvider(ctx, created.ID))
	_, err = db.GetProvider(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProvider_NameNamespaceSharedWithModelsAndComposites(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.CreateProvider(ctx, store.Provider{Name: "shared-name", Format: store.FormatOpenAI})
	require.NoError(t, err)

	provider, err := db.CreateProvider(ctx, store.Provider{Name: "other-provider", Format: store.FormatOpenAI})
	require.NoError(t, err)

	_, err = db.CreateModel(ctx, store.Model{Name: "shared-name", ProviderID: provider.ID, Type: store.ModelTypeGeneral, Format: store.FormatOpenAI})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestDeleteProvider_ReferencedByModelFails(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	provider, err := db.CreateProvider(ctx, store.Provider{Name: "p1", Format: store.FormatOpenAI})
	require.NoError(t, err)
	_, err = db.CreateModel(ctx, store.Model{Name: "m1", ProviderID: provider.ID, Type: store.ModelTypeGeneral, Format: store.FormatOpenAI})
	require.NoError(t, err)

	err = db.DeleteProvider(ctx, provider.ID)
	assert.ErrorIs(t, err, store.ErrReferenced)

	// no mutation: provider still exists
	_, err = db.GetProvider(ctx, provider.ID)
	assert.NoError(t, err)
}

func TestDeleteModel_ReferencedByCompositeFails(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	provider, err := db.CreateProvider(ctx, store.Provider{Name: "p1", Format: store.FormatReasoner})
	require.NoError(t, err)
	reasoner, err := db.CreateModel(ctx, store.Model{Name: "r1", ProviderID: provider.ID, Type: store.ModelTypeReasoner, Format: store.FormatReasoner})
	require.NoError(t, err)
	general, err := db.CreateModel(ctx, store.Model{Name: "g1", ProviderID: provider.ID, Type: store.ModelTypeGeneral, Format: store.FormatReasoner})
	require.NoError(t, err)
	_, err = db.CreateComposite(ctx, store.Composite{Name: "deep1", ReasonerModelID: reasoner.ID, GeneralModelID: general.ID, Valid: true})
	require.NoError(t, err)

	err = db.DeleteModel(ctx, reasoner.ID)
	assert.ErrorIs(t, err, store.ErrReferenced)

	err = db.DeleteModel(ctx, general.ID)
	assert.ErrorIs(t, err, store.ErrReferenced)
}

func TestComposite_GetByNameAndDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	provider, err := db.CreateProvider(ctx, store.Provider{Name: "p1", Format: store.FormatReasoner})
	require.NoError(t, err)
	reasoner, err := db.CreateModel(ctx, store.Model{Name: "r1", ProviderID: provider.ID, Type: store.ModelTypeReasoner, Format: store.FormatReasoner})
	require.NoError(t, err)
	general, err := db.CreateModel(ctx, store.Model{Name: "g1", ProviderID: provider.ID, Type: store.ModelTypeGeneral, Format: store.FormatReasoner})
	require.NoError(t, err)

	created, err := db.CreateComposite(ctx, store.Composite{Name: "deep1", ReasonerModelID: reasoner.ID, GeneralModelID: general.ID, Valid: true})
	require.NoError(t, err)

	got, err := db.GetCompositeByName(ctx, "deep1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	require.NoError(t, db.DeleteComposite(ctx, created.ID))
	_, err = db.GetComposite(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetting_PutGetListUpsert(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.PutSetting(ctx, store.StringSetting(store.SettingLogLevel, "info")))
	got, err := db.GetSetting(ctx, store.SettingLogLevel)
	require.NoError(t, err)
	assert.Equal(t, "info", got.Value)

	require.NoError(t, db.PutSetting(ctx, store.StringSetting(store.SettingLogLevel, "debug")))
	got, err = db.GetSetting(ctx, store.SettingLogLevel)
	require.NoError(t, err)
	assert.Equal(t, "debug", got.Value)

	all, err := db.ListSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetSetting_UnknownKeyReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.GetSetting(ctx, "nonexistent")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateProvider_RenameToOwnNameSucceeds(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	created, err := db.CreateProvider(ctx, store.Provider{Name: "p1", Format: store.FormatOpenAI})
	require.NoError(t, err)

	created.BaseURL = "https://updated.example.com"
	updated, err := db.UpdateProvider(ctx, *created)
	require.NoError(t, err)
	assert.Equal(t, "https://updated.example.com", updated.BaseURL)
}
