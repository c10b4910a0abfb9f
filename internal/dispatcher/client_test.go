package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepgate/deepgate/internal/store"
)

func TestBuildClient_DisabledProviderFails(t *testing.T) {
	repo := newFakeRepo()
	d := New(repo, DefaultPoolSettings)

	_, err := d.buildClient(context.Background(), store.Provider{Name: "x", Valid: false})
	require.Error(t, err)
}

func TestBuildClient_UnknownFormatFails(t *testing.T) {
	repo := newFakeRepo()
	d := New(repo, DefaultPoolSettings)

	_, err := d.buildClient(context.Background(), store.Provider{Name: "x", Valid: true, Format: "nonsense"})
	require.Error(t, err)
}

func TestBuildClient_ConstructsPerFormat(t *testing.T) {
	repo := newFakeRepo()
	d := New(repo, DefaultPoolSettings)

	for _, format := range []store.ProviderFormat{store.FormatReasoner, store.FormatAnthropic, store.FormatOpenAI} {
		client, err := d.buildClient(context.Background(), store.Provider{
			Name: "x", Valid: true, Format: format, BaseURL: "https://api.example.com", RequestPath: "/v1/chat",
		})
		require.NoError(t, err)
		assert.NotNil(t, client)
	}
}

func TestBuildClient_ProxyDisabledNeverResolvesProxySetting(t *testing.T) {
	repo := newFakeRepo()
	repo.settings[store.SettingProxyAddress] = store.Setting{Key: store.SettingProxyAddress, Value: "proxy.internal:8080"}
	d := New(repo, DefaultPoolSettings)

	client, err := d.buildClient(context.Background(), store.Provider{
		Name: "x", Valid: true, Format: store.FormatOpenAI, ProxyEnabled: false,
		BaseURL: "https://api.example.com",
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://api.example.com/v1/chat", joinURL("https://api.example.com", "/v1/chat"))
	assert.Equal(t, "https://api.example.com/v1/chat", joinURL("https://api.example.com/", "v1/chat"))
	assert.Equal(t, "https://api.example.com", joinURL("https://api.example.com", ""))
}
