package admin

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepgate/deepgate/internal/config"
	"github.com/deepgate/deepgate/internal/store"
)

func testAdmin(repo *fakeRepo) *Admin {
	cfg := &config.Config{}
	cfg.Auth.JWTSecretKey = "test-secret"
	cfg.Auth.JWTAccessTokenExpire = time.Hour
	return New(cfg, repo, nil)
}

func TestIssueAndVerifyToken_RoundTrips(t *testing.T) {
	repo := newFakeRepo()
	a := testAdmin(repo)

	r := httptest.NewRequest("GET", "/admin/providers", nil)
	token, err := a.issueToken(r)
	require.NoError(t, err)
	assert.True(t, a.verifyToken(r, token))
}

func TestVerifyToken_RejectsGarbage(t *testing.T) {
	repo := newFakeRepo()
	a := testAdmin(repo)

	r := httptest.NewRequest("GET", "/admin/providers", nil)
	assert.False(t, a.verifyToken(r, "not-a-jwt"))
}

func TestVerifyToken_InvalidatedByAPIKeyRotation(t *testing.T) {
	repo := newFakeRepo()
	repo.settings[store.SettingAPIKey] = store.Setting{Key: store.SettingAPIKey, Value: "old-key", Type: store.SettingString}
	a := testAdmin(repo)

	r := httptest.NewRequest("GET", "/admin/providers", nil)
	token, err := a.issueToken(r)
	require.NoError(t, err)
	assert.True(t, a.verifyToken(r, token))

	repo.settings[store.SettingAPIKey] = store.Setting{Key: store.SettingAPIKey, Value: "new-key", Type: store.SettingString}
	assert.False(t, a.verifyToken(r, token))
}

func TestHandleLogin_WrongKeyRejected(t *testing.T) {
	repo := newFakeRepo()
	repo.settings[store.SettingAPIKey] = store.Setting{Key: store.SettingAPIKey, Value: "secret", Type: store.SettingString}
	a := testAdmin(repo)

	body := `{"api_key":"wrong"}`
	req := httptest.NewRequest("POST", "/admin/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	a.ServeHTTP(w, req)

	assert.Equal(t, 401, w.Code)
}

func TestHandleLogin_CorrectKeySetsCookie(t *testing.T) {
	repo := newFakeRepo()
	repo.settings[store.SettingAPIKey] = store.Setting{Key: store.SettingAPIKey, Value: "secret", Type: store.SettingString}
	a := testAdmin(repo)

	body := `{"api_key":"secret"}`
	req := httptest.NewRequest("POST", "/admin/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	a.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookieName, cookies[0].Name)
}

func TestRequireSession_RejectsMissingCookie(t *testing.T) {
	repo := newFakeRepo()
	a := testAdmin(repo)

	req := httptest.NewRequest("GET", "/admin/providers", nil)
	w := httptest.NewRecorder()
	a.ServeHTTP(w, req)

	assert.Equal(t, 401, w.Code)
}
