// Package admin is the thin CRUD surface for providers/models/composites/
// system settings, sitting behind a cookie-based JWT session. Static asset
// serving is out of scope here; this package is API-only.
package admin

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/deepgate/deepgate/internal/store"
)

const sessionCookieName = "auth_token"

// sessionClaims binds a session to the gateway's own API key: rotating the
// key invalidates every outstanding admin session, mirroring the original
// gateway's generate_token/verify_token (api_key_hash claim).
type sessionClaims struct {
	APIKeyHash string `json:"api_key_hash,omitempty"`
	jwt.RegisteredClaims
}

func apiKeyHash(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

func (a *Admin) currentAPIKeyHash(r *http.Request) string {
	setting, err := a.repo.GetSetting(r.Context(), store.SettingAPIKey)
	if err != nil || setting == nil {
		return ""
	}
	return apiKeyHash(setting.Value)
}

func (a *Admin) issueToken(r *http.Request) (string, error) {
	claims := sessionClaims{
		APIKeyHash: a.currentAPIKeyHash(r),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.cfg.Auth.JWTAccessTokenExpire)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.Auth.JWTSecretKey))
}

func (a *Admin) verifyToken(r *http.Request, raw string) bool {
	token, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		return []byte(a.cfg.Auth.JWTSecretKey), nil
	})
	if err != nil || !token.Valid {
		return false
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok {
		return false
	}
	if claims.APIKeyHash != "" && claims.APIKeyHash != a.currentAPIKeyHash(r) {
		return false
	}
	return true
}

// handleLogin exchanges the gateway's own API key for a session cookie.
func (a *Admin) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, 400, "invalid request body")
		return
	}

	setting, err := a.repo.GetSetting(r.Context(), store.SettingAPIKey)
	configured := err == nil && setting != nil && setting.Value != ""
	if configured && body.APIKey != setting.Value {
		writeError(w, 401, "invalid API key")
		return
	}

	token, err := a.issueToken(r)
	if err != nil {
		writeError(w, 500, "could not issue session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(a.cfg.Auth.JWTAccessTokenExpire),
	})
	writeJSON(w, 200, map[string]bool{"ok": true})
}

// requireSession gates every admin CRUD route behind a valid cookie.
func (a *Admin) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || !a.verifyToken(r, cookie.Value) {
			writeError(w, 401, "missing or invalid session")
			return
		}
		next(w, r)
	}
}
