package admin

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/deepgate/deepgate/internal/dispatcher"
	"github.com/deepgate/deepgate/internal/store"
)

// ---------------------------------------------------------------------------
// Providers
// ---------------------------------------------------------------------------

func (a *Admin) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := a.repo.ListProviders(r.Context())
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, providers)
}

func (a *Admin) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	var p store.Provider
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, 400, "invalid request body")
		return
	}
	created, err := a.repo.CreateProvider(r.Context(), p)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 201, created)
}

func (a *Admin) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	var p store.Provider
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, 400, "invalid request body")
		return
	}
	p.ID = chi.URLParam(r, "id")
	updated, err := a.repo.UpdateProvider(r.Context(), p)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, updated)
}

func (a *Admin) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	if err := a.repo.DeleteProvider(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, map[string]bool{"deleted": true})
}

// ---------------------------------------------------------------------------
// Models
// ---------------------------------------------------------------------------

func (a *Admin) handleListModelRecords(w http.ResponseWriter, r *http.Request) {
	models, err := a.repo.ListModels(r.Context())
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, models)
}

func (a *Admin) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	var m store.Model
	if err := decodeJSON(r, &m); err != nil {
		writeError(w, 400, "invalid request body")
		return
	}
	created, err := a.repo.CreateModel(r.Context(), m)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 201, created)
}

func (a *Admin) handleUpdateModel(w http.ResponseWriter, r *http.Request) {
	var m store.Model
	if err := decodeJSON(r, &m); err != nil {
		writeError(w, 400, "invalid request body")
		return
	}
	m.ID = chi.URLParam(r, "id")
	updated, err := a.repo.UpdateModel(r.Context(), m)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, updated)
}

func (a *Admin) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	if err := a.repo.DeleteModel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, map[string]bool{"deleted": true})
}

// ---------------------------------------------------------------------------
// Composite models
// ---------------------------------------------------------------------------

func (a *Admin) handleListCompositeRecords(w http.ResponseWriter, r *http.Request) {
	composites, err := a.repo.ListComposites(r.Context())
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, composites)
}

func (a *Admin) handleCreateComposite(w http.ResponseWriter, r *http.Request) {
	var c store.Composite
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, 400, "invalid request body")
		return
	}
	created, err := a.repo.CreateComposite(r.Context(), c)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 201, created)
}

func (a *Admin) handleUpdateComposite(w http.ResponseWriter, r *http.Request) {
	var c store.Composite
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, 400, "invalid request body")
		return
	}
	c.ID = chi.URLParam(r, "id")
	updated, err := a.repo.UpdateComposite(r.Context(), c)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, updated)
}

func (a *Admin) handleDeleteComposite(w http.ResponseWriter, r *http.Request) {
	if err := a.repo.DeleteComposite(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, map[string]bool{"deleted": true})
}

// ---------------------------------------------------------------------------
// System settings
// ---------------------------------------------------------------------------

func (a *Admin) handleListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.repo.ListSettings(r.Context())
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, settings)
}

// handlePutSetting upserts one setting and, when it's one of the TCP pool
// knobs, rebuilds the dispatcher's shared transport so the change takes
// effect on the next dispatched request without a restart.
func (a *Admin) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	var s store.Setting
	if err := decodeJSON(r, &s); err != nil {
		writeError(w, 400, "invalid request body")
		return
	}
	s.Key = chi.URLParam(r, "key")

	if err := a.repo.PutSetting(r.Context(), s); err != nil {
		writeStoreError(w, err)
		return
	}

	if isPoolSetting(s.Key) {
		a.refreshPoolSettings(r)
	}

	writeJSON(w, 200, map[string]bool{"ok": true})
}

func isPoolSetting(key string) bool {
	switch key {
	case store.SettingTCPConnectorLimit, store.SettingTCPConnectorLimitPerHost, store.SettingTCPKeepaliveTimeout:
		return true
	default:
		return false
	}
}

func (a *Admin) refreshPoolSettings(r *http.Request) {
	pool := dispatcher.DefaultPoolSettings

	if s, err := a.repo.GetSetting(r.Context(), store.SettingTCPConnectorLimit); err == nil {
		if v, err := s.Int(); err == nil {
			pool.Limit = v
		}
	}
	if s, err := a.repo.GetSetting(r.Context(), store.SettingTCPConnectorLimitPerHost); err == nil {
		if v, err := s.Int(); err == nil {
			pool.LimitPerHost = v
		}
	}
	if s, err := a.repo.GetSetting(r.Context(), store.SettingTCPKeepaliveTimeout); err == nil {
		if v, err := s.Int(); err == nil {
			pool.KeepaliveTimeout = time.Duration(v) * time.Second
		}
	}

	a.disp.RefreshTransport(pool)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch err {
	case store.ErrNotFound:
		writeError(w, 404, err.Error())
	case store.ErrConflict, store.ErrReferenced:
		writeError(w, 409, err.Error())
	default:
		writeError(w, 500, err.Error())
	}
}
