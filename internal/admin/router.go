package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/deepgate/deepgate/internal/config"
	"github.com/deepgate/deepgate/internal/dispatcher"
	"github.com/deepgate/deepgate/internal/store"
)

// Admin is the CRUD surface for providers/models/composites/system
// settings, cookie-session gated. It shares the same Repository the public
// dispatcher reads from, and pokes the dispatcher's pool settings on
// system_settings writes that affect the shared transport.
type Admin struct {
	router chi.Router
	cfg    *config.Config
	repo   store.Repository
	disp   *dispatcher.Dispatcher
}

func New(cfg *config.Config, repo store.Repository, disp *dispatcher.Dispatcher) *Admin {
	a := &Admin{cfg: cfg, repo: repo, disp: disp}
	a.routes()
	return a
}

func (a *Admin) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.Auth.AdminCORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}))

	r.Post("/admin/login", a.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(a.requireSessionMiddleware)

		r.Get("/admin/providers", a.handleListProviders)
		r.Post("/admin/providers", a.handleCreateProvider)
		r.Put("/admin/providers/{id}", a.handleUpdateProvider)
		r.Delete("/admin/providers/{id}", a.handleDeleteProvider)

		r.Get("/admin/models", a.handleListModelRecords)
		r.Post("/admin/models", a.handleCreateModel)
		r.Put("/admin/models/{id}", a.handleUpdateModel)
		r.Delete("/admin/models/{id}", a.handleDeleteModel)

		r.Get("/admin/composites", a.handleListCompositeRecords)
		r.Post("/admin/composites", a.handleCreateComposite)
		r.Put("/admin/composites/{id}", a.handleUpdateComposite)
		r.Delete("/admin/composites/{id}", a.handleDeleteComposite)

		r.Get("/admin/settings", a.handleListSettings)
		r.Put("/admin/settings/{key}", a.handlePutSetting)
	})

	a.router = r
}

func (a *Admin) requireSessionMiddleware(next http.Handler) http.Handler {
	return a.requireSession(next.ServeHTTP)
}

func (a *Admin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
