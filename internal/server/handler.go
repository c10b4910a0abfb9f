package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/deepgate/deepgate/internal/apierr"
	"github.com/deepgate/deepgate/internal/dispatcher"
	"github.com/deepgate/deepgate/internal/store"
	"github.com/deepgate/deepgate/internal/stream"
)

// handleHealth responds with a simple JSON status indicating the server is
// alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// withAuth checks the gateway's own bearer token (the persisted api_key
// system setting) before delegating to next. Matches spec.md's public
// surface: every /v1/* route sits behind the gateway's own API key, not the
// upstream providers'.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setting, err := s.repo.GetSetting(r.Context(), store.SettingAPIKey)
		if err != nil && err != store.ErrNotFound {
			writeError(w, apierr.Wrap(500, err))
			return
		}
		if setting == nil || setting.Value == "" {
			// No gateway key configured: treat as open, matching the
			// original's default of an empty api_key meaning no auth.
			next(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header || token != setting.Value {
			writeError(w, apierr.New(401, "invalid or missing API key"))
			return
		}
		next(w, r)
	}
}

// handleListModels implements GET /v1/models, reproducing the original
// gateway's permission-object payload shape so existing OpenAI-format
// clients that inspect the permissions array don't choke.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.repo.ListModels(r.Context())
	if err != nil {
		writeError(w, apierr.Wrap(500, err))
		return
	}
	composites, err := s.repo.ListComposites(r.Context())
	if err != nil {
		writeError(w, apierr.Wrap(500, err))
		return
	}

	data := make([]modelListing, 0, len(models)+len(composites))
	for _, m := range models {
		if m.Valid {
			data = append(data, newModelListing(m.Name))
		}
	}
	for _, c := range composites {
		if c.Valid {
			data = append(data, newModelListing(c.Name))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
	})
}

type modelListing struct {
	ID         string             `json:"id"`
	Object     string             `json:"object"`
	Created    int64              `json:"created"`
	OwnedBy    string             `json:"owned_by"`
	Permission []modelPermission  `json:"permission"`
	Root       string             `json:"root"`
	Parent     *string            `json:"parent"`
}

type modelPermission struct {
	ID                 string  `json:"id"`
	Object             string  `json:"object"`
	Created            int64   `json:"created"`
	AllowCreateEngine  bool    `json:"allow_create_engine"`
	AllowSampling      bool    `json:"allow_sampling"`
	AllowLogprobs      bool    `json:"allow_logprobs"`
	AllowSearchIndices bool    `json:"allow_search_indices"`
	AllowView          bool    `json:"allow_view"`
	AllowFineTuning    bool    `json:"allow_fine_tuning"`
	Organization       string  `json:"organization"`
	Group              *string `json:"group"`
	IsBlocking         bool    `json:"is_blocking"`
}

// modelListingCreated matches the original gateway's fixed timestamp for
// every listed model (not the record's own creation time — the upstream
// source never tracked that).
const modelListingCreated = 1740268800

func newModelListing(name string) modelListing {
	return modelListing{
		ID:      name,
		Object:  "model",
		Created: modelListingCreated,
		OwnedBy: "deepgate",
		Permission: []modelPermission{{
			ID:                 "modelperm-" + name,
			Object:             "model_permission",
			Created:            modelListingCreated,
			AllowCreateEngine:  false,
			AllowSampling:      true,
			AllowLogprobs:      true,
			AllowSearchIndices: false,
			AllowView:          true,
			AllowFineTuning:    false,
			Organization:       "*",
			IsBlocking:         false,
		}},
		Root: "deepgate",
	}
}

// handleChatCompletions handles POST /v1/chat/completions: parse, dispatch,
// then branch on the result's Kind to pick a streaming or single-shot
// writer.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierr.New(400, "invalid request body: "+err.Error()))
		return
	}

	req, err := dispatcher.ParseRequest(body)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.disp.ProcessRequest(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	var writeErr error
	switch result.Kind {
	case dispatcher.KindStream:
		writeErr = stream.Write(w, result.Stream)
	case dispatcher.KindOriginStream:
		writeErr = stream.WriteOriginal(w, result.OriginStream)
	case dispatcher.KindFinal:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result.Final)
	case dispatcher.KindOriginFinal:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result.OriginFinal)
	}
	if writeErr != nil {
		log.Printf("stream write error: %v", writeErr)
	}

	if s.metrics != nil {
		outcome := "ok"
		if writeErr != nil {
			outcome = "error"
		}
		s.metrics.ObserveRequest(result.Format, result.Path, outcome, time.Since(start))
	}
}

// handleCancel handles POST /v1/cancel {"chat_id": "..."}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ChatID == "" {
		writeError(w, apierr.New(400, "chat_id is required"))
		return
	}

	if !s.disp.CancelRequest(body.ChatID) {
		writeError(w, apierr.New(404, "unknown chat_id"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"cancelled": true})
}

// writeError translates any error into the gateway's uniform
// {"error", "detail"} JSON shape (spec.md §7), defaulting to 500 for errors
// that never went through apierr.
func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*apierr.ClientAPIError)
	if !ok {
		apiErr = apierr.Wrap(500, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	json.NewEncoder(w).Encode(map[string]any{
		"error":  apiErr.Err,
		"detail": nullableString(apiErr.Detail),
	})
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
