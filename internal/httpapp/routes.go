package httpapp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emoteam/emopipe/internal/biosignal"
	"github.com/emoteam/emopipe/internal/domain"
	"github.com/emoteam/emopipe/internal/inference"
)

type ingestRequest struct {
	TrackID   string `json:"track_id"`
	SourceURL string `json:"source_url"`
}

type predictRequest struct {
	TrackID string `json:"track_id"`
	UserID  string `json:"user_id"`
}

type edaRequest struct {
	UserID  string    `json:"user_id"`
	Channel string    `json:"channel,omitempty"`
	Samples []float64 `json:"samples"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ingest drives the full pipeline for one track. Partial stage failure is
// still a 200 with the status map; only structural problems error.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.InputError("body", "invalid JSON"))
		return
	}
	if req.TrackID == "" {
		h.writeError(w, domain.InputError("track_id", "required"))
		return
	}
	if req.SourceURL == "" {
		h.writeError(w, domain.InputError("source_url", "required"))
		return
	}

	status, err := h.Orchestrator.Ingest(r.Context(), req.TrackID, req.SourceURL)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.InputError("body", "invalid JSON"))
		return
	}
	if req.TrackID == "" {
		h.writeError(w, domain.InputError("track_id", "required"))
		return
	}
	if req.UserID == "" {
		h.writeError(w, domain.InputError("user_id", "required"))
		return
	}

	result, err := h.Engine.Predict(r.Context(), req.TrackID, req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// PutEDA stores one biosignal reading for a (track, user) pair. Writes
// are idempotent: a repeated upload of the same key reports the stored
// outcome rather than overwriting.
func (h *Handler) PutEDA(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "id")

	var req edaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.InputError("body", "invalid JSON"))
		return
	}
	if req.UserID == "" {
		h.writeError(w, domain.InputError("user_id", "required"))
		return
	}

	payload, err := biosignal.EncodePayload(req.Samples)
	if err != nil {
		h.writeError(w, err)
		return
	}

	userKey := inference.ChannelUser(req.UserID, req.Channel)
	outcome, err := h.Store.Put(trackID, domain.KindEDA, userKey, payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"track_id": domain.NormalizeTrackID(trackID),
		"outcome":  outcome.String(),
	})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.DB.GetStatus(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) Artifacts(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.Store.List(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, artifacts)
}

// ArtifactData serves one stored artifact's raw payload with the content
// type of its kind. EDA readings are user-scoped and need a user_id query
// parameter.
func (h *Handler) ArtifactData(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "id")
	kind := domain.ArtifactKind(chi.URLParam(r, "kind"))
	if kind.Ext() == "" {
		h.writeError(w, domain.InputError("kind", "unknown artifact kind"))
		return
	}

	var userKey string
	if kind.UserScoped() {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			h.writeError(w, domain.InputError("user_id", "required"))
			return
		}
		userKey = inference.ChannelUser(userID, r.URL.Query().Get("channel"))
	}

	data, err := h.Store.Get(trackID, kind, userKey)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", kind.MIME())
	if _, err := w.Write(data); err != nil {
		h.Logger.Error("Failed to write artifact payload", "error", err)
	}
}

func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	track, err := h.DB.GetTrack(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, track)
}
