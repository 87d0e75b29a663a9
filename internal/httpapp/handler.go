// Package httpapp exposes the pipeline and inference engine over HTTP.
package httpapp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emoteam/emopipe/internal/blob"
	"github.com/emoteam/emopipe/internal/domain"
	"github.com/emoteam/emopipe/internal/inference"
	"github.com/emoteam/emopipe/internal/logger"
	"github.com/emoteam/emopipe/internal/pipeline"
	"github.com/emoteam/emopipe/internal/store"
)

type Handler struct {
	Orchestrator *pipeline.Orchestrator
	Engine       *inference.Engine
	Store        blob.Store
	DB           *store.DB
	Logger       *logger.Logger
}

func NewHandler(orch *pipeline.Orchestrator, engine *inference.Engine, blobStore blob.Store, db *store.DB, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Orchestrator: orch,
		Engine:       engine,
		Store:        blobStore,
		DB:           db,
		Logger:       log.WithComponent("http"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", h.Ingest)
		r.Post("/predict", h.Predict)
		r.Put("/tracks/{id}/eda", h.PutEDA)
		r.Get("/tracks/{id}/status", h.Status)
		r.Get("/tracks/{id}/artifacts", h.Artifacts)
		r.Get("/tracks/{id}/artifacts/{kind}", h.ArtifactData)
		r.Get("/tracks/{id}", h.Track)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the error taxonomy onto HTTP status codes: client
// errors for bad input and missing modalities, 404 for unknown
// namespaces, 500 for everything the service could not attribute.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInput), errors.Is(err, domain.ErrMissingModality):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		h.Logger.Error("Request failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
