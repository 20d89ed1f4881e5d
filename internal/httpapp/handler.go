// Package httpapp serves the read-only status endpoints of a running
// pipeline.
package httpapp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/domain"
	"github.com/cesargomez89/songpipe/internal/integrity"
	"github.com/cesargomez89/songpipe/internal/logger"
	"github.com/cesargomez89/songpipe/internal/pipeline"
	"github.com/cesargomez89/songpipe/internal/store"
)

// CycleSource reports the latest orchestrator cycle. *pipeline.Orchestrator
// implements it.
type CycleSource interface {
	LastCycle() *pipeline.Cycle
}

type Handler struct {
	DB      *store.DB
	Checker *integrity.Checker
	Cycles  CycleSource
	Logger  *logger.Logger
}

func NewHandler(db *store.DB, checker *integrity.Checker, cycles CycleSource, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		DB:      db,
		Checker: checker,
		Cycles:  cycles,
		Logger:  log.WithComponent("http"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Get("/stats", h.Stats)
	r.Get("/report", h.Report)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.Healthy(r.Context()); err != nil {
		h.Logger.Warn("Health check failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statsResponse struct {
	Stages    map[domain.Stage]int `json:"stages"`
	LastCycle *pipeline.Cycle      `json:"last_cycle,omitempty"`
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.DB.StageCounts(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := statsResponse{Stages: make(map[domain.Stage]int, len(domain.Stages()))}
	for _, s := range domain.Stages() {
		resp.Stages[s] = counts[s]
	}
	if h.Cycles != nil {
		resp.LastCycle = h.Cycles.LastCycle()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.Checker.Check(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", constants.MimeTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("Failed to write response", "error", err)
	}
}
