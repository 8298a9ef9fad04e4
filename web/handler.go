package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"ward/session"
)

// Handler serves the session HTTP API: starting encounters and reading back
// durable history so observers can catch up after joining.
type Handler struct {
	store  session.Store
	orch   *session.Orchestrator
	logger *log.Logger
}

func NewHandler(store session.Store, orch *session.Orchestrator, logger *log.Logger) *Handler {
	return &Handler{store: store, orch: orch, logger: logger}
}

// Routes mounts the API onto a chi router alongside the websocket endpoint.
func Routes(r chi.Router, h *Handler, wsHandler http.Handler) {
	r.Get("/healthz", h.handleHealth)
	r.Post("/sessions", h.handleStartSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Get("/sessions/{sessionID}/transcript", h.handleGetTranscript)
	r.Get("/sessions/{sessionID}/suggestions", h.handleGetSuggestions)
	r.Handle("/ws", wsHandler)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startSessionRequest struct {
	ClinicianID  string                  `json:"clinician_id"`
	PatientID    string                  `json:"patient_id"`
	AudioEnabled bool                    `json:"audio_enabled"`
	SpeakerRoles map[string]session.Role `json:"speaker_roles"`
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sess, err := h.orch.StartSession(
		r.Context(), req.ClinicianID, req.PatientID, req.AudioEnabled, req.SpeakerRoles,
	)
	if err != nil {
		if errors.Is(err, session.ErrClinicianRequired) {
			writeError(w, http.StatusBadRequest, "clinician_id is required")
			return
		}
		h.logger.Error("start session", "error", err)
		writeError(w, http.StatusInternalServerError, "could not start session")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.notFoundOrError(w, err, "get session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	lines, err := h.store.ListTranscriptLines(r.Context(), sessionID)
	if err != nil {
		h.notFoundOrError(w, err, "list transcript")
		return
	}
	if lines == nil {
		lines = []session.TranscriptLine{}
	}
	writeJSON(w, http.StatusOK, lines)
}

func (h *Handler) handleGetSuggestions(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	suggestions, err := h.store.ListSuggestions(r.Context(), sessionID)
	if err != nil {
		h.notFoundOrError(w, err, "list suggestions")
		return
	}
	if suggestions == nil {
		suggestions = []session.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (h *Handler) notFoundOrError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	h.logger.Error(op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
