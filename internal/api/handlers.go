package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/goodtune/timekeeper/internal/storage"
	"github.com/goodtune/timekeeper/internal/usage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 16

// Tracker is the part of usage.Tracker the API serves.
type Tracker interface {
	Snapshot() usage.Snapshot
	RecordActivity(source string)
	SetGoal(ctx context.Context, hours, minutes int) (usage.GoalDecision, error)
	History(ctx context.Context) ([]usage.HistoryEntry, error)
	HistoryFor(ctx context.Context, day usage.Day) (usage.HistoryEntry, error)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// Handler handles tracker API requests.
type Handler struct {
	tracker Tracker
	logger  zerolog.Logger
}

// NewHandler creates a new tracker handler.
func NewHandler(tracker Tracker, logger zerolog.Logger) *Handler {
	return &Handler{
		tracker: tracker,
		logger:  logger.With().Str("handler", "tracker").Logger(),
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}

// Status returns the current snapshot.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStatusResponse(h.tracker.Snapshot()))
}

// Activity records an activity signal.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	var req ActivityRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	h.tracker.RecordActivity(req.Source)
	w.WriteHeader(http.StatusNoContent)
}

// SetGoal validates, clamps and stores a new goal.
func (h *Handler) SetGoal(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Hours == nil || req.Minutes == nil {
		writeError(w, http.StatusBadRequest, "Both hours and minutes are required")
		return
	}

	decision, err := h.tracker.SetGoal(r.Context(), *req.Hours, *req.Minutes)
	if err != nil {
		var verr *usage.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "Enter a valid time (0-23 hours, 0-59 minutes)")
			return
		}
		h.logger.Error().Err(err).Msg("Failed to set goal")
		writeError(w, http.StatusInternalServerError, "Failed to set goal")
		return
	}

	writeJSON(w, http.StatusOK, newGoalResponse(decision))
}

// History returns every finalized day, most recent first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.tracker.History(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list history")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}

	resp := HistoryResponse{Entries: make([]HistoryEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, newHistoryEntryResponse(e))
	}
	resp.Count = len(resp.Entries)

	writeJSON(w, http.StatusOK, resp)
}

// HistoryDay returns the finalized usage of one day.
func (h *Handler) HistoryDay(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	day, err := usage.ParseDay(vars["day"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
		return
	}

	entry, err := h.tracker.HistoryFor(r.Context(), day)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No usage recorded for "+day.String())
			return
		}
		h.logger.Error().Err(err).Str("day", day.String()).Msg("Failed to get history")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}

	writeJSON(w, http.StatusOK, newHistoryEntryResponse(entry))
}
