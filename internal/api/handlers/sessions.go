package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/solofill/internal/stats"
	"github.com/wonny/solofill/pkg/logger"
)

// StatsCache is the read side of the statistics publisher
type StatsCache interface {
	Get(ctx context.Context, sessionID string) (*stats.SessionStats, bool, error)
}

// SessionsHandler serves persisted fit statistics
// ⭐ SSOT: session statistics API handlers live only here
type SessionsHandler struct {
	store  stats.Store
	cache  StatsCache
	logger *logger.Logger
}

// NewSessionsHandler creates a new sessions handler. cache may be nil.
func NewSessionsHandler(store stats.Store, cache StatsCache, log *logger.Logger) *SessionsHandler {
	return &SessionsHandler{
		store:  store,
		cache:  cache,
		logger: log,
	}
}

// ListSessions returns recent sessions, newest first
// GET /api/sessions?limit=50
func (h *SessionsHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' (expected a positive integer)")
			return
		}
		limit = n
	}

	sessions, err := h.store.ListSessions(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list sessions")
		respondError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// GetStats returns the fit statistics of one session, optionally for a single output
// GET /api/sessions/{id}/stats
// GET /api/sessions/{id}/stats/{output}
func (h *SessionsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	output := vars["output"]

	if h.cache != nil {
		cached, found, err := h.cache.Get(r.Context(), id)
		if err != nil {
			h.logger.WithError(err).Warn("Stats cache lookup failed")
		}
		if found {
			if output != "" {
				cached.Records = cached.ForOutput(output)
			}
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	s, err := h.store.GetSession(r.Context(), id, output)
	if errors.Is(err, stats.ErrSessionNotFound) {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		h.logger.WithFields(map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		}).Error("Failed to load session")
		respondError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}

	respondJSON(w, http.StatusOK, s)
}
