package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/solofill/internal/api/handlers"
	"github.com/wonny/solofill/pkg/logger"
)

// RouterDeps groups what the router serves
type RouterDeps struct {
	Sessions *handlers.SessionsHandler
	Jobs     *handlers.JobsHandler
	Hub      *Hub

	// Limit is applied to /api routes; nil disables rate limiting
	Limit mux.MiddlewareFunc
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: routing is configured only here
func NewRouter(deps RouterDeps, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(deps.Hub)).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()
	if deps.Limit != nil {
		api.Use(deps.Limit)
	}

	// Session statistics
	api.HandleFunc("/sessions", deps.Sessions.ListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}/stats", deps.Sessions.GetStats).Methods("GET")
	api.HandleFunc("/sessions/{id}/stats/{output}", deps.Sessions.GetStats).Methods("GET")

	// Scheduler
	api.HandleFunc("/jobs", deps.Jobs.ListJobs).Methods("GET")

	// Progress events
	if deps.Hub != nil {
		r.HandleFunc("/ws", deps.Hub.ServeWS).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clients := 0
		if hub != nil {
			clients = hub.Clients()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":     "ok",
			"service":    "solofill",
			"ws_clients": clients,
		})
	}
}
