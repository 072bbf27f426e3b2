package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mcoot/regwhelp/internal/api/handler"
	"github.com/mcoot/regwhelp/internal/api/middleware"
	"github.com/mcoot/regwhelp/internal/api/response"
	"github.com/mcoot/regwhelp/internal/metrics"
	"github.com/mcoot/regwhelp/internal/services/session"
	"github.com/mcoot/regwhelp/internal/storage"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger   *slog.Logger
	Store    storage.RecordStore
	Sessions *session.Manager
	// Gatherer serves /metrics; nil disables the endpoint
	Gatherer prometheus.Gatherer
	// Gateway serves player websocket connections on /ws; nil disables it
	Gateway http.Handler
	// Events streams lifecycle events on /api/v1/events; nil disables it
	Events http.Handler
	// AdminToken guards the admin routes when set
	AdminToken string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	registrationHandler := handler.NewRegistrationHandler(cfg.Store)
	sessionHandler := handler.NewSessionHandler(cfg.Sessions)

	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	admin := api.NewRoute().Subrouter()
	admin.Use(middleware.AdminToken(cfg.AdminToken))
	admin.HandleFunc("/registrations", registrationHandler.List).Methods(http.MethodGet)
	admin.HandleFunc("/registrations/{account}", registrationHandler.Get).Methods(http.MethodGet)
	admin.HandleFunc("/sessions", sessionHandler.List).Methods(http.MethodGet)
	admin.HandleFunc("/sessions/{player_id}", sessionHandler.Get).Methods(http.MethodGet)
	if cfg.Events != nil {
		admin.Handle("/events", cfg.Events).Methods(http.MethodGet)
	}

	if cfg.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(cfg.Gatherer)).Methods(http.MethodGet)
	}
	if cfg.Gateway != nil {
		r.Handle("/ws", cfg.Gateway)
	}

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
