package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

// requestID reuses the caller's X-Request-ID or assigns a UUID, and exposes it
// through middleware.GetReqID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

func (h *Handlers) cors() func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: h.CORSOrigins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
	})
	return c.Handler
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(requestID)
	if h.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(h.cors())

	r.Get("/healthz", h.handleHealth)

	// WebSocket
	if h.Hub != nil {
		r.Get("/ws", h.Hub.ServeWs)
	}

	r.Route("/api", func(r chi.Router) {
		// Players (public). Evaluation carries its own deadline.
		r.Post("/recipe/evaluate", h.handleEvaluate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/games/{gameID}/timer", h.handleGetTimer)
			r.Get("/teams/{teamID}/attempts", h.handleGetAttempts)
			r.Get("/join/{code}", h.handleJoin)

			r.Post("/staff/login", h.handleLogin)
			r.Post("/staff/logout", h.handleLogout)
		})

		// Staff (protected)
		r.Route("/staff", func(r chi.Router) {
			r.Use(h.Auth.RequireAuthAPI)
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/games", h.handleListGames)
			r.Post("/games", h.handleCreateGame)
			r.Get("/games/{gameID}", h.handleGetGame)
			r.Put("/games/{gameID}/settings", h.handleUpdateSettings)
			r.Get("/games/{gameID}/logs", h.handleListLogs)

			// Timer
			r.Post("/games/{gameID}/timer/start", h.handleStartGame)
			r.Post("/games/{gameID}/timer/phase", h.handleSelectPhase)
			r.Post("/games/{gameID}/timer/pause", h.handleTogglePause)
			r.Post("/games/{gameID}/timer/adjust", h.handleAdjustTime)
			r.Post("/games/{gameID}/timer/reset-phase", h.handleResetPhase)
			r.Post("/games/{gameID}/timer/advance-cycle", h.handleAdvanceCycle)
			r.Post("/games/{gameID}/timer/reset-instance", h.handleResetInstance)
			r.Put("/games/{gameID}/contests/{contestID}", h.handleAssignContest)

			// Teams
			r.Get("/games/{gameID}/teams", h.handleListTeams)
			r.Post("/games/{gameID}/teams", h.handleCreateTeam)
			r.Get("/teams/{teamID}/qr", h.handleTeamQR)
			r.Delete("/teams/{teamID}/attempts", h.handleResetAttempts)

			// Reference recipe
			r.Get("/reference", h.handleGetReference)
			r.Put("/reference", h.handleReplaceReference)
		})
	})

	return r
}
