package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kalambet/feedtrack/internal/assistant"
	"github.com/kalambet/feedtrack/internal/feedback"
)

// Deps holds what the HTTP API needs.
type Deps struct {
	Feedback      *feedback.Service
	Assistant     assistant.AnswerProvider
	AllowedOrigin string
	Token         string // optional bearer token; empty disables auth
	Logger        *slog.Logger
}

// NewHandler returns the HTTP API mounted under /api.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(deps.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{deps.AllowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(deps.Token))

			r.Get("/feedback", handleListFeedback(deps))
			r.Post("/feedback", handleCreateFeedback(deps))
			r.Get("/feedback/stats", handleFeedbackStats(deps))
			r.Get("/feedback/{id}", handleGetFeedback(deps))
			r.Put("/feedback/{id}", handleUpdateFeedback(deps))
			r.Delete("/feedback/{id}", handleDeleteFeedback(deps))

			r.Post("/ai/ask", handleAsk(deps))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusNotFound, errNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusMethodNotAllowed, errValidation, "method %s not allowed", r.Method)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// requestLogger logs one line per request after it completes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.LogAttrs(r.Context(), slog.LevelInfo, "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
