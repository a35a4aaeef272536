package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}
	if s.deps.Hub != nil {
		r.Get("/ws", s.deps.Hub.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/hue", func(r chi.Router) {
			r.Get("/", s.handleHueView)
			r.Put("/focus", s.handleHueFocus)
			r.Put("/color", s.handleHueColor)
			r.Post("/refresh", s.handleHueRefresh)
		})

		r.Route("/presets", func(r chi.Router) {
			r.Get("/", s.handleListPresets)
			r.Put("/{id}", s.handleSavePreset)
			r.Post("/{id}/apply", s.handleApplyPreset)
		})

		r.Route("/spotify", func(r chi.Router) {
			r.Get("/", s.handlePlaybackView)
			r.Post("/{command}", s.handlePlaybackCommand)
		})

		r.Get("/commands", s.handleListCommands)
	})

	return r
}

// logRequests logs each request with method, path, status and duration.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
