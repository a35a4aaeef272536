// Package server exposes the dashboard read models and commands over HTTP
// and streams bus events to WebSocket clients.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huedash/internal/color"
	"github.com/dokzlo13/huedash/internal/entity"
	"github.com/dokzlo13/huedash/internal/hue"
	"github.com/dokzlo13/huedash/internal/ledger"
	"github.com/dokzlo13/huedash/internal/presets"
	"github.com/dokzlo13/huedash/internal/spotify"
)

// Lights is the Hue controller surface used by the handlers.
type Lights interface {
	View() hue.View
	SetFocus(key entity.Key) error
	SetEntity(key entity.Key, col color.Color, on bool) error
	UpdateFocused(col color.Color, on bool) error
	RefreshNow()
}

// Presets is the preset store surface used by the handlers.
type Presets interface {
	List() []presets.Preset
	Save(id string, col color.Color) (presets.Preset, error)
	SaveCurrent(id string) (presets.Preset, error)
	Apply(id string) error
}

// Player is the Spotify player surface used by the handlers.
type Player interface {
	View() spotify.PlaybackView
	TogglePlaying(ctx context.Context) error
	ToggleShuffle(ctx context.Context) error
	StepRepeat(ctx context.Context) error
	SkipNext(ctx context.Context) error
	SkipPrevious(ctx context.Context) error
	RefreshNow()
}

// Commands reads the command ledger.
type Commands interface {
	Recent(limit int) ([]*ledger.Entry, error)
	GetByType(eventType ledger.EventType, limit int) ([]*ledger.Entry, error)
}

// Deps are the services behind the HTTP surface. Player may be nil when
// Spotify is disabled.
type Deps struct {
	Lights   Lights
	Presets  Presets
	Player   Player
	Commands Commands
	Metrics  http.Handler
	Hub      *Hub
	Ready    func() error
}

// Server serves the dashboard API.
type Server struct {
	addr       string
	deps       Deps
	httpServer *http.Server
}

// New creates a server listening on addr.
func New(addr string, deps Deps) *Server {
	if deps.Ready == nil {
		deps.Ready = func() error { return nil }
	}
	return &Server{
		addr: addr,
		deps: deps,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Run starts the server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting HTTP server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		if s.deps.Hub != nil {
			s.deps.Hub.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
