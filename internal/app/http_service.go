package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huedash/internal/config"
	"github.com/dokzlo13/huedash/internal/eventbus"
	"github.com/dokzlo13/huedash/internal/server"
)

// HTTPService serves the dashboard API, metrics and the event stream.
type HTTPService struct {
	cfg    *config.Config
	Hub    *server.Hub
	Server *server.Server
}

// NewHTTPService wires the server to the running services.
func NewHTTPService(cfg *config.Config, s *Services) *HTTPService {
	hub := server.NewHub(
		server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		server.WithClientObserver(s.Metrics),
		server.WithSnapshot(func() []eventbus.Event {
			events := []eventbus.Event{{
				Type: eventbus.EventTypeHueUpdated,
				Data: map[string]interface{}{"view": s.Hue.Controller.View()},
			}}
			if s.Spotify != nil {
				events = append(events, eventbus.Event{
					Type: eventbus.EventTypePlaybackUpdated,
					Data: map[string]interface{}{"view": s.Spotify.Player.View()},
				})
			}
			return events
		}),
	)

	deps := server.Deps{
		Lights:   s.Hue.Controller,
		Presets:  s.Presets.Store,
		Commands: s.Ledger,
		Metrics:  s.Metrics.Handler(),
		Hub:      hub,
		Ready:    s.Ready,
	}
	if s.Spotify != nil {
		deps.Player = s.Spotify.Player
	}

	return &HTTPService{
		cfg:    cfg,
		Hub:    hub,
		Server: server.New(cfg.Server.Addr(), deps),
	}
}

// Start subscribes the hub to the bus and begins serving if enabled.
func (s *HTTPService) Start(ctx context.Context, bus *eventbus.Bus, onFatalError func(error)) {
	if !s.cfg.Server.Enabled {
		log.Debug().Msg("HTTP server disabled")
		return
	}

	s.Hub.Subscribe(bus)

	go func() {
		if err := s.Server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			log.Error().Err(err).Msg("HTTP server error")
			onFatalError(err)
		}
	}()
}
