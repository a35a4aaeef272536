package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huedash/internal/config"
	"github.com/dokzlo13/huedash/internal/db"
	"github.com/dokzlo13/huedash/internal/eventbus"
	"github.com/dokzlo13/huedash/internal/ledger"
	"github.com/dokzlo13/huedash/internal/metrics"
	"github.com/dokzlo13/huedash/internal/reconcile"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB      *db.DB
	Ledger  *ledger.Ledger
	Bus     *eventbus.Bus
	Metrics *metrics.Collector

	// High-level services
	Hue     *HueService
	Spotify *SpotifyService
	Presets *PresetService
	HTTP    *HTTPService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Ledger = ledger.New(database.DB)
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())
	s.Metrics = metrics.New("huedash")

	s.Hue, err = NewHueService(cfg, s.Bus, s.Ledger, s.Metrics)
	if err != nil {
		s.Close()
		return nil, err
	}

	if cfg.Spotify.Enabled {
		s.Spotify, err = NewSpotifyService(cfg, s.Bus, s.Ledger, s.Metrics)
		if err != nil {
			s.Close()
			return nil, err
		}
	} else {
		log.Info().Msg("Spotify is disabled")
	}

	s.Presets = NewPresetService(cfg, database.DB, s.Hue.Controller)
	s.HTTP = NewHTTPService(cfg, s)

	return s, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a background service cannot continue.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	// Presets first: a broken preset script aborts startup
	if err := s.Presets.Start(ctx); err != nil {
		return err
	}

	s.Hue.Start(ctx)
	if s.Spotify != nil {
		s.Spotify.Start(ctx)
	}

	go s.Ledger.RunCleanup(ctx, s.cfg.Ledger.Retention(), s.cfg.Ledger.CleanupInterval.Duration())

	s.HTTP.Start(ctx, s.Bus, onFatalError)
	return nil
}

// Ready reports whether the polling loops are running.
func (s *Services) Ready() error {
	if s.Hue.Controller.LoopState() == reconcile.StateIdle {
		return errors.New("hue polling is not running")
	}
	if s.Spotify != nil && s.Spotify.Player.LoopState() == reconcile.StateIdle {
		return errors.New("spotify polling is not running")
	}
	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Spotify != nil {
		s.Spotify.Close()
	}
	if s.Hue != nil {
		s.Hue.Close()
	}
	if s.Presets != nil {
		s.Presets.Close()
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		s.Bus.Close(ctx)
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
