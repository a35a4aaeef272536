// Package app wires the dashboard daemon together: storage, the Hue and
// Spotify reconcilers, presets and the HTTP surface.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huedash/internal/config"
)

// App owns the services of one huedash process.
type App struct {
	cfg      *config.Config
	services *Services
	ctx      context.Context
	cancel   context.CancelFunc
}

// New opens storage and builds every service without starting polling.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, services: services}, nil
}

// Start loads presets, starts the pollers and the HTTP server. A failing
// HTTP listener cancels the app context, which ends Wait.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	onFatalError := func(err error) {
		log.Error().Err(err).Msg("Fatal error, initiating shutdown")
		a.cancel()
	}
	if err := a.services.Start(a.ctx, onFatalError); err != nil {
		return err
	}

	focus, _ := a.services.Hue.Controller.Focus()
	ev := log.Info().
		Str("focus", focus.String()).
		Bool("spotify", a.services.Spotify != nil)
	if a.cfg.Server.Enabled {
		ev = ev.Str("http", a.cfg.Server.Addr())
	}
	ev.Msg("huedash started")
	return nil
}

// Stop cancels polling, drains the event bus and closes storage.
func (a *App) Stop() error {
	log.Info().Msg("Shutting down...")

	if a.cancel != nil {
		a.cancel()
	}
	if a.services == nil {
		return nil
	}
	return a.services.Stop()
}

// Wait blocks until shutdown is requested.
func (a *App) Wait() {
	if a.ctx != nil {
		<-a.ctx.Done()
	}
}

// ResetPresets forgets every user-saved preset color (--reset-presets).
func (a *App) ResetPresets() error {
	if a.services == nil {
		return nil
	}
	return a.services.Presets.Reset()
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
