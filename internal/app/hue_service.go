package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huedash/internal/config"
	"github.com/dokzlo13/huedash/internal/entity"
	"github.com/dokzlo13/huedash/internal/eventbus"
	"github.com/dokzlo13/huedash/internal/hue"
	"github.com/dokzlo13/huedash/internal/ledger"
	"github.com/dokzlo13/huedash/internal/metrics"
	"github.com/dokzlo13/huedash/internal/remote"
)

// HueService wraps the bridge client and the light controller.
type HueService struct {
	cfg *config.Config

	remote     *remote.Client
	Client     *hue.Client
	Controller *hue.Controller
}

// NewHueService creates a new HueService with all components initialized but not polling.
func NewHueService(cfg *config.Config, bus *eventbus.Bus, l *ledger.Ledger, m *metrics.Collector) (*HueService, error) {
	var focus entity.Key
	if cfg.Hue.DefaultEntity != "" {
		key, err := entity.ParseKey(cfg.Hue.DefaultEntity)
		if err != nil {
			return nil, fmt.Errorf("hue.default_entity: %w", err)
		}
		focus = key
	}

	rc := remote.New(cfg.Hue.Timeout.Duration())
	client := hue.NewClient(rc, cfg.Hue.Bridge, cfg.Hue.Username, cfg.Hue.RateLimitRPS)

	controller := hue.NewController(client, hue.Config{
		RefreshInterval: cfg.Hue.RefreshInterval.Duration(),
		GracePeriod:     cfg.Hue.GracePeriod.Duration(),
		UpdateDebounce:  cfg.Hue.UpdateDebounce.Duration(),
		WriteTimeout:    cfg.Hue.WriteTimeout.Duration(),
		OverrideCycles:  cfg.Hue.OverrideCycles,
		DefaultFocus:    focus,
	},
		hue.WithPublisher(bus),
		hue.WithCommandLog(l),
		hue.WithRecorder(m),
	)

	return &HueService{
		cfg:        cfg,
		remote:     rc,
		Client:     client,
		Controller: controller,
	}, nil
}

// Start loads the bridge state and starts polling.
func (s *HueService) Start(ctx context.Context) {
	s.Controller.Start(ctx)
	log.Info().Str("bridge", s.cfg.Hue.Bridge).Msg("Hue polling started")
}

// Close stops polling and releases connections.
func (s *HueService) Close() {
	s.Controller.Stop()
	s.remote.Close()
}
