package app

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/dokzlo13/huedash/internal/config"
	"github.com/dokzlo13/huedash/internal/eventbus"
	"github.com/dokzlo13/huedash/internal/ledger"
	"github.com/dokzlo13/huedash/internal/metrics"
	"github.com/dokzlo13/huedash/internal/remote"
	"github.com/dokzlo13/huedash/internal/spotify"
)

// SpotifyService wraps the Web API client and the player.
type SpotifyService struct {
	remote *remote.Client
	Client *spotify.Client
	Player *spotify.Player
}

// NewSpotifyService creates the Spotify client and player.
func NewSpotifyService(cfg *config.Config, bus *eventbus.Bus, l *ledger.Ledger, m *metrics.Collector) (*SpotifyService, error) {
	sc := cfg.Spotify
	rc := remote.New(sc.Timeout.Duration())

	// Token refreshes use the same timeout as API calls.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, rc.HTTPClient())
	tokens, err := spotify.NewTokenSource(tokenCtx, spotify.TokenConfig{
		ClientID:     sc.ClientID,
		ClientSecret: sc.ClientSecret,
		RefreshToken: sc.RefreshToken,
		AccessToken:  sc.AccessToken,
		TokenURL:     sc.TokenURL,
	})
	if err != nil {
		return nil, err
	}

	client := spotify.NewClient(rc, sc.BaseURL, tokens)
	player := spotify.NewPlayer(client, spotify.Config{
		PlaybackInterval: sc.PlaybackInterval.Duration(),
		QueueInterval:    sc.QueueInterval.Duration(),
		OverrideCycles:   sc.OverrideCycles,
	},
		spotify.WithPublisher(bus),
		spotify.WithCommandLog(l),
		spotify.WithRecorder(m),
	)

	return &SpotifyService{
		remote: rc,
		Client: client,
		Player: player,
	}, nil
}

// Start begins polling playback and queue.
func (s *SpotifyService) Start(ctx context.Context) {
	s.Player.Start(ctx)
}

// Close stops polling and releases connections.
func (s *SpotifyService) Close() {
	s.Player.Stop()
	s.remote.Close()
}
