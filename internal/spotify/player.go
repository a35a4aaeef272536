package spotify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huedash/internal/clock"
	"github.com/dokzlo13/huedash/internal/eventbus"
	"github.com/dokzlo13/huedash/internal/overlay"
	"github.com/dokzlo13/huedash/internal/reconcile"
)

// ErrNoPlayback is returned by commands that need an active device.
var ErrNoPlayback = errors.New("no active playback")

// API is the part of the Web API the player needs.
type API interface {
	PlaybackState(ctx context.Context) (*PlaybackState, error)
	Queue(ctx context.Context) (*Queue, error)
	Artist(ctx context.Context, id string) (*HydratedArtist, error)
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Shuffle(ctx context.Context, state bool) error
	Repeat(ctx context.Context, mode RepeatMode) error
}

// Publisher receives read model updates.
type Publisher interface {
	Publish(event eventbus.Event)
}

// CommandLog records outgoing commands.
type CommandLog interface {
	CommandSent(source, target string, payload map[string]any)
	CommandFailed(source, target string, payload map[string]any, err error)
}

// Recorder receives poll and command outcomes.
type Recorder interface {
	reconcile.Recorder
	WriteCompleted(target string, err error)
	OverridesActive(domain string, n int)
}

// Field names a playback attribute that can be overridden locally.
type Field string

const (
	FieldIsPlaying Field = "is_playing"
	FieldShuffle   Field = "shuffle_state"
	FieldRepeat    Field = "repeat_state"
)

// Config contains player settings.
type Config struct {
	PlaybackInterval time.Duration // default: 1s
	QueueInterval    time.Duration // default: 10s
	OverrideCycles   int           // default: overlay.DefaultLifetime
}

// PlaybackView is the read model of the player. Every field has a usable
// zero value; Active is false when no device is playing.
type PlaybackView struct {
	Active     bool           `json:"active"`
	IsPlaying  bool           `json:"is_playing"`
	Shuffle    bool           `json:"shuffle_state"`
	Repeat     RepeatMode     `json:"repeat_state"`
	ProgressMS int            `json:"progress_ms"`
	Device     Device         `json:"device"`
	Track      Track          `json:"track"`
	Artist     HydratedArtist `json:"artist"`
	Queue      []Track        `json:"queue"`
	Overrides  int            `json:"pending_overrides"`
}

// Option configures a Player.
type Option func(*Player)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(p *Player) { p.clock = c }
}

// WithPublisher sets where view updates are published.
func WithPublisher(pub Publisher) Option {
	return func(p *Player) { p.publisher = pub }
}

// WithCommandLog sets the command log.
func WithCommandLog(l CommandLog) Option {
	return func(p *Player) { p.commands = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Player) { p.recorder = r }
}

// Player mirrors the user's Spotify playback and applies commands
// optimistically.
type Player struct {
	api       API
	clock     clock.Clock
	publisher Publisher
	commands  CommandLog
	recorder  Recorder

	overrides *overlay.Overlay[Field, any]
	playback  *reconcile.Loop[string]
	queue     *reconcile.Loop[string]

	mu       sync.Mutex
	state    *PlaybackState
	upcoming *Queue
	artist   *HydratedArtist
	trackID  string
	artistID string

	publishMu sync.Mutex
	seq       uint64 // last published view
}

// NewPlayer creates a player.
func NewPlayer(api API, cfg Config, opts ...Option) *Player {
	if cfg.PlaybackInterval <= 0 {
		cfg.PlaybackInterval = time.Second
	}
	if cfg.QueueInterval <= 0 {
		cfg.QueueInterval = 10 * time.Second
	}

	p := &Player{
		api:       api,
		clock:     clock.Real{},
		publisher: nopPublisher{},
		commands:  nopCommandLog{},
		recorder:  nopRecorder{},
		overrides: overlay.New[Field](cfg.OverrideCycles, func(a, b any) bool { return a == b }),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.playback = reconcile.New[string](reconcile.Config{
		Name:            "spotify_playback",
		RefreshInterval: cfg.PlaybackInterval,
	}, p.pollPlayback, p.afterPlayback, reconcile.WithClock(p.clock), reconcile.WithRecorder(p.recorder))

	p.queue = reconcile.New[string](reconcile.Config{
		Name:            "spotify_queue",
		RefreshInterval: cfg.QueueInterval,
	}, p.pollQueue, p.publish, reconcile.WithClock(p.clock), reconcile.WithRecorder(p.recorder))

	return p
}

// Start begins polling.
func (p *Player) Start(ctx context.Context) {
	p.playback.Start(ctx)
	p.queue.Start(ctx)
	log.Info().Msg("Spotify player started")
}

// Stop stops polling.
func (p *Player) Stop() {
	p.playback.Stop()
	p.queue.Stop()
}

// RefreshNow polls playback on the next tick.
func (p *Player) RefreshNow() {
	p.playback.Trigger()
}

// LoopState returns the playback loop state.
func (p *Player) LoopState() reconcile.State {
	return p.playback.State()
}

// pollPlayback fetches playback and, when the artist changed, the artist.
func (p *Player) pollPlayback(ctx context.Context, _ string, _ bool) (func(), error) {
	state, err := p.api.PlaybackState(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	knownArtist := p.artistID
	p.mu.Unlock()

	var artist *HydratedArtist
	artistID := state.ArtistID()
	if artistID != "" && artistID != knownArtist {
		artist, err = p.api.Artist(ctx, artistID)
		if err != nil {
			// Retried on the next poll since artistID is left unchanged.
			log.Warn().Err(err).Str("artist", artistID).Msg("Failed to fetch artist")
			artist = nil
		}
	}

	return func() { p.applyPlayback(state, artist) }, nil
}

// applyPlayback runs under the playback loop lock.
func (p *Player) applyPlayback(state *PlaybackState, artist *HydratedArtist) {
	p.mu.Lock()
	p.state = state
	trackChanged := state.TrackID() != p.trackID
	p.trackID = state.TrackID()
	if artist != nil {
		p.artist = artist
		p.artistID = artist.ID
	}
	if state.ArtistID() == "" {
		p.artist = nil
		p.artistID = ""
	}
	p.mu.Unlock()

	if state != nil {
		p.overrides.Confirm(FieldIsPlaying, state.IsPlaying)
		p.overrides.Confirm(FieldShuffle, state.ShuffleState)
		p.overrides.Confirm(FieldRepeat, state.RepeatState)
	}
	if trackChanged {
		p.queue.Trigger()
	}
}

func (p *Player) afterPlayback() {
	p.overrides.Decay()
	p.recorder.OverridesActive("spotify", p.overrides.Len())
	p.publish()
}

func (p *Player) pollQueue(ctx context.Context, _ string, _ bool) (func(), error) {
	q, err := p.api.Queue(ctx)
	if err != nil {
		return nil, err
	}
	return func() {
		p.mu.Lock()
		p.upcoming = q
		p.mu.Unlock()
	}, nil
}

// View returns the read model with local overrides applied.
func (p *Player) View() PlaybackView {
	p.mu.Lock()
	state, upcoming, artist := p.state, p.upcoming, p.artist
	p.mu.Unlock()

	v := PlaybackView{
		Repeat:    RepeatOff,
		Queue:     []Track{},
		Overrides: p.overrides.Len(),
	}
	if upcoming != nil && upcoming.Queue != nil {
		v.Queue = upcoming.Queue
	}
	if artist != nil {
		v.Artist = *artist
	}
	if state == nil {
		return v
	}

	v.Active = true
	v.IsPlaying = viewBool(p.overrides, FieldIsPlaying, state.IsPlaying)
	v.Shuffle = viewBool(p.overrides, FieldShuffle, state.ShuffleState)
	v.Repeat = state.RepeatState
	if m, ok := p.overrides.View(FieldRepeat, state.RepeatState).(RepeatMode); ok {
		v.Repeat = m
	}
	if v.Repeat == "" {
		v.Repeat = RepeatOff
	}
	v.ProgressMS = state.ProgressMS
	v.Device = state.Device
	if state.Item != nil {
		v.Track = *state.Item
	}
	return v
}

func viewBool(o *overlay.Overlay[Field, any], field Field, authoritative bool) bool {
	if b, ok := o.View(field, authoritative).(bool); ok {
		return b
	}
	return authoritative
}

// TogglePlaying pauses or resumes based on the displayed state.
func (p *Player) TogglePlaying(ctx context.Context) error {
	v := p.View()
	if !v.Active {
		return ErrNoPlayback
	}
	if v.IsPlaying {
		return p.overrideCommand(ctx, "player/pause", FieldIsPlaying, false, p.api.Pause)
	}
	return p.overrideCommand(ctx, "player/play", FieldIsPlaying, true, p.api.Play)
}

// ToggleShuffle flips shuffle based on the displayed state.
func (p *Player) ToggleShuffle(ctx context.Context) error {
	v := p.View()
	if !v.Active {
		return ErrNoPlayback
	}
	shuffle := !v.Shuffle
	return p.overrideCommand(ctx, "player/shuffle", FieldShuffle, shuffle, func(ctx context.Context) error {
		return p.api.Shuffle(ctx, shuffle)
	})
}

// StepRepeat advances the repeat mode: off, context, track, off.
func (p *Player) StepRepeat(ctx context.Context) error {
	v := p.View()
	if !v.Active {
		return ErrNoPlayback
	}
	mode := v.Repeat.Next()
	return p.overrideCommand(ctx, "player/repeat", FieldRepeat, mode, func(ctx context.Context) error {
		return p.api.Repeat(ctx, mode)
	})
}

// SkipNext skips to the next track and polls soon after.
func (p *Player) SkipNext(ctx context.Context) error {
	return p.skip(ctx, "player/next", p.api.Next)
}

// SkipPrevious skips to the previous track and polls soon after.
func (p *Player) SkipPrevious(ctx context.Context) error {
	return p.skip(ctx, "player/previous", p.api.Previous)
}

func (p *Player) skip(ctx context.Context, target string, call func(context.Context) error) error {
	if err := p.send(ctx, target, nil, call); err != nil {
		return err
	}
	p.playback.Trigger()
	return nil
}

// overrideCommand shows value immediately and reverts it if the call fails.
func (p *Player) overrideCommand(ctx context.Context, target string, field Field, value any, call func(context.Context) error) error {
	p.overrides.Set(field, value)
	p.recorder.OverridesActive("spotify", p.overrides.Len())
	p.publish()

	err := p.send(ctx, target, map[string]any{string(field): value}, call)
	if err != nil && p.overrides.ClearIf(field, value) {
		p.recorder.OverridesActive("spotify", p.overrides.Len())
		p.publish()
	}
	return err
}

func (p *Player) send(ctx context.Context, target string, payload map[string]any, call func(context.Context) error) error {
	err := call(ctx)
	p.recorder.WriteCompleted("spotify", err)
	if err == nil {
		p.commands.CommandSent("spotify", target, payload)
		return nil
	}

	log.Warn().Err(err).Str("command", target).Msg("Spotify command failed")
	p.commands.CommandFailed("spotify", target, payload, err)
	p.publisher.Publish(eventbus.Event{
		Type: eventbus.EventTypeCommandFailed,
		Data: map[string]interface{}{
			"source": "spotify",
			"target": target,
			"error":  err.Error(),
		},
	})
	return err
}

func (p *Player) publish() {
	// Views are numbered in the order they are taken.
	p.publishMu.Lock()
	defer p.publishMu.Unlock()
	p.seq++
	p.publisher.Publish(eventbus.Event{
		Type: eventbus.EventTypePlaybackUpdated,
		Data: map[string]interface{}{"view": p.View()},
		Seq:  p.seq,
	})
}

type nopPublisher struct{}

func (nopPublisher) Publish(eventbus.Event) {}

type nopCommandLog struct{}

func (nopCommandLog) CommandSent(string, string, map[string]any)          {}
func (nopCommandLog) CommandFailed(string, string, map[string]any, error) {}

type nopRecorder struct{}

func (nopRecorder) PollCompleted(string, error)  {}
func (nopRecorder) PollSuppressed(string)        {}
func (nopRecorder) PollDiscarded(string)         {}
func (nopRecorder) WriteCompleted(string, error) {}
func (nopRecorder) OverridesActive(string, int)  {}
