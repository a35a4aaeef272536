package spotify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/huedash/internal/clock"
	"github.com/dokzlo13/huedash/internal/eventbus"
	"github.com/dokzlo13/huedash/internal/remote"
)

// fakeAPI is an in-memory player.
type fakeAPI struct {
	mu          sync.Mutex
	state       *PlaybackState
	queue       *Queue
	calls       map[string]int
	commandErr  error
	applyChange bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		state: &PlaybackState{
			Device:      Device{ID: "d1", Name: "Kitchen", IsActive: true},
			IsPlaying:   true,
			RepeatState: RepeatOff,
			Item:        &Track{ID: "t1", Name: "One", Artists: []Artist{{ID: "a1", Name: "Band"}}},
		},
		queue: &Queue{Queue: []Track{{ID: "t2", Name: "Two"}}},
		calls: map[string]int{},
	}
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) setTrack(trackID, artistID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Item = &Track{ID: trackID, Artists: []Artist{{ID: artistID}}}
}

func (f *fakeAPI) PlaybackState(context.Context) (*PlaybackState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["PlaybackState"]++
	if f.state == nil {
		return nil, nil
	}
	s := *f.state
	return &s, nil
}

func (f *fakeAPI) Queue(context.Context) (*Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Queue"]++
	q := *f.queue
	return &q, nil
}

func (f *fakeAPI) Artist(_ context.Context, id string) (*HydratedArtist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Artist"]++
	a := &HydratedArtist{Genres: []string{"rock"}}
	a.ID = id
	a.Name = "Artist " + id
	return a, nil
}

func (f *fakeAPI) command(name string, apply func(*PlaybackState)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if f.commandErr != nil {
		return f.commandErr
	}
	if f.applyChange && f.state != nil {
		apply(f.state)
	}
	return nil
}

func (f *fakeAPI) Play(context.Context) error {
	return f.command("Play", func(s *PlaybackState) { s.IsPlaying = true })
}

func (f *fakeAPI) Pause(context.Context) error {
	return f.command("Pause", func(s *PlaybackState) { s.IsPlaying = false })
}

func (f *fakeAPI) Next(context.Context) error {
	return f.command("Next", func(*PlaybackState) {})
}

func (f *fakeAPI) Previous(context.Context) error {
	return f.command("Previous", func(*PlaybackState) {})
}

func (f *fakeAPI) Shuffle(_ context.Context, state bool) error {
	return f.command("Shuffle", func(s *PlaybackState) { s.ShuffleState = state })
}

func (f *fakeAPI) Repeat(_ context.Context, mode RepeatMode) error {
	return f.command("Repeat", func(s *PlaybackState) {
		s.RepeatState = mode
	})
}

type fakePublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *fakePublisher) Publish(e eventbus.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *fakePublisher) count(t eventbus.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func newTestPlayer(t *testing.T, api *fakeAPI) (*Player, *clock.Manual, *fakePublisher) {
	t.Helper()
	clk := clock.NewManual(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	pub := &fakePublisher{}
	p := NewPlayer(api, Config{}, WithClock(clk), WithPublisher(pub))
	p.Start(context.Background())
	t.Cleanup(p.Stop)
	return p, clk, pub
}

func TestPlayer_FetchesArtistAndQueueOnChange(t *testing.T) {
	api := newFakeAPI()
	p, clk, _ := newTestPlayer(t, api)

	clk.Advance(time.Second)
	if api.count("PlaybackState") != 1 || api.count("Artist") != 1 || api.count("Queue") != 1 {
		t.Fatalf("calls = %v", api.calls)
	}
	v := p.View()
	if v.Artist.Name != "Artist a1" || len(v.Queue) != 1 || v.Track.ID != "t1" {
		t.Errorf("view = %+v", v)
	}

	// Same track: neither artist nor queue is refetched.
	clk.Advance(time.Second)
	if api.count("Artist") != 1 || api.count("Queue") != 1 {
		t.Errorf("refetched without change: %v", api.calls)
	}

	// New track by the same artist refetches the queue only.
	api.setTrack("t2", "a1")
	clk.Advance(time.Second)
	if api.count("Artist") != 1 || api.count("Queue") != 2 {
		t.Errorf("after track change: %v", api.calls)
	}

	api.setTrack("t3", "a2")
	clk.Advance(time.Second)
	if api.count("Artist") != 2 || api.count("Queue") != 3 {
		t.Errorf("after artist change: %v", api.calls)
	}
	if got := p.View().Artist.Name; got != "Artist a2" {
		t.Errorf("artist = %q", got)
	}
}

func TestPlayer_NoActiveDevice(t *testing.T) {
	api := newFakeAPI()
	api.state = nil
	p, clk, _ := newTestPlayer(t, api)
	clk.Advance(time.Second)

	v := p.View()
	if v.Active || v.IsPlaying || v.Repeat != RepeatOff {
		t.Errorf("view = %+v", v)
	}
	if v.Queue == nil {
		t.Error("queue should be empty, not nil")
	}
	if err := p.TogglePlaying(context.Background()); !errors.Is(err, ErrNoPlayback) {
		t.Errorf("TogglePlaying() error = %v", err)
	}
	if api.count("Pause")+api.count("Play") != 0 {
		t.Error("command sent without playback")
	}
}

func TestPlayer_ToggleOverrideDecays(t *testing.T) {
	api := newFakeAPI()
	p, clk, _ := newTestPlayer(t, api)
	clk.Advance(time.Second)

	if err := p.TogglePlaying(context.Background()); err != nil {
		t.Fatalf("TogglePlaying() error = %v", err)
	}
	if api.count("Pause") != 1 {
		t.Fatalf("Pause calls = %d", api.count("Pause"))
	}
	if p.View().IsPlaying {
		t.Fatal("pause not visible immediately")
	}

	clk.Advance(time.Second)
	if p.View().IsPlaying {
		t.Error("override dropped after one poll")
	}
	clk.Advance(time.Second)
	if !p.View().IsPlaying {
		t.Error("override still visible after two polls")
	}
}

func TestPlayer_ConfirmedCommandDropsOverride(t *testing.T) {
	api := newFakeAPI()
	api.applyChange = true
	p, clk, _ := newTestPlayer(t, api)
	clk.Advance(time.Second)

	p.ToggleShuffle(context.Background())
	clk.Advance(time.Second)

	v := p.View()
	if !v.Shuffle || v.Overrides != 0 {
		t.Errorf("shuffle=%v overrides=%d, want confirmed", v.Shuffle, v.Overrides)
	}
}

func TestPlayer_FailedCommandReverts(t *testing.T) {
	api := newFakeAPI()
	api.commandErr = &remote.RejectionError{Status: 403, Message: "Restriction violated"}
	p, clk, pub := newTestPlayer(t, api)
	clk.Advance(time.Second)

	if err := p.TogglePlaying(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !p.View().IsPlaying {
		t.Error("failed pause not reverted")
	}
	if pub.count(eventbus.EventTypeCommandFailed) != 1 {
		t.Error("command_failed not published")
	}
}

func TestPlayer_StepRepeatCycles(t *testing.T) {
	api := newFakeAPI()
	p, clk, _ := newTestPlayer(t, api)
	clk.Advance(time.Second)

	for _, want := range []RepeatMode{RepeatContext, RepeatTrack, RepeatOff} {
		if err := p.StepRepeat(context.Background()); err != nil {
			t.Fatalf("StepRepeat() error = %v", err)
		}
		if got := p.View().Repeat; got != want {
			t.Errorf("repeat = %q, want %q", got, want)
		}
	}
}

func TestPlayer_SkipPollsSoon(t *testing.T) {
	api := newFakeAPI()
	p, clk, _ := newTestPlayer(t, api)
	clk.Advance(time.Second)

	if err := p.SkipNext(context.Background()); err != nil {
		t.Fatalf("SkipNext() error = %v", err)
	}
	clk.Advance(0)
	if api.count("Next") != 1 || api.count("PlaybackState") != 2 {
		t.Errorf("calls = %v", api.calls)
	}
}
