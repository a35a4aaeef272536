package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dokzlo13/huedash/internal/color"
	"github.com/dokzlo13/huedash/internal/entity"
	"github.com/dokzlo13/huedash/internal/hue"
	"github.com/dokzlo13/huedash/internal/ledger"
	"github.com/dokzlo13/huedash/internal/presets"
	"github.com/dokzlo13/huedash/internal/remote"
	"github.com/dokzlo13/huedash/internal/spotify"
)

type edit struct {
	key     entity.Key
	focused bool
	color   color.Color
	on      bool
}

type fakeLights struct {
	view      hue.View
	edits     []edit
	refreshed int
	editErr   error
}

func (f *fakeLights) View() hue.View { return f.view }

func (f *fakeLights) SetFocus(key entity.Key) error {
	f.view.Focus = key
	f.view.HasFocus = true
	return nil
}

func (f *fakeLights) SetEntity(key entity.Key, col color.Color, on bool) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, edit{key: key, color: col, on: on})
	return nil
}

func (f *fakeLights) UpdateFocused(col color.Color, on bool) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, edit{key: f.view.Focus, focused: true, color: col, on: on})
	return nil
}

func (f *fakeLights) RefreshNow() { f.refreshed++ }

type fakePresets struct {
	saved   map[string]color.Color
	current []string
	applied []string
}

func (f *fakePresets) List() []presets.Preset {
	return []presets.Preset{{ID: "normal", Name: "Normal"}}
}

func (f *fakePresets) Save(id string, col color.Color) (presets.Preset, error) {
	if id != "preset_1" {
		return presets.Preset{}, presets.ErrUnknownPreset
	}
	f.saved[id] = col
	return presets.Preset{ID: id, Color: &col}, nil
}

func (f *fakePresets) SaveCurrent(id string) (presets.Preset, error) {
	f.current = append(f.current, id)
	return presets.Preset{ID: id}, nil
}

func (f *fakePresets) Apply(id string) error {
	if id == "preset_2" {
		return presets.ErrEmptyPreset
	}
	f.applied = append(f.applied, id)
	return nil
}

type fakePlayer struct {
	calls []string
	err   error
}

func (f *fakePlayer) View() spotify.PlaybackView {
	return spotify.PlaybackView{Active: true, Repeat: spotify.RepeatOff, Queue: []spotify.Track{}}
}

func (f *fakePlayer) call(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakePlayer) TogglePlaying(context.Context) error { return f.call("toggle") }
func (f *fakePlayer) ToggleShuffle(context.Context) error { return f.call("shuffle") }
func (f *fakePlayer) StepRepeat(context.Context) error    { return f.call("repeat") }
func (f *fakePlayer) SkipNext(context.Context) error      { return f.call("next") }
func (f *fakePlayer) SkipPrevious(context.Context) error  { return f.call("previous") }
func (f *fakePlayer) RefreshNow()                         { f.calls = append(f.calls, "refresh") }

type fakeCommands struct {
	limit     int
	eventType ledger.EventType
}

func (f *fakeCommands) Recent(limit int) ([]*ledger.Entry, error) {
	f.limit = limit
	return []*ledger.Entry{{ID: "1", EventType: ledger.EventCommandSent}}, nil
}

func (f *fakeCommands) GetByType(eventType ledger.EventType, limit int) ([]*ledger.Entry, error) {
	f.limit, f.eventType = limit, eventType
	return []*ledger.Entry{}, nil
}

type testServer struct {
	lights   *fakeLights
	presets  *fakePresets
	player   *fakePlayer
	commands *fakeCommands
	handler  http.Handler
}

func newTestServer() *testServer {
	group := entity.Entity{Key: entity.Key{Kind: entity.KindGroup, ID: "3"}, Name: "Office", Color: color.New(40, 0.5, 0.5), On: true, Reachable: true}
	light := entity.Entity{Key: entity.Key{Kind: entity.KindLight, ID: "1"}, Name: "Desk", Color: color.New(0, 0, 1), On: false, Reachable: true}

	ts := &testServer{
		lights: &fakeLights{view: hue.View{
			Focus:     group.Key,
			HasFocus:  true,
			Current:   group,
			Available: true,
			Entities:  []entity.Entity{group, light},
		}},
		presets:  &fakePresets{saved: map[string]color.Color{}},
		player:   &fakePlayer{},
		commands: &fakeCommands{},
	}
	ts.handler = New(":0", Deps{
		Lights:   ts.lights,
		Presets:  ts.presets,
		Player:   ts.player,
		Commands: ts.commands,
		Metrics:  http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("metrics")) }),
	}).Handler()
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) Error {
	t.Helper()
	var e Error
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer()

	if rec := ts.do("GET", "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("/health = %d", rec.Code)
	}
	if rec := ts.do("GET", "/ready", ""); rec.Code != http.StatusOK {
		t.Errorf("/ready = %d", rec.Code)
	}
	if rec := ts.do("GET", "/metrics", ""); rec.Body.String() != "metrics" {
		t.Errorf("/metrics = %q", rec.Body.String())
	}
}

func TestReadyReportsFailure(t *testing.T) {
	h := New(":0", Deps{Ready: func() error { return errors.New("bridge unreachable") }}).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready = %d", rec.Code)
	}
}

func TestHueColor(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		want     edit
	}{
		{
			name:     "focused color keeps power",
			body:     `{"color":{"hue":200,"sat":1,"bri":0.5}}`,
			wantCode: http.StatusAccepted,
			want:     edit{key: entity.Key{Kind: entity.KindGroup, ID: "3"}, focused: true, color: color.New(200, 1, 0.5), on: true},
		},
		{
			name:     "power only keeps color",
			body:     `{"entity":"light/1","on":true}`,
			wantCode: http.StatusAccepted,
			want:     edit{key: entity.Key{Kind: entity.KindLight, ID: "1"}, color: color.New(0, 0, 1), on: true},
		},
		{name: "unknown entity", body: `{"entity":"light/9","on":true}`, wantCode: http.StatusNotFound},
		{name: "bad json", body: `{"colour":1}`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			rec := ts.do("PUT", "/api/hue/color", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusAccepted {
				if len(ts.lights.edits) != 0 {
					t.Errorf("rejected request reached the controller")
				}
				return
			}
			if len(ts.lights.edits) != 1 || ts.lights.edits[0] != tt.want {
				t.Errorf("edits = %+v, want %+v", ts.lights.edits, tt.want)
			}
		})
	}
}

func TestHueColorWithoutFocus(t *testing.T) {
	ts := newTestServer()
	ts.lights.view.HasFocus = false

	rec := ts.do("PUT", "/api/hue/color", `{"on":false}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestHueFocusAndRefresh(t *testing.T) {
	ts := newTestServer()

	rec := ts.do("PUT", "/api/hue/focus", `{"entity":"light/1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("focus status = %d", rec.Code)
	}
	if ts.lights.view.Focus != (entity.Key{Kind: entity.KindLight, ID: "1"}) {
		t.Errorf("focus = %v", ts.lights.view.Focus)
	}
	if rec := ts.do("PUT", "/api/hue/focus", `{"entity":"bulb"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid focus status = %d", rec.Code)
	}

	if rec := ts.do("POST", "/api/hue/refresh", ""); rec.Code != http.StatusAccepted || ts.lights.refreshed != 1 {
		t.Errorf("refresh status = %d, refreshed = %d", rec.Code, ts.lights.refreshed)
	}
}

func TestPresets(t *testing.T) {
	ts := newTestServer()

	if rec := ts.do("PUT", "/api/presets/preset_1", `{"color":{"hue":10,"sat":1,"bri":1}}`); rec.Code != http.StatusOK {
		t.Fatalf("save status = %d", rec.Code)
	}
	if ts.presets.saved["preset_1"] != color.New(10, 1, 1) {
		t.Errorf("saved = %v", ts.presets.saved)
	}

	if rec := ts.do("PUT", "/api/presets/preset_3", ""); rec.Code != http.StatusOK {
		t.Fatalf("save current status = %d", rec.Code)
	}
	if len(ts.presets.current) != 1 || ts.presets.current[0] != "preset_3" {
		t.Errorf("save current = %v", ts.presets.current)
	}

	if rec := ts.do("PUT", "/api/presets/nope", `{"color":{"hue":1,"sat":1,"bri":1}}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown preset status = %d", rec.Code)
	}

	if rec := ts.do("POST", "/api/presets/focus/apply", ""); rec.Code != http.StatusAccepted {
		t.Errorf("apply status = %d", rec.Code)
	}
	rec := ts.do("POST", "/api/presets/preset_2/apply", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("empty preset status = %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != CodeConflict {
		t.Errorf("error code = %q", e.Code)
	}
}

func TestPlaybackCommands(t *testing.T) {
	ts := newTestServer()

	for _, cmd := range []string{"play-pause", "shuffle", "repeat", "next", "previous", "refresh"} {
		if rec := ts.do("POST", "/api/spotify/"+cmd, ""); rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", cmd, rec.Code)
		}
	}
	want := []string{"toggle", "shuffle", "repeat", "next", "previous", "refresh"}
	if strings.Join(ts.player.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v", ts.player.calls)
	}

	if rec := ts.do("POST", "/api/spotify/eject", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown command status = %d", rec.Code)
	}
}

func TestPlaybackCommandErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"no playback", spotify.ErrNoPlayback, http.StatusConflict, ""},
		{"rejected", &remote.RejectionError{Status: 403, Message: "Player command failed: Premium required"}, http.StatusBadGateway, "Premium required"},
		{"offline", &remote.TransportError{Err: errors.New("dial tcp")}, http.StatusServiceUnavailable, ""},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.player.err = tt.err
			rec := ts.do("POST", "/api/spotify/next", "")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if e := decodeError(t, rec); !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want %q", e.Message, tt.wantMsg)
			}
		})
	}
}

func TestSpotifyDisabled(t *testing.T) {
	h := New(":0", Deps{Lights: &fakeLights{}}).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/spotify", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestListCommands(t *testing.T) {
	ts := newTestServer()

	rec := ts.do("GET", "/api/commands", "")
	if rec.Code != http.StatusOK || ts.commands.limit != defaultCommandLimit {
		t.Errorf("status = %d, limit = %d", rec.Code, ts.commands.limit)
	}

	ts.do("GET", "/api/commands?type=command_failed&limit=10000", "")
	if ts.commands.eventType != ledger.EventCommandFailed || ts.commands.limit != maxCommandLimit {
		t.Errorf("type = %q, limit = %d", ts.commands.eventType, ts.commands.limit)
	}

	if rec := ts.do("GET", "/api/commands?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}
