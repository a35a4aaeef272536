package hue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huedash/internal/clock"
	"github.com/dokzlo13/huedash/internal/color"
	"github.com/dokzlo13/huedash/internal/debounce"
	"github.com/dokzlo13/huedash/internal/entity"
	"github.com/dokzlo13/huedash/internal/eventbus"
	"github.com/dokzlo13/huedash/internal/overlay"
	"github.com/dokzlo13/huedash/internal/reconcile"
)

var (
	ErrNoFocus       = errors.New("no entity focused")
	ErrUnknownEntity = errors.New("unknown entity")
)

// NoLight is reported when nothing is focused or the focused entity is gone.
var NoLight = entity.Entity{Name: "No light"}

// Bridge is the part of the bridge API the controller needs.
type Bridge interface {
	GetLights(ctx context.Context) (map[string]huego.Light, error)
	GetLight(ctx context.Context, id string) (huego.Light, error)
	GetGroups(ctx context.Context) (map[string]huego.Group, error)
	GetGroup(ctx context.Context, id string) (huego.Group, error)
	SetLight(ctx context.Context, id string, cmd Command) error
	SetGroup(ctx context.Context, id string, cmd Command) error
}

// Publisher receives read model updates.
type Publisher interface {
	Publish(event eventbus.Event)
}

// CommandLog records outgoing write commands.
type CommandLog interface {
	CommandSent(source, target string, payload map[string]any)
	CommandFailed(source, target string, payload map[string]any, err error)
}

// Recorder receives poll and write outcomes.
type Recorder interface {
	reconcile.Recorder
	WriteCompleted(target string, err error)
	OverridesActive(domain string, n int)
}

// Intent is the locally requested state of an entity.
type Intent struct {
	Color color.Color `json:"color"`
	On    bool        `json:"on"`
}

// Same reports whether the bridge would store both intents identically.
func (i Intent) Same(other Intent) bool {
	return i.On == other.On && i.Color.SameVendor(other.Color)
}

// Config contains controller settings.
type Config struct {
	RefreshInterval time.Duration // default: 2s
	GracePeriod     time.Duration // default: 10s
	UpdateDebounce  time.Duration // default: 500ms
	WriteTimeout    time.Duration // default: 10s
	OverrideCycles  int           // default: overlay.DefaultLifetime
	DefaultFocus    entity.Key    // zero = pick the best entity
}

// View is the read model of the Hue side of the dashboard.
type View struct {
	Focus     entity.Key      `json:"focus"`
	HasFocus  bool            `json:"has_focus"`
	Current   entity.Entity   `json:"current"`
	Available bool            `json:"available"`
	Entities  []entity.Entity `json:"entities"`
	Overrides int             `json:"pending_overrides"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithPublisher sets where view updates are published.
func WithPublisher(p Publisher) Option {
	return func(ctrl *Controller) { ctrl.publisher = p }
}

// WithCommandLog sets the write command log.
func WithCommandLog(l CommandLog) Option {
	return func(ctrl *Controller) { ctrl.commands = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(ctrl *Controller) { ctrl.recorder = r }
}

// Controller keeps the entity store in step with the bridge and applies
// user edits optimistically.
type Controller struct {
	bridge    Bridge
	cfg       Config
	clock     clock.Clock
	publisher Publisher
	commands  CommandLog
	recorder  Recorder

	store     *entity.Store
	overrides *overlay.Overlay[entity.Key, Intent]
	writes    *debounce.Keyed[entity.Key]
	loop      *reconcile.Loop[entity.Key]

	mu       sync.Mutex
	ctx      context.Context
	focus    entity.Key
	hasFocus bool

	publishMu sync.Mutex
	seq       uint64 // last published view
}

// NewController creates a controller for bridge.
func NewController(bridge Bridge, cfg Config, opts ...Option) *Controller {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 2 * time.Second
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 10 * time.Second
	}
	if cfg.UpdateDebounce <= 0 {
		cfg.UpdateDebounce = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	c := &Controller{
		bridge:    bridge,
		cfg:       cfg,
		clock:     clock.Real{},
		publisher: nopPublisher{},
		commands:  nopCommandLog{},
		recorder:  nopRecorder{},
		store:     entity.NewStore(),
		overrides: overlay.New[entity.Key](cfg.OverrideCycles, Intent.Same),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.writes = debounce.NewKeyed[entity.Key](cfg.UpdateDebounce, debounce.WithClock(c.clock))
	c.loop = reconcile.New[entity.Key](reconcile.Config{
		Name:            "hue",
		RefreshInterval: cfg.RefreshInterval,
		GracePeriod:     cfg.GracePeriod,
	}, c.poll, c.afterPoll, reconcile.WithClock(c.clock), reconcile.WithRecorder(c.recorder))

	return c
}

// Start loads all entities, picks the initial focus and starts polling.
// A failed initial load is not fatal; the loop keeps retrying.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	if err := c.RefetchAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial bridge refresh failed, will retry")
	}

	focus := c.cfg.DefaultFocus
	if focus.IsZero() {
		if best, ok := entity.Best(c.store.All()); ok {
			focus = best.Key
		}
	}
	if !focus.IsZero() {
		if err := c.SetFocus(focus); err != nil {
			log.Warn().Err(err).Str("entity", focus.String()).Msg("Ignoring invalid default focus")
		}
	}

	c.loop.Start(ctx)
	log.Info().Int("entities", c.store.Len()).Str("focus", focus.String()).Msg("Hue controller started")
}

// Stop stops polling and drops pending writes.
func (c *Controller) Stop() {
	c.loop.Stop()
	c.writes.Cancel()
}

// RefetchAll replaces the store with every light and group on the bridge.
func (c *Controller) RefetchAll(ctx context.Context) error {
	entities, err := c.fetchAll(ctx)
	if err != nil {
		return err
	}
	c.applyAll(entities)
	c.afterPoll()
	return nil
}

// RefetchEntity refreshes a single known entity.
func (c *Controller) RefetchEntity(ctx context.Context, key entity.Key) error {
	e, err := c.fetchEntity(ctx, key)
	if err != nil {
		return err
	}
	c.applyOne(e)
	c.afterPoll()
	return nil
}

// RefreshNow polls on the next tick instead of waiting for the interval.
func (c *Controller) RefreshNow() {
	c.loop.Trigger()
}

// LoopState returns the polling loop state.
func (c *Controller) LoopState() reconcile.State {
	return c.loop.State()
}

// SetFocus changes the focused entity. The entity does not have to be
// loaded yet; until it is, the view reports NoLight.
func (c *Controller) SetFocus(key entity.Key) error {
	if !key.Kind.Valid() || key.ID == "" {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, key)
	}

	c.mu.Lock()
	c.focus = key
	c.hasFocus = true
	c.mu.Unlock()

	c.loop.SetFocus(key)
	c.publish()
	return nil
}

// Focus returns the focused entity key.
func (c *Controller) Focus() (entity.Key, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focus, c.hasFocus
}

// SetEntity records a user edit. The view reflects it immediately, the
// bridge write is debounced per entity and polling backs off for the
// grace period.
func (c *Controller) SetEntity(key entity.Key, col color.Color, on bool) error {
	e, ok := c.store.Find(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, key)
	}

	col = col.Clamp()
	if e.Dimmable {
		// Only brightness reaches the light; show what the bridge will report.
		col = color.FromDimmable(col.Vendor().Bri)
	}
	intent := Intent{Color: col, On: on}
	dimmable := e.Dimmable
	c.overrides.Set(key, intent)
	c.loop.NoteLocalEdit()
	c.recorder.OverridesActive("hue", c.overrides.Len())

	c.writes.Call(key, func() { c.write(key, intent, dimmable) })
	c.publish()
	return nil
}

// UpdateFocused edits the focused entity.
func (c *Controller) UpdateFocused(col color.Color, on bool) error {
	key, ok := c.Focus()
	if !ok {
		return ErrNoFocus
	}
	return c.SetEntity(key, col, on)
}

// CurrentEntity returns the focused entity as displayed, or NoLight.
func (c *Controller) CurrentEntity() (entity.Entity, bool) {
	key, ok := c.Focus()
	if !ok {
		return NoLight, false
	}
	e, ok := c.store.Find(key)
	if !ok {
		return NoLight, false
	}
	return c.displayed(e), true
}

// Entities returns every entity as displayed.
func (c *Controller) Entities() []entity.Entity {
	all := c.store.All()
	for i := range all {
		all[i] = c.displayed(all[i])
	}
	return all
}

// View returns the read model. It is always fully populated.
func (c *Controller) View() View {
	focus, hasFocus := c.Focus()
	current, available := c.CurrentEntity()
	return View{
		Focus:     focus,
		HasFocus:  hasFocus,
		Current:   current,
		Available: available,
		Entities:  c.Entities(),
		Overrides: c.overrides.Len(),
	}
}

func (c *Controller) displayed(e entity.Entity) entity.Entity {
	in := c.overrides.View(e.Key, Intent{Color: e.Color, On: e.On})
	e.Color = in.Color
	e.On = in.On
	return e
}

// poll is the loop's fetch func: a full refresh without focus, otherwise
// only the focused entity.
func (c *Controller) poll(ctx context.Context, key entity.Key, focused bool) (func(), error) {
	if !focused {
		entities, err := c.fetchAll(ctx)
		if err != nil {
			return nil, err
		}
		return func() { c.applyAll(entities) }, nil
	}

	e, err := c.fetchEntity(ctx, key)
	if err != nil {
		return nil, err
	}
	return func() { c.applyOne(e) }, nil
}

func (c *Controller) fetchAll(ctx context.Context) ([]entity.Entity, error) {
	lights, err := c.bridge.GetLights(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := c.bridge.GetGroups(ctx)
	if err != nil {
		return nil, err
	}

	lightEntities := LightEntities(lights)
	return append(GroupEntities(groups, lightEntities), lightEntities...), nil
}

func (c *Controller) fetchEntity(ctx context.Context, key entity.Key) (entity.Entity, error) {
	switch key.Kind {
	case entity.KindLight:
		l, err := c.bridge.GetLight(ctx, key.ID)
		if err != nil {
			return entity.Entity{}, err
		}
		return LightEntity(key.ID, l), nil
	case entity.KindGroup:
		g, err := c.bridge.GetGroup(ctx, key.ID)
		if err != nil {
			return entity.Entity{}, err
		}
		return GroupEntity(key.ID, g, c.store.Lights()), nil
	}
	return entity.Entity{}, fmt.Errorf("%w: %s", ErrUnknownEntity, key)
}

func (c *Controller) applyAll(entities []entity.Entity) {
	c.store.ReplaceAll(entities)
	for _, e := range entities {
		c.overrides.Confirm(e.Key, Intent{Color: e.Color, On: e.On})
	}
}

func (c *Controller) applyOne(e entity.Entity) {
	if !c.store.ReplaceOne(e) {
		log.Debug().Str("entity", e.Key.String()).Msg("Polled entity not in store, ignoring")
		return
	}
	c.overrides.Confirm(e.Key, Intent{Color: e.Color, On: e.On})
}

// afterPoll runs under the loop lock and must not call back into the loop.
func (c *Controller) afterPoll() {
	c.overrides.Decay()
	c.recorder.OverridesActive("hue", c.overrides.Len())
	c.publish()
}

func (c *Controller) write(key entity.Key, intent Intent, dimmable bool) {
	c.mu.Lock()
	parent := c.ctx
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, c.cfg.WriteTimeout)
	defer cancel()

	cmd := Command{Color: intent.Color, On: intent.On, Dimmable: dimmable}
	var err error
	switch key.Kind {
	case entity.KindLight:
		err = c.bridge.SetLight(ctx, key.ID, cmd)
	case entity.KindGroup:
		err = c.bridge.SetGroup(ctx, key.ID, cmd)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownEntity, key)
	}
	c.recorder.WriteCompleted(string(key.Kind), err)

	payload := map[string]any{"color": intent.Color, "on": intent.On}
	if err == nil {
		c.commands.CommandSent("hue", key.String(), payload)
		return
	}

	log.Warn().Err(err).Str("entity", key.String()).Msg("Failed to write entity state")
	c.commands.CommandFailed("hue", key.String(), payload, err)

	// Revert unless a newer edit has replaced the failed one.
	if c.overrides.ClearIf(key, intent) {
		c.recorder.OverridesActive("hue", c.overrides.Len())
	}
	c.publisher.Publish(eventbus.Event{
		Type: eventbus.EventTypeCommandFailed,
		Data: map[string]interface{}{
			"source": "hue",
			"target": key.String(),
			"error":  err.Error(),
		},
	})
	c.publish()
}

func (c *Controller) publish() {
	// Views are numbered in the order they are taken.
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	c.seq++
	c.publisher.Publish(eventbus.Event{
		Type: eventbus.EventTypeHueUpdated,
		Data: map[string]interface{}{"view": c.View()},
		Seq:  c.seq,
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
