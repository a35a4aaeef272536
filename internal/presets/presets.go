// Package presets manages the lighting presets shown on the dashboard.
package presets

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huedash/internal/color"
	"github.com/dokzlo13/huedash/internal/entity"
)

var (
	ErrUnknownPreset = errors.New("unknown preset")
	ErrEmptyPreset   = errors.New("preset has no color")
	ErrNoCurrent     = errors.New("no focused entity to save from")
)

// Preset is a named color. Color is nil for empty slots.
type Preset struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Color *color.Color `json:"color"`
}

func colorPtr(hue, sat, bri float64) *color.Color {
	c := color.New(hue, sat, bri)
	return &c
}

// Builtin returns the default presets in display order.
func Builtin() []Preset {
	return []Preset{
		{ID: "normal", Name: "Normal", Color: colorPtr(47, 0.476, 1)},
		{ID: "night_light", Name: "Night Light", Color: colorPtr(37, 0.587, 0.05)},
		{ID: "focus", Name: "Focus", Color: colorPtr(219, 0.366, 1)},
		{ID: "relax", Name: "Relax", Color: colorPtr(263, 0.846, 0.66)},
		{ID: "dimmed", Name: "Dimmed", Color: colorPtr(47, 0.476, 0.54)},
		{ID: "preset_1", Name: "Preset 1"},
		{ID: "preset_2", Name: "Preset 2"},
		{ID: "preset_3", Name: "Preset 3"},
		{ID: "preset_4", Name: "Preset 4"},
		{ID: "preset_5", Name: "Preset 5"},
	}
}

// Bucket persists saved colors.
type Bucket interface {
	Put(key string, value any) error
	Get(key string, out any) (bool, error)
	Keys() ([]string, error)
}

// Lights is the Hue side the presets act on.
type Lights interface {
	CurrentEntity() (entity.Entity, bool)
	UpdateFocused(col color.Color, on bool) error
}

// Store holds presets in display order.
type Store struct {
	bucket Bucket
	lights Lights

	mu      sync.RWMutex
	order   []string
	presets map[string]Preset
}

// NewStore creates a store seeded with the built-in presets.
func NewStore(bucket Bucket, lights Lights) *Store {
	s := &Store{
		bucket:  bucket,
		lights:  lights,
		presets: make(map[string]Preset),
	}
	for _, p := range Builtin() {
		s.Define(p.ID, p.Name, p.Color)
	}
	return s
}

// Load applies saved colors from the bucket. Saved colors for presets that
// no longer exist are ignored.
func (s *Store) Load() error {
	keys, err := s.bucket.Keys()
	if err != nil {
		return fmt.Errorf("failed to list saved presets: %w", err)
	}

	loaded := 0
	for _, id := range keys {
		var c color.Color
		ok, err := s.bucket.Get(id, &c)
		if err != nil {
			log.Warn().Err(err).Str("preset", id).Msg("Skipping unreadable saved preset")
			continue
		}
		if !ok {
			continue
		}

		s.mu.Lock()
		if p, exists := s.presets[id]; exists {
			c = c.Clamp()
			p.Color = &c
			s.presets[id] = p
			loaded++
		}
		s.mu.Unlock()
	}

	log.Debug().Int("loaded", loaded).Msg("Saved presets loaded")
	return nil
}

// Define adds or replaces a preset. New presets are appended to the order.
func (s *Store) Define(id, name string, c *color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c != nil {
		clamped := c.Clamp()
		c = &clamped
	}
	if _, exists := s.presets[id]; !exists {
		s.order = append(s.order, id)
	}
	s.presets[id] = Preset{ID: id, Name: name, Color: c}
}

// Remove deletes a preset. It reports whether the preset existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.presets[id]; !exists {
		return false
	}
	delete(s.presets, id)
	for i, candidate := range s.order {
		if candidate == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns all presets in display order.
func (s *Store) List() []Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Preset, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.presets[id])
	}
	return out
}

// Get returns a preset by ID.
func (s *Store) Get(id string) (Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.presets[id]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %s", ErrUnknownPreset, id)
	}
	return p, nil
}

// Save stores c as the color of preset id and persists it.
func (s *Store) Save(id string, c color.Color) (Preset, error) {
	c = c.Clamp()

	s.mu.Lock()
	p, ok := s.presets[id]
	if !ok {
		s.mu.Unlock()
		return Preset{}, fmt.Errorf("%w: %s", ErrUnknownPreset, id)
	}
	p.Color = &c
	s.presets[id] = p
	s.mu.Unlock()

	if err := s.bucket.Put(id, c); err != nil {
		return p, fmt.Errorf("failed to persist preset %s: %w", id, err)
	}
	log.Info().Str("preset", id).Str("color", c.String()).Msg("Preset saved")
	return p, nil
}

// SaveCurrent stores the displayed color of the focused entity.
func (s *Store) SaveCurrent(id string) (Preset, error) {
	current, ok := s.lights.CurrentEntity()
	if !ok {
		return Preset{}, ErrNoCurrent
	}
	return s.Save(id, current.Color)
}

// Apply sets the focused entity to the preset color and turns it on.
func (s *Store) Apply(id string) error {
	p, err := s.Get(id)
	if err != nil {
		return err
	}
	if p.Color == nil {
		return fmt.Errorf("%w: %s", ErrEmptyPreset, id)
	}
	return s.lights.UpdateFocused(*p.Color, true)
}
