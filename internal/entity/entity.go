// Package entity holds the controllable units shown on the dashboard and the
// in-memory store refreshed by polling.
package entity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dokzlo13/huedash/internal/color"
)

// Kind identifies the type of entity.
type Kind string

// Entity kinds
const (
	KindLight Kind = "light"
	KindGroup Kind = "group"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindLight || k == KindGroup
}

// Key uniquely identifies an entity.
type Key struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Kind, k.ID)
}

// ParseKey parses the "kind/id" form produced by String.
func ParseKey(s string) (Key, error) {
	kind, id, ok := strings.Cut(s, "/")
	k := Key{Kind: Kind(kind), ID: id}
	if !ok || !k.Kind.Valid() || id == "" {
		return Key{}, fmt.Errorf("invalid entity key %q, want light/<id> or group/<id>", s)
	}
	return k, nil
}

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool {
	return k.Kind == "" && k.ID == ""
}

// Entity is a light or a group.
type Entity struct {
	Key       Key         `json:"key"`
	Name      string      `json:"name"`
	Color     color.Color `json:"color"`
	On        bool        `json:"on"`
	Reachable bool        `json:"reachable"`
	Dimmable  bool        `json:"dimmable,omitempty"` // lights without a color channel
	Lights    []string    `json:"lights,omitempty"`   // member light IDs, groups only
}

// Score ranks entities for picking a sensible default focus.
func Score(e Entity) int {
	score := 0
	if e.On && e.Reachable {
		score++
	}
	if e.Key.Kind == KindGroup {
		score += 2
	}
	if e.Reachable {
		score += 3
	}
	return score
}

// Best returns the highest scoring entity. Ties keep the earlier entity.
func Best(entities []Entity) (Entity, bool) {
	if len(entities) == 0 {
		return Entity{}, false
	}
	best := entities[0]
	for _, e := range entities[1:] {
		if Score(e) > Score(best) {
			best = e
		}
	}
	return best, true
}

// GroupReachable reports whether any of the member lights is reachable.
func GroupReachable(members []string, lights []Entity) bool {
	ids := make(map[string]struct{}, len(members))
	for _, id := range members {
		ids[id] = struct{}{}
	}
	for _, l := range lights {
		if _, ok := ids[l.Key.ID]; ok && l.Reachable {
			return true
		}
	}
	return false
}

// lessID orders numeric IDs numerically and everything else lexically.
func lessID(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return a < b
}
