package hue

import (
	"github.com/amimof/huego"

	"github.com/dokzlo13/huedash/internal/color"
	"github.com/dokzlo13/huedash/internal/entity"
)

// stateColor derives a color from a light state or group action.
// Lights without a color channel only report brightness.
func stateColor(s *huego.State) color.Color {
	if s == nil {
		return color.Color{}
	}
	if hasColor(s) {
		return color.FromVendor(s.Hue, s.Sat, s.Bri)
	}
	return color.FromDimmable(s.Bri)
}

func hasColor(s *huego.State) bool {
	return s.ColorMode != "" || s.Hue != 0
}

// LightEntity converts a bridge light into an entity.
func LightEntity(id string, l huego.Light) entity.Entity {
	e := entity.Entity{
		Key:   entity.Key{Kind: entity.KindLight, ID: id},
		Name:  l.Name,
		Color: stateColor(l.State),
	}
	if l.State != nil {
		e.On = l.State.On
		e.Reachable = l.State.Reachable
		e.Dimmable = !hasColor(l.State)
	}
	return e
}

// GroupEntity converts a bridge group into an entity. Reachability is
// derived from the member lights found in lights.
func GroupEntity(id string, g huego.Group, lights []entity.Entity) entity.Entity {
	e := entity.Entity{
		Key:       entity.Key{Kind: entity.KindGroup, ID: id},
		Name:      g.Name,
		Color:     stateColor(g.State),
		Lights:    append([]string(nil), g.Lights...),
		Reachable: entity.GroupReachable(g.Lights, lights),
	}
	if g.GroupState != nil {
		e.On = g.GroupState.AnyOn
	}
	return e
}

// LightEntities converts a light listing.
func LightEntities(lights map[string]huego.Light) []entity.Entity {
	out := make([]entity.Entity, 0, len(lights))
	for id, l := range lights {
		out = append(out, LightEntity(id, l))
	}
	return out
}

// GroupEntities converts a group listing.
func GroupEntities(groups map[string]huego.Group, lights []entity.Entity) []entity.Entity {
	out := make([]entity.Entity, 0, len(groups))
	for id, g := range groups {
		out = append(out, GroupEntity(id, g, lights))
	}
	return out
}
