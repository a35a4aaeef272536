package presets

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/huedash/internal/color"
	"github.com/dokzlo13/huedash/internal/lua/modules"
)

// Module exposes the store to scripts as require("preset").
//
//	local preset = require("preset")
//	preset.define("reading", "Reading", {hue = 40, sat = 0.5, bri = 0.9})
//	preset.define("preset_1", "Slot")   -- empty slot
//	preset.remove("night_light")
type Module struct {
	store *Store
}

// NewModule creates the Lua module for store.
func NewModule(store *Store) *Module {
	return &Module{store: store}
}

// Name returns the require name.
func (m *Module) Name() string {
	return "preset"
}

// Loader is the module loader for Lua
func (m *Module) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "define", L.NewFunction(m.define))
	L.SetField(mod, "remove", L.NewFunction(m.remove))
	L.SetField(mod, "list", L.NewFunction(m.list))

	L.Push(mod)
	return 1
}

func (m *Module) define(L *lua.LState) int {
	id := L.CheckString(1)
	name := L.OptString(2, id)

	var c *color.Color
	if tbl, ok := L.Get(3).(*lua.LTable); ok {
		hue, okHue := modules.NumberField(tbl, "hue")
		sat, okSat := modules.NumberField(tbl, "sat")
		bri, okBri := modules.NumberField(tbl, "bri")
		if !okHue || !okSat || !okBri {
			L.ArgError(3, "color needs numeric hue, sat and bri")
			return 0
		}
		col := color.New(hue, sat, bri)
		c = &col
	}

	m.store.Define(id, name, c)
	return 0
}

func (m *Module) remove(L *lua.LState) int {
	L.Push(lua.LBool(m.store.Remove(L.CheckString(1))))
	return 1
}

func (m *Module) list(L *lua.LState) int {
	tbl := L.NewTable()
	for _, p := range m.store.List() {
		entry := L.NewTable()
		L.SetField(entry, "id", lua.LString(p.ID))
		L.SetField(entry, "name", lua.LString(p.Name))
		if p.Color != nil {
			col := L.NewTable()
			L.SetField(col, "hue", lua.LNumber(p.Color.Hue))
			L.SetField(col, "sat", lua.LNumber(p.Color.Sat))
			L.SetField(col, "bri", lua.LNumber(p.Color.Bri))
			L.SetField(entry, "color", col)
		}
		tbl.Append(entry)
	}
	L.Push(tbl)
	return 1
}
