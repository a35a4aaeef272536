// Package modules contains Go modules shared by Lua scripts.
package modules

import (
	lua "github.com/yuin/gopher-lua"
)

// LuaToGo converts a Lua value to a Go value
func LuaToGo(v lua.LValue) interface{} {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	case *lua.LTable:
		// Sequences become slices, everything else a map
		isArray := true
		maxIdx := 0
		val.ForEach(func(k, _ lua.LValue) {
			if num, ok := k.(lua.LNumber); ok {
				if idx := int(num); idx > maxIdx {
					maxIdx = idx
				}
			} else {
				isArray = false
			}
		})

		if isArray && maxIdx > 0 {
			arr := make([]interface{}, maxIdx)
			val.ForEach(func(k, v lua.LValue) {
				if num, ok := k.(lua.LNumber); ok {
					arr[int(num)-1] = LuaToGo(v)
				}
			})
			return arr
		}
		return LuaTableToMap(val)
	case *lua.LNilType:
		return nil
	default:
		return v.String()
	}
}

// LuaTableToMap converts the string keys of a Lua table to a Go map
func LuaTableToMap(tbl *lua.LTable) map[string]any {
	m := make(map[string]any)
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			m[string(ks)] = LuaToGo(v)
		}
	})
	return m
}

// NumberField reads a numeric field of tbl. It reports false when the field
// is missing or not a number.
func NumberField(tbl *lua.LTable, name string) (float64, bool) {
	n, ok := tbl.RawGetString(name).(lua.LNumber)
	return float64(n), ok
}
