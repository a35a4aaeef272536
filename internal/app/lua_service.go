package app

import (
	"context"

	"github.com/rs/zerolog/log"

	luart "github.com/dokzlo13/huedash/internal/lua"
)

// LuaService wraps the Lua runtime that runs the configuration script.
type LuaService struct {
	script  string
	Runtime *luart.Runtime
}

// NewLuaService creates a runtime with mods preloaded. script may be empty.
func NewLuaService(script string, mods ...luart.Module) *LuaService {
	return &LuaService{
		script:  script,
		Runtime: luart.NewRuntime(mods...),
	}
}

// LoadScript executes the configured script, if any.
func (s *LuaService) LoadScript(ctx context.Context) error {
	if s.script == "" {
		log.Debug().Msg("No Lua script configured")
		return nil
	}
	if err := s.Runtime.LoadScript(ctx, s.script); err != nil {
		return err
	}
	log.Info().Str("script", s.script).Msg("Lua script loaded")
	return nil
}

// Close closes the Lua runtime.
func (s *LuaService) Close() {
	if s.Runtime != nil {
		s.Runtime.Close()
	}
}
