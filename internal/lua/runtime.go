// Package lua hosts the embedded Lua VM used for user scripts.
package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/huedash/internal/lua/modules"
)

// ErrRuntimeClosed is returned when the Lua runtime is closed
var ErrRuntimeClosed = errors.New("lua runtime closed")

// Module is a Go module exposed to scripts through require(name).
type Module interface {
	Name() string
	Loader(L *lua.LState) int
}

// Runtime manages a Lua VM. LState is not safe for concurrent use, so every
// entry point holds the runtime lock.
type Runtime struct {
	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

// NewRuntime creates a VM with the log module and the given modules preloaded.
func NewRuntime(mods ...Module) *Runtime {
	L := lua.NewState()
	L.PreloadModule("log", modules.NewLogModule().Loader)
	for _, m := range mods {
		L.PreloadModule(m.Name(), m.Loader)
	}
	return &Runtime{L: L}
}

// LoadScript executes a script file.
func (r *Runtime) LoadScript(ctx context.Context, path string) error {
	log.Info().Str("path", path).Msg("Loading Lua script")
	if err := r.run(ctx, func() error { return r.L.DoFile(path) }); err != nil {
		return err
	}
	log.Info().Msg("Lua script loaded successfully")
	return nil
}

// DoString executes a chunk of Lua source.
func (r *Runtime) DoString(ctx context.Context, src string) error {
	return r.run(ctx, func() error { return r.L.DoString(src) })
}

func (r *Runtime) run(ctx context.Context, fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRuntimeClosed
	}
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	if err := fn(); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}
	return nil
}

// Close closes the VM. Further calls return ErrRuntimeClosed.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.L.Close()
}
