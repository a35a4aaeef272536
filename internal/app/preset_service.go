package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huedash/internal/config"
	"github.com/dokzlo13/huedash/internal/kv"
	"github.com/dokzlo13/huedash/internal/presets"
)

// PresetService owns the preset store, its persistence and the preset script.
type PresetService struct {
	bucket *kv.SQLiteBucket
	Store  *presets.Store
	Lua    *LuaService
}

// NewPresetService creates the preset store for lights.
func NewPresetService(cfg *config.Config, db *sql.DB, lights presets.Lights) *PresetService {
	bucket := kv.NewSQLiteBucket(db, "presets")
	store := presets.NewStore(bucket, lights)

	return &PresetService{
		bucket: bucket,
		Store:  store,
		Lua:    NewLuaService(cfg.Presets.Script, presets.NewModule(store)),
	}
}

// Start runs the preset script and then applies saved colors, so saved
// colors win over script defaults.
func (s *PresetService) Start(ctx context.Context) error {
	if err := s.Lua.LoadScript(ctx); err != nil {
		return fmt.Errorf("failed to load preset script: %w", err)
	}
	if err := s.Store.Load(); err != nil {
		return err
	}
	log.Info().Int("presets", len(s.Store.List())).Msg("Presets ready")
	return nil
}

// Reset deletes every saved color.
func (s *PresetService) Reset() error {
	keys, err := s.bucket.Keys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := s.bucket.Delete(key); err != nil {
			return err
		}
	}
	log.Info().Int("deleted", len(keys)).Msg("Saved presets cleared")
	return nil
}

// Close releases the Lua runtime.
func (s *PresetService) Close() {
	s.Lua.Close()
}
