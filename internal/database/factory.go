package database

import (
	"fmt"
	"os"
	"path/filepath"

	"dirkeep/internal/config"
	"dirkeep/internal/dk"
)

// DatabaseFileName is the name of the history database inside data_dir.
const DatabaseFileName = "dirkeep.db"

// NewRunStoreFromConfig creates a dk.RunStore based on the database config type.
// Type "none" (or empty) disables run history and returns a nil store.
func NewRunStoreFromConfig(cfg config.DatabaseConfig) (dk.RunStore, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		db, err := NewSQLiteDatabase(filepath.Join(cfg.DataDir, DatabaseFileName))
		if err != nil {
			return nil, err
		}
		return db, nil
	case "memory":
		db, err := NewSQLiteDatabase(":memory:")
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
