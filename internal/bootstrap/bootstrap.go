// Package bootstrap builds the model store and rule manager from the service configuration.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/processgpt/dmnrules/internal/config"
	"github.com/processgpt/dmnrules/internal/metrics"
	"github.com/processgpt/dmnrules/multitenantengine"
	"github.com/processgpt/dmnrules/rules"
)

// Backend is the configured model store plus the handles callers need from it
type Backend struct {
	// Store is the read path, wrapped with retries
	Store rules.ModelStore

	// Repo is nil for read-only backends
	Repo rules.ModelRepository

	// Files is set for the file backend
	Files *rules.FileModelStore

	// DB is set for the postgres backend
	DB *sql.DB
}

// Close releases the database connection, if any
func (b *Backend) Close() error {
	if b.DB != nil {
		return b.DB.Close()
	}
	return nil
}

// OpenBackend connects the store selected by cfg.Backend
func OpenBackend(ctx context.Context, cfg config.StoreConfig) (*Backend, error) {
	var be Backend
	var base rules.ModelStore

	switch cfg.Backend {
	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		pg := rules.NewPostgresModelStore(db)
		be.DB, be.Repo, base = db, pg, pg

	case config.StoreFile:
		fs := rules.NewFileModelStore(cfg.ModelDir)
		be.Files, base = fs, fs

	case config.StoreMemory:
		mem := rules.NewInMemoryModelStore()
		be.Repo, base = mem, mem

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	be.Store = rules.NewRetryingStore(base, RetryConfig(cfg))
	return &be, nil
}

// RetryConfig translates the store retry settings
func RetryConfig(cfg config.StoreConfig) rules.RetryConfig {
	rc := rules.DefaultRetryConfig()
	rc.MaxRetries = cfg.RetryAttempts
	if cfg.RetryInitial > 0 {
		rc.InitialInterval = cfg.RetryInitial
	}
	return rc
}

// ManagerConfig translates the engine settings
func ManagerConfig(cfg config.EngineConfig) multitenantengine.Config {
	mc := multitenantengine.DefaultConfig()
	mc.ReloadTimeout = cfg.ReloadTimeout
	mc.MinScore = cfg.MinScore
	mc.Cache.TTL = cfg.CacheTTL
	return mc
}

// NewManager builds a rule manager over the backend's read path
func NewManager(be *Backend, cfg config.EngineConfig, m *metrics.Metrics) *multitenantengine.Manager {
	return multitenantengine.NewManager(be.Store, ManagerConfig(cfg), m)
}
