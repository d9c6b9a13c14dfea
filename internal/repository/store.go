package repository

import (
	"context"
	"fmt"
	"log/slog"

	"notely-server/internal/config"

	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"
)

// Store owns the storage connection and hands out repositories bound to it.
type Store interface {
	Notes() NoteRepository
	Users() UserRepository
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the Store selected by cfg.Driver. The caller owns the returned
// store and must Close it on shutdown.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}

		store := NewPostgresStore(db)
		if cfg.Migrate {
			if err := store.RunMigrations(ctx); err != nil {
				db.Close()
				return nil, err
			}
			logger.Info("database migrations applied")
		}
		return store, nil

	case config.DriverCouchDB:
		client, err := kivik.New("couch", cfg.Couch.URL())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
		}

		if err := EnsureCouchDB(ctx, client, cfg.Couch.Name); err != nil {
			client.Close()
			return nil, err
		}
		logger.Info("connected to CouchDB", "host", cfg.Couch.Host, "port", cfg.Couch.Port, "db", cfg.Couch.Name)
		return NewCouchStore(client, cfg.Couch.Name), nil

	case config.DriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return NewMemoryStore(), nil
	}

	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}
