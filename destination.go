package realtime

import (
	"fmt"

	"github.com/trafiklab-tools/realtime/config"
	"github.com/trafiklab-tools/realtime/storage"
)

// Opener for the configured destination, along with a description
// of it.
func OpenDestination(cfg *config.Config) (storage.Opener, string, error) {
	switch cfg.Destination {
	case "duckdb", "":
		return func() (storage.Storage, error) {
			return storage.NewDuckDBStorage(storage.DuckDBConfig{Path: cfg.DBPath})
		}, fmt.Sprintf("duckdb at %s", cfg.DBPath), nil
	case "sqlite":
		return func() (storage.Storage, error) {
			return storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Path: cfg.DBPath})
		}, fmt.Sprintf("sqlite at %s", cfg.DBPath), nil
	case "postgres":
		return func() (storage.Storage, error) {
			return storage.NewPSQLStorage(cfg.PostgresURL, false)
		}, "postgres", nil
	}
	return nil, "", fmt.Errorf("unknown destination '%s'", cfg.Destination)
}
