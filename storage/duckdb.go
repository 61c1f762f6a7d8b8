package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

type DuckDBConfig struct {
	// Database file. Blank for an in-memory database.
	Path string
}

// Storage in a single DuckDB file. Datasets map to schemas.
type DuckDBStorage struct {
	DuckDBConfig
	sqlStorage
}

type duckdbDialect struct{}

func NewDuckDBStorage(cfg ...DuckDBConfig) (*DuckDBStorage, error) {
	path := ""
	if len(cfg) > 0 {
		path = cfg[0].Path
	}

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DuckDBStorage{
		DuckDBConfig: DuckDBConfig{Path: path},
		sqlStorage: sqlStorage{
			db:      db,
			dialect: duckdbDialect{},
		},
	}, nil
}

func (duckdbDialect) placeholder(i int) string {
	return "?"
}

func (duckdbDialect) columnType(t ColumnType) string {
	switch t {
	case ColumnTypeBigInt:
		return "BIGINT"
	case ColumnTypeDouble:
		return "DOUBLE"
	case ColumnTypeBool:
		return "BOOLEAN"
	case ColumnTypeTimestamp:
		return "TIMESTAMP"
	}
	return "VARCHAR"
}

func (duckdbDialect) table(dataset string, name string) string {
	if dataset == "" {
		return quoteIdent(name)
	}
	return quoteIdent(dataset) + "." + quoteIdent(name)
}

func (duckdbDialect) createDataset(dataset string) string {
	if dataset == "" {
		return ""
	}
	return "CREATE SCHEMA IF NOT EXISTS " + quoteIdent(dataset)
}

func (duckdbDialect) listTables(db *sql.DB) ([]TableInfo, error) {
	return informationSchemaTables(db, "information_schema", "pg_catalog")
}

func (duckdbDialect) tableColumns(db *sql.DB, dataset string, name string) ([]string, error) {
	if dataset == "" {
		dataset = "main"
	}
	return informationSchemaColumns(db, "?", dataset, name)
}
