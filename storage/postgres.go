package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type PSQLStorage struct {
	sqlStorage
}

type psqlDialect struct{}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, all tables outside the system schemas are
// dropped on startup. You probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	s := &PSQLStorage{
		sqlStorage: sqlStorage{
			db:      db,
			dialect: psqlDialect{},
		},
	}

	if clearDB {
		tables, err := s.ListTables()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("clearing db: %w", err)
		}
		for _, t := range tables {
			_, err := db.Exec("DROP TABLE IF EXISTS " + s.dialect.table(t.Dataset, t.Name) + " CASCADE")
			if err != nil {
				db.Close()
				return nil, fmt.Errorf("clearing db: %w", err)
			}
		}
	}

	return s, nil
}

func (psqlDialect) placeholder(i int) string {
	return fmt.Sprintf("$%d", i)
}

func (psqlDialect) columnType(t ColumnType) string {
	switch t {
	case ColumnTypeBigInt:
		return "BIGINT"
	case ColumnTypeDouble:
		return "DOUBLE PRECISION"
	case ColumnTypeBool:
		return "BOOLEAN"
	case ColumnTypeTimestamp:
		return "TIMESTAMPTZ"
	}
	return "TEXT"
}

func (psqlDialect) table(dataset string, name string) string {
	if dataset == "" {
		return quoteIdent(name)
	}
	return quoteIdent(dataset) + "." + quoteIdent(name)
}

func (psqlDialect) createDataset(dataset string) string {
	if dataset == "" {
		return ""
	}
	return "CREATE SCHEMA IF NOT EXISTS " + quoteIdent(dataset)
}

func (psqlDialect) listTables(db *sql.DB) ([]TableInfo, error) {
	return informationSchemaTables(db, "information_schema", "pg_catalog")
}

func (psqlDialect) tableColumns(db *sql.DB, dataset string, name string) ([]string, error) {
	if dataset == "" {
		dataset = "public"
	}
	return informationSchemaColumns(db, "$", dataset, name)
}
