package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite has no schemas. Datasets are emulated by prefixing table
// names with "<dataset>__".
const sqliteDatasetSeparator = "__"

type SQLiteConfig struct {
	OnDisk bool
	Path   string
}

type SQLiteStorage struct {
	SQLiteConfig
	sqlStorage
}

type sqliteDialect struct{}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	path := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		path = cfg[0].Path
	}

	sourceName := ":memory:"
	if onDisk {
		if path == "" {
			return nil, fmt.Errorf("sqlite path is required when on disk")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating directory: %w", err)
		}
		sourceName = path
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each connection to :memory: is a separate database. Single
	// writer anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk: onDisk,
			Path:   path,
		},
		sqlStorage: sqlStorage{
			db:      db,
			dialect: sqliteDialect{},
		},
	}, nil
}

func (sqliteDialect) placeholder(i int) string {
	return "?"
}

func (sqliteDialect) columnType(t ColumnType) string {
	switch t {
	case ColumnTypeBigInt:
		return "INTEGER"
	case ColumnTypeDouble:
		return "REAL"
	case ColumnTypeBool:
		return "BOOLEAN"
	case ColumnTypeTimestamp:
		return "TIMESTAMP"
	}
	return "TEXT"
}

func (sqliteDialect) tableName(dataset string, name string) string {
	if dataset == "" {
		return name
	}
	return dataset + sqliteDatasetSeparator + name
}

func (d sqliteDialect) table(dataset string, name string) string {
	return quoteIdent(d.tableName(dataset, name))
}

func (sqliteDialect) createDataset(dataset string) string {
	return ""
}

func (sqliteDialect) listTables(db *sql.DB) ([]TableInfo, error) {
	rows, err := db.Query(`
SELECT name
FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []TableInfo{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		info := TableInfo{Name: name}
		if parts := strings.SplitN(name, sqliteDatasetSeparator, 2); len(parts) == 2 && parts[0] != "" {
			info.Dataset = parts[0]
			info.Name = parts[1]
		}
		tables = append(tables, info)
	}
	return tables, rows.Err()
}

func (d sqliteDialect) tableColumns(db *sql.DB, dataset string, name string) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, d.tableName(dataset, name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := []string{}
	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return nil, err
		}
		columns = append(columns, column)
	}
	return columns, rows.Err()
}
