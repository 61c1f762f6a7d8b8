package storage

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// The bits that differ between SQL backends.
type dialect interface {
	// 1-based bind parameter.
	placeholder(i int) string
	columnType(t ColumnType) string

	// Fully qualified, quoted table name.
	table(dataset string, name string) string

	// Statement creating the dataset, or "" if datasets aren't
	// a thing for this backend.
	createDataset(dataset string) string

	// Query returning (dataset, table) pairs.
	listTables(db *sql.DB) ([]TableInfo, error)

	// Names of columns in an existing table. Empty if the table
	// doesn't exist.
	tableColumns(db *sql.DB, dataset string, name string) ([]string, error)
}

// Storage on top of database/sql. Embedded by the concrete backends.
type sqlStorage struct {
	db      *sql.DB
	dialect dialect
}

type sqlTableWriter struct {
	schema  TableSchema
	tx      *sql.Tx
	insert  *sql.Stmt
	delete  *sql.Stmt
	keyIdx  []int
	loadID  string
	merge   bool
	stats   WriteStats
	nullKey int
}

func (s *sqlStorage) EnsureTable(dataset string, schema TableSchema) error {
	if len(schema.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", schema.Name)
	}
	if _, err := schema.keyIndexes(); err != nil {
		return err
	}

	if q := s.dialect.createDataset(dataset); q != "" {
		_, err := s.db.Exec(q)
		if err != nil {
			return fmt.Errorf("creating dataset %s: %w", dataset, err)
		}
	}

	existing, err := s.dialect.tableColumns(s.db, dataset, schema.Name)
	if err != nil {
		return fmt.Errorf("reading columns of %s: %w", schema.Name, err)
	}
	if len(existing) > 0 {
		if missing := missingColumns(schema, existing); len(missing) > 0 {
			return fmt.Errorf("schema conflict: table %s lacks columns %s", schema.Name, strings.Join(missing, ", "))
		}
		return nil
	}

	cols := []string{}
	for _, c := range schema.Columns {
		cols = append(cols, fmt.Sprintf("    %s %s", quoteIdent(c.Name), s.dialect.columnType(c.Type)))
	}
	cols = append(cols, fmt.Sprintf("    %s %s", quoteIdent(LoadIDColumn), s.dialect.columnType(ColumnTypeText)))

	_, err = s.db.Exec(fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n%s\n)",
		s.dialect.table(dataset, schema.Name),
		strings.Join(cols, ",\n"),
	))
	if err != nil {
		return fmt.Errorf("creating table %s: %w", schema.Name, err)
	}

	return nil
}

func (s *sqlStorage) GetWriter(dataset string, schema TableSchema, options WriterOptions) (TableWriter, error) {
	keyIdx, err := schema.keyIndexes()
	if err != nil {
		return nil, err
	}

	table := s.dialect.table(dataset, schema.Name)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	w := &sqlTableWriter{
		schema: schema,
		tx:     tx,
		keyIdx: keyIdx,
		loadID: options.LoadID,
	}

	switch options.Disposition {
	case WriteDispositionAppend, "":
	case WriteDispositionReplace:
		res, err := tx.Exec("DELETE FROM " + table)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("truncating %s: %w", schema.Name, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			w.stats.Replaced = int(n)
		}
	case WriteDispositionMerge:
		if len(keyIdx) == 0 {
			tx.Rollback()
			return nil, fmt.Errorf("merge into %s requires a primary key", schema.Name)
		}
		conds := []string{}
		for i, key := range schema.PrimaryKey {
			conds = append(conds, fmt.Sprintf("%s = %s", quoteIdent(key), s.dialect.placeholder(i+1)))
		}
		w.delete, err = tx.Prepare(fmt.Sprintf("DELETE FROM %s WHERE %s", table, strings.Join(conds, " AND ")))
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("preparing merge delete: %w", err)
		}
		w.merge = true
	default:
		tx.Rollback()
		return nil, fmt.Errorf("unknown write disposition '%s'", options.Disposition)
	}

	names := []string{}
	params := []string{}
	for i, name := range append(schema.ColumnNames(), LoadIDColumn) {
		names = append(names, quoteIdent(name))
		params = append(params, s.dialect.placeholder(i+1))
	}
	w.insert, err = tx.Prepare(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(names, ", "),
		strings.Join(params, ", "),
	))
	if err != nil {
		w.Abort()
		return nil, fmt.Errorf("preparing insert: %w", err)
	}

	return w, nil
}

func (w *sqlTableWriter) WriteRow(row Row) error {
	if w.tx == nil {
		return fmt.Errorf("writer for %s is closed", w.schema.Name)
	}

	if err := checkRow(w.schema, row); err != nil {
		w.Abort()
		return err
	}

	values := make([]any, 0, len(row)+1)
	for _, v := range row {
		values = append(values, sqlValue(v))
	}

	if w.merge {
		key := make([]any, 0, len(w.keyIdx))
		for _, i := range w.keyIdx {
			key = append(key, values[i])
		}
		if containsNil(key) {
			w.nullKey++
		} else {
			res, err := w.delete.Exec(key...)
			if err != nil {
				w.Abort()
				return errors.Wrapf(err, "merging row %d", w.stats.Rows+1)
			}
			if n, err := res.RowsAffected(); err == nil {
				w.stats.Replaced += int(n)
			}
		}
	}

	values = append(values, w.loadID)
	if _, err := w.insert.Exec(values...); err != nil {
		w.Abort()
		return errors.Wrapf(err, "inserting row %d", w.stats.Rows+1)
	}

	w.stats.Rows++
	return nil
}

func (w *sqlTableWriter) Close() (*WriteStats, error) {
	if w.tx == nil {
		return nil, fmt.Errorf("writer for %s is closed", w.schema.Name)
	}

	w.closeStatements()
	err := w.tx.Commit()
	w.tx = nil
	if err != nil {
		return nil, fmt.Errorf("committing %s: %w", w.schema.Name, err)
	}

	if w.nullKey > 0 {
		w.stats.Warnings = append(w.stats.Warnings, nullKeyWarning(w.schema.Name, w.schema.PrimaryKey, w.nullKey))
	}

	stats := w.stats
	return &stats, nil
}

func (w *sqlTableWriter) Abort() error {
	if w.tx == nil {
		return nil
	}
	w.closeStatements()
	err := w.tx.Rollback()
	w.tx = nil
	return err
}

func (w *sqlTableWriter) closeStatements() {
	if w.insert != nil {
		w.insert.Close()
		w.insert = nil
	}
	if w.delete != nil {
		w.delete.Close()
		w.delete = nil
	}
}

func (s *sqlStorage) ensureLoadsTable(dataset string) error {
	return s.EnsureTable(dataset, TableSchema{
		Name: LoadsTable,
		Columns: []Column{
			{Name: "load_id", Type: ColumnTypeText},
			{Name: "pipeline_name", Type: ColumnTypeText},
			{Name: "status", Type: ColumnTypeText},
			{Name: "inserted_at", Type: ColumnTypeTimestamp},
		},
	})
}

func (s *sqlStorage) WriteLoad(dataset string, load Load) error {
	if err := s.ensureLoadsTable(dataset); err != nil {
		return err
	}

	_, err := s.db.Exec(fmt.Sprintf(`
INSERT INTO %s (load_id, pipeline_name, status, inserted_at, %s)
VALUES (%s, %s, %s, %s, %s)`,
		s.dialect.table(dataset, LoadsTable),
		quoteIdent(LoadIDColumn),
		s.dialect.placeholder(1),
		s.dialect.placeholder(2),
		s.dialect.placeholder(3),
		s.dialect.placeholder(4),
		s.dialect.placeholder(5),
	),
		load.LoadID,
		load.PipelineName,
		load.Status,
		load.InsertedAt.UTC(),
		load.LoadID,
	)
	if err != nil {
		return fmt.Errorf("writing load: %w", err)
	}
	return nil
}

func (s *sqlStorage) ListLoads(dataset string) ([]Load, error) {
	existing, err := s.dialect.tableColumns(s.db, dataset, LoadsTable)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", LoadsTable, err)
	}
	if len(existing) == 0 {
		return []Load{}, nil
	}

	rows, err := s.db.Query(fmt.Sprintf(`
SELECT load_id, pipeline_name, status, inserted_at
FROM %s
ORDER BY inserted_at`, s.dialect.table(dataset, LoadsTable)))
	if err != nil {
		return nil, fmt.Errorf("listing loads: %w", err)
	}
	defer rows.Close()

	loads := []Load{}
	for rows.Next() {
		var load Load
		err := rows.Scan(&load.LoadID, &load.PipelineName, &load.Status, &load.InsertedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning load: %w", err)
		}
		load.InsertedAt = load.InsertedAt.UTC()
		loads = append(loads, load)
	}

	return loads, rows.Err()
}

func (s *sqlStorage) ListTables() ([]TableInfo, error) {
	tables, err := s.dialect.listTables(s.db)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	sort.Slice(tables, func(i, j int) bool {
		if tables[i].Dataset != tables[j].Dataset {
			return tables[i].Dataset < tables[j].Dataset
		}
		return tables[i].Name < tables[j].Name
	})
	return tables, nil
}

func (s *sqlStorage) ReadRows(dataset string, table string, limit int) (*RowSet, error) {
	query := "SELECT * FROM " + s.dialect.table(dataset, table)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	rs := &RowSet{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i, v := range values {
			values[i] = readValue(v)
		}
		rs.Rows = append(rs.Rows, values)
	}

	return rs, rows.Err()
}

func (s *sqlStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("closing db: %w", err)
	}
	return nil
}

func containsNil(values []any) bool {
	for _, v := range values {
		if v == nil {
			return true
		}
	}
	return false
}

// Shared by backends exposing information_schema.
func informationSchemaTables(db *sql.DB, exclude ...string) ([]TableInfo, error) {
	query := `
SELECT table_schema, table_name
FROM information_schema.tables`
	if len(exclude) > 0 {
		quoted := []string{}
		for _, e := range exclude {
			quoted = append(quoted, "'"+e+"'")
		}
		query += " WHERE table_schema NOT IN (" + strings.Join(quoted, ", ") + ")"
	}

	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []TableInfo{}
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Dataset, &t.Name); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func informationSchemaColumns(db *sql.DB, bind string, dataset string, name string) ([]string, error) {
	p1, p2 := "?", "?"
	if bind == "$" {
		p1, p2 = "$1", "$2"
	}

	rows, err := db.Query(fmt.Sprintf(`
SELECT column_name
FROM information_schema.columns
WHERE table_schema = %s AND table_name = %s
ORDER BY ordinal_position`, p1, p2), dataset, name)
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
