package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// In memory implementation of Storage below

type memoryTableKey struct {
	Dataset string
	Name    string
}

type memoryTable struct {
	columns []string
	rows    [][]any
}

type MemoryStorage struct {
	mutex  sync.Mutex
	Tables map[memoryTableKey]*memoryTable
	Loads  map[string][]Load
}

type MemoryTableWriter struct {
	storage *MemoryStorage
	key     memoryTableKey
	schema  TableSchema
	keyIdx  []int
	options WriterOptions
	rows    [][]any
	closed  bool
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Tables: map[memoryTableKey]*memoryTable{},
		Loads:  map[string][]Load{},
	}
}

func (s *MemoryStorage) EnsureTable(dataset string, schema TableSchema) error {
	if len(schema.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", schema.Name)
	}
	if _, err := schema.keyIndexes(); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := memoryTableKey{dataset, schema.Name}
	if table, found := s.Tables[key]; found {
		if missing := missingColumns(schema, table.columns); len(missing) > 0 {
			return fmt.Errorf("schema conflict: table %s lacks columns %s", schema.Name, strings.Join(missing, ", "))
		}
		return nil
	}

	s.Tables[key] = &memoryTable{
		columns: append(schema.ColumnNames(), LoadIDColumn),
		rows:    [][]any{},
	}
	return nil
}

func (s *MemoryStorage) GetWriter(dataset string, schema TableSchema, options WriterOptions) (TableWriter, error) {
	keyIdx, err := schema.keyIndexes()
	if err != nil {
		return nil, err
	}

	switch options.Disposition {
	case WriteDispositionAppend, WriteDispositionReplace, "":
	case WriteDispositionMerge:
		if len(keyIdx) == 0 {
			return nil, fmt.Errorf("merge into %s requires a primary key", schema.Name)
		}
	default:
		return nil, fmt.Errorf("unknown write disposition '%s'", options.Disposition)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := memoryTableKey{dataset, schema.Name}
	if _, found := s.Tables[key]; !found {
		return nil, fmt.Errorf("table %s not found", schema.Name)
	}

	return &MemoryTableWriter{
		storage: s,
		key:     key,
		schema:  schema,
		keyIdx:  keyIdx,
		options: options,
		rows:    [][]any{},
	}, nil
}

func (w *MemoryTableWriter) WriteRow(row Row) error {
	if w.closed {
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
	w.rows = append(w.rows, append(values, w.options.LoadID))
	return nil
}

func (w *MemoryTableWriter) Close() (*WriteStats, error) {
	if w.closed {
		return nil, fmt.Errorf("writer for %s is closed", w.schema.Name)
	}
	w.closed = true

	w.storage.mutex.Lock()
	defer w.storage.mutex.Unlock()

	table, found := w.storage.Tables[w.key]
	if !found {
		return nil, fmt.Errorf("table %s not found", w.schema.Name)
	}

	// Rows are stored in table column order, which may differ from
	// the schema's if the table was created by another schema.
	pos := make([]int, 0, len(w.schema.Columns)+1)
	for _, name := range append(w.schema.ColumnNames(), LoadIDColumn) {
		for i, column := range table.columns {
			if column == name {
				pos = append(pos, i)
				break
			}
		}
	}

	stats := &WriteStats{}

	switch w.options.Disposition {
	case WriteDispositionReplace:
		stats.Replaced = len(table.rows)
		table.rows = [][]any{}
	case WriteDispositionMerge:
		nullKey := 0
		for _, row := range w.rows {
			key := w.rowKey(row)
			if containsNil(key) {
				nullKey++
			} else {
				kept := table.rows[:0]
				for _, existing := range table.rows {
					if w.matches(existing, pos, key) {
						stats.Replaced++
						continue
					}
					kept = append(kept, existing)
				}
				table.rows = kept
			}
			table.rows = append(table.rows, w.place(row, pos, len(table.columns)))
		}
		if nullKey > 0 {
			stats.Warnings = append(stats.Warnings, nullKeyWarning(w.schema.Name, w.schema.PrimaryKey, nullKey))
		}
		stats.Rows = len(w.rows)
		w.rows = nil
		return stats, nil
	}

	for _, row := range w.rows {
		table.rows = append(table.rows, w.place(row, pos, len(table.columns)))
	}
	stats.Rows = len(w.rows)
	w.rows = nil

	return stats, nil
}

func (w *MemoryTableWriter) Abort() error {
	w.closed = true
	w.rows = nil
	return nil
}

func (w *MemoryTableWriter) rowKey(row []any) []any {
	key := make([]any, 0, len(w.keyIdx))
	for _, i := range w.keyIdx {
		key = append(key, row[i])
	}
	return key
}

func (w *MemoryTableWriter) matches(existing []any, pos []int, key []any) bool {
	for k, i := range w.keyIdx {
		if existing[pos[i]] != key[k] {
			return false
		}
	}
	return true
}

func (w *MemoryTableWriter) place(row []any, pos []int, width int) []any {
	out := make([]any, width)
	for i, v := range row {
		out[pos[i]] = v
	}
	return out
}

func (s *MemoryStorage) WriteLoad(dataset string, load Load) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	load.InsertedAt = load.InsertedAt.UTC()
	s.Loads[dataset] = append(s.Loads[dataset], load)

	key := memoryTableKey{dataset, LoadsTable}
	if _, found := s.Tables[key]; !found {
		s.Tables[key] = &memoryTable{
			columns: []string{"load_id", "pipeline_name", "status", "inserted_at", LoadIDColumn},
			rows:    [][]any{},
		}
	}
	s.Tables[key].rows = append(s.Tables[key].rows, []any{
		load.LoadID,
		load.PipelineName,
		load.Status,
		load.InsertedAt,
		load.LoadID,
	})

	return nil
}

func (s *MemoryStorage) ListLoads(dataset string) ([]Load, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	loads := append([]Load{}, s.Loads[dataset]...)
	sort.SliceStable(loads, func(i, j int) bool {
		return loads[i].InsertedAt.Before(loads[j].InsertedAt)
	})
	return loads, nil
}

func (s *MemoryStorage) ListTables() ([]TableInfo, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	tables := []TableInfo{}
	for key := range s.Tables {
		tables = append(tables, TableInfo{Dataset: key.Dataset, Name: key.Name})
	}
	sort.Slice(tables, func(i, j int) bool {
		if tables[i].Dataset != tables[j].Dataset {
			return tables[i].Dataset < tables[j].Dataset
		}
		return tables[i].Name < tables[j].Name
	})
	return tables, nil
}

func (s *MemoryStorage) ReadRows(dataset string, table string, limit int) (*RowSet, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, found := s.Tables[memoryTableKey{dataset, table}]
	if !found {
		return nil, fmt.Errorf("table %s not found", table)
	}

	rs := &RowSet{
		Columns: append([]string{}, t.columns...),
		Rows:    [][]any{},
	}
	for _, row := range t.rows {
		if limit > 0 && len(rs.Rows) >= limit {
			break
		}
		rs.Rows = append(rs.Rows, append([]any{}, row...))
	}
	return rs, nil
}

// Data survives Close, so a MemoryStorage can be reopened by an
// Opener.
func (s *MemoryStorage) Close() error {
	return nil
}
