package storage

import (
	"fmt"
	"time"
)

const (
	// Added by storage to every table. Holds the id of the load
	// that wrote the row.
	LoadIDColumn = "_load_id"

	// One row per completed load, per dataset.
	LoadsTable = "_loads"
)

// How a load accumulates into an existing table.
type WriteDisposition string

const (
	// Rows are added as they are. The primary key is not
	// enforced, so duplicates are expected.
	WriteDispositionAppend WriteDisposition = "append"

	// All existing rows are removed before writing.
	WriteDispositionReplace WriteDisposition = "replace"

	// Existing rows with the same primary key are removed before
	// each row is written. Rows with a NULL key component can't
	// be matched and are appended.
	WriteDispositionMerge WriteDisposition = "merge"
)

func ParseWriteDisposition(s string) (WriteDisposition, error) {
	switch d := WriteDisposition(s); d {
	case WriteDispositionAppend, WriteDispositionReplace, WriteDispositionMerge:
		return d, nil
	}
	return "", fmt.Errorf("unknown write disposition '%s'", s)
}

type ColumnType int

const (
	ColumnTypeText ColumnType = iota
	ColumnTypeBigInt
	ColumnTypeDouble
	ColumnTypeBool
	ColumnTypeTimestamp
)

type Column struct {
	Name string
	Type ColumnType
}

// Describes a destination table. PrimaryKey is declared for all
// dispositions, but only acted upon by WriteDispositionMerge.
type TableSchema struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
}

func (s TableSchema) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Index of each primary key column in Columns.
func (s TableSchema) keyIndexes() ([]int, error) {
	idx := make([]int, 0, len(s.PrimaryKey))
	for _, key := range s.PrimaryKey {
		found := -1
		for i, c := range s.Columns {
			if c.Name == key {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("primary key column '%s' not in table %s", key, s.Name)
		}
		idx = append(idx, found)
	}
	return idx, nil
}

// A row of values, in the order of TableSchema.Columns. Values may be
// pointers, in which case nil pointers are written as NULL.
type Row []any

type Storage interface {
	// Creates the dataset and table unless they exist. Fails if
	// an existing table lacks any of the schema's columns.
	EnsureTable(dataset string, schema TableSchema) error

	// Gets a writer for a table. The table must exist.
	GetWriter(dataset string, schema TableSchema, options WriterOptions) (TableWriter, error)

	// Records a completed load in the dataset's _loads table,
	// creating it if needed.
	WriteLoad(dataset string, load Load) error

	// Retrieves all loads recorded for a dataset, oldest first.
	ListLoads(dataset string) ([]Load, error)

	// Lists all tables, ordered by dataset and name.
	ListTables() ([]TableInfo, error)

	// Reads at most limit rows from a table. Pass 0 for no
	// limit.
	ReadRows(dataset string, table string, limit int) (*RowSet, error)

	Close() error
}

// Opens a Storage. Lets the destination be acquired and released
// within a single run.
type Opener func() (Storage, error)

type WriterOptions struct {
	Disposition WriteDisposition
	LoadID      string
}

// Writes rows to a single table. Nothing is visible to readers until
// Close() returns successfully. After a failed WriteRow, the writer
// is aborted and must not be used.
type TableWriter interface {
	WriteRow(row Row) error
	Close() (*WriteStats, error)
	Abort() error
}

type WriteStats struct {
	// Rows written.
	Rows int

	// Existing rows removed by replace or merge.
	Replaced int

	// Non-fatal issues, e.g. rows that couldn't be merged.
	Warnings []string
}

type Load struct {
	LoadID       string
	PipelineName string
	Status       string
	InsertedAt   time.Time
}

type TableInfo struct {
	Dataset string
	Name    string
}

type RowSet struct {
	Columns []string
	Rows    [][]any
}
