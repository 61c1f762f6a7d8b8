package storage

import (
	"fmt"
	"reflect"
	"strings"
)

// Dereferences pointers so drivers only see plain values. Nil
// pointers become nil, i.e. NULL.
func sqlValue(v any) any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}
	return v
}

// Drivers disagree on how text comes back.
func readValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func checkRow(schema TableSchema, row Row) error {
	if len(row) != len(schema.Columns) {
		return fmt.Errorf("row has %d values, table %s has %d columns", len(row), schema.Name, len(schema.Columns))
	}
	return nil
}

// Returns the missing column names.
func missingColumns(schema TableSchema, existing []string) []string {
	have := map[string]bool{}
	for _, name := range existing {
		have[name] = true
	}

	missing := []string{}
	for _, c := range schema.Columns {
		if !have[c.Name] {
			missing = append(missing, c.Name)
		}
	}
	if !have[LoadIDColumn] {
		missing = append(missing, LoadIDColumn)
	}
	return missing
}

func nullKeyWarning(table string, key []string, count int) string {
	return fmt.Sprintf(
		"%s: %d rows with NULL in primary key (%s) could not be merged and were appended",
		table, count, strings.Join(key, ", "),
	)
}
