package realtime

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafiklab-tools/realtime/config"
	"github.com/trafiklab-tools/realtime/downloader"
	"github.com/trafiklab-tools/realtime/model"
	"github.com/trafiklab-tools/realtime/storage"
	"github.com/trafiklab-tools/realtime/testutil"
)

func pipelineFixture(t *testing.T, backend string) (*Pipeline, *MockRealtimeServer, storage.Storage, *int) {
	m := serverFixture(t)
	m.Documents["/v1/departures/740000002"] = []byte(testutil.Departures)
	m.Documents["/v1/departures/740000001"] = []byte(testutil.SparseDepartures)

	s := testutil.BuildStorage(t, backend)
	open, opened := testutil.ReusableOpener(t, s)

	return NewPipeline(clientFixture(m), backend, open), m, s, opened
}

func departureRows(t *testing.T, s storage.Storage) []map[string]any {
	rs, err := s.ReadRows(DatasetName, DeparturesResourceName, 0)
	require.NoError(t, err)

	rows := []map[string]any{}
	for _, values := range rs.Rows {
		row := map[string]any{}
		for i, column := range rs.Columns {
			row[column] = values[i]
		}
		rows = append(rows, row)
	}
	return rows
}

var backends = []string{"memory", "sqlite", "duckdb"}

func TestPipelineRunDepartures(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			p, m, s, opened := pipelineFixture(t, backend)

			summary, err := p.RunDepartures(context.Background(), "", nil)
			require.NoError(t, err)
			assert.Equal(t, 1, *opened)
			assert.Equal(t, []string{"/v1/departures/740000002"}, []string{m.Requests[0].Path})

			assert.Equal(t, "trafiklab_realtime", summary.PipelineName)
			assert.Equal(t, "raw_trafiklab", summary.Dataset)
			assert.NotEmpty(t, summary.LoadID)
			assert.Equal(t, []TableSummary{{
				Name:        "trafiklab_departures",
				Disposition: storage.WriteDispositionAppend,
				Rows:        2,
			}}, summary.Tables)
			assert.Equal(t, 2, summary.RowCount())
			assert.Empty(t, summary.Diagnostics)
			assert.False(t, summary.FinishedAt.Before(summary.StartedAt))

			rows := departureRows(t, s)
			require.Len(t, rows, 2)
			for _, row := range rows {
				assert.Equal(t, summary.LoadID, row[storage.LoadIDColumn])
				assert.Equal(t, "740000002", row["query_area_id"])
				assert.Equal(t, "2025-03-01T12:00:05", row["response_timestamp"])
			}

			loads, err := s.ListLoads(DatasetName)
			require.NoError(t, err)
			require.Len(t, loads, 1)
			assert.Equal(t, summary.LoadID, loads[0].LoadID)
			assert.Equal(t, PipelineName, loads[0].PipelineName)
			assert.Equal(t, LoadStatusCompleted, loads[0].Status)

			tables, err := s.ListTables()
			require.NoError(t, err)
			assert.Contains(t, tables, storage.TableInfo{Dataset: DatasetName, Name: DeparturesResourceName})
		})
	}
}

func TestPipelineAppendDuplicates(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			p, _, s, _ := pipelineFixture(t, backend)

			first, err := p.RunDepartures(context.Background(), "740000002", nil)
			require.NoError(t, err)
			second, err := p.RunDepartures(context.Background(), "740000002", nil)
			require.NoError(t, err)
			assert.NotEqual(t, first.LoadID, second.LoadID)

			// Same key written twice. Append doesn't dedupe.
			rows := departureRows(t, s)
			assert.Len(t, rows, 4)

			counts := map[string]int{}
			for _, row := range rows {
				counts[fmt.Sprintf("%v/%v", row["trip_id"], row["scheduled_time"])]++
			}
			assert.Equal(t, map[string]int{
				"14010000613389770/2025-03-01T12:05:00": 2,
				"14010000645123456/2025-03-01T12:10:00": 2,
			}, counts)

			loads, err := s.ListLoads(DatasetName)
			require.NoError(t, err)
			assert.Len(t, loads, 2)
		})
	}
}

func TestPipelineMerge(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			p, _, s, _ := pipelineFixture(t, backend)
			p.Disposition = storage.WriteDispositionMerge

			_, err := p.RunDepartures(context.Background(), "740000002", nil)
			require.NoError(t, err)
			summary, err := p.RunDepartures(context.Background(), "740000002", nil)
			require.NoError(t, err)

			assert.Equal(t, 2, summary.Tables[0].Rows)
			assert.Equal(t, 2, summary.Tables[0].Replaced)

			rows := departureRows(t, s)
			require.Len(t, rows, 2)
			for _, row := range rows {
				assert.Equal(t, summary.LoadID, row[storage.LoadIDColumn])
			}
		})
	}
}

func TestPipelineMergeNullKeys(t *testing.T) {
	p, _, s, _ := pipelineFixture(t, "sqlite")
	p.Disposition = storage.WriteDispositionMerge

	summary, err := p.RunDepartures(context.Background(), "740000001", nil)
	require.NoError(t, err)

	// Two of three departures lack a trip id.
	assert.Equal(t, 3, summary.Tables[0].Rows)
	require.Len(t, summary.Diagnostics, 1)
	assert.Contains(t, summary.Diagnostics[0], "2 rows")
	assert.Contains(t, summary.String(), "warning:")
	assert.Len(t, departureRows(t, s), 3)
}

func TestPipelineReplace(t *testing.T) {
	p, _, s, _ := pipelineFixture(t, "duckdb")

	_, err := p.RunDepartures(context.Background(), "740000002", nil)
	require.NoError(t, err)

	p.Disposition = storage.WriteDispositionReplace
	summary, err := p.RunDepartures(context.Background(), "740000001", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Tables[0].Rows)
	assert.Equal(t, 2, summary.Tables[0].Replaced)

	rows := departureRows(t, s)
	assert.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, summary.LoadID, row[storage.LoadIDColumn])
	}
}

func TestPipelineNulls(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			p, _, s, _ := pipelineFixture(t, backend)

			_, err := p.RunDepartures(context.Background(), "740000001", nil)
			require.NoError(t, err)

			rows := departureRows(t, s)
			require.Len(t, rows, 3)

			for _, row := range rows {
				assert.Equal(t, "2025-03-01T12:00:05", row["response_timestamp"])
				assert.Nil(t, row["query_time"])
				assert.Nil(t, row["query_area_id"])
				assert.Nil(t, row["route_name"])
				assert.Nil(t, row["origin_stop_id"])
				assert.Nil(t, row["destination_stop_name"])
				assert.Nil(t, row["delay_seconds"])
				assert.Nil(t, row["canceled"])
				assert.Nil(t, row["stop_lat"])
			}

			found := false
			for _, row := range rows {
				if row["trip_id"] == "t1" {
					found = true
					assert.Equal(t, "s1", row["stop_id"])
					assert.Equal(t, "Stop One", row["stop_name"])
				}
			}
			assert.True(t, found)
		})
	}
}

func TestPipelineFetchFailureLeavesDestinationAlone(t *testing.T) {
	p, m, s, opened := pipelineFixture(t, "memory")
	m.Status = http.StatusServiceUnavailable

	_, err := p.RunDepartures(context.Background(), "740000002", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extracting trafiklab_departures")

	var netErr *model.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.StatusServiceUnavailable, netErr.StatusCode)

	assert.Equal(t, 0, *opened)
	tables, err := s.ListTables()
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestPipelineMissingKey(t *testing.T) {
	p, m, _, opened := pipelineFixture(t, "memory")
	p.Client.APIKey = ""

	_, err := p.RunDepartures(context.Background(), "", nil)
	require.Error(t, err)

	var configErr *model.ConfigError
	assert.True(t, errors.As(err, &configErr))
	assert.Equal(t, 0, len(m.Requests))
	assert.Equal(t, 0, *opened)
}

func TestPipelineParseFailure(t *testing.T) {
	p, m, _, opened := pipelineFixture(t, "memory")
	m.Documents["/v1/departures/740000002"] = []byte("not json")

	_, err := p.RunDepartures(context.Background(), "", nil)
	var parseErr *model.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 0, *opened)
}

func TestPipelineReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "departures.json")
	require.NoError(t, os.WriteFile(path, []byte(testutil.Departures), 0644))

	replay := downloader.NewFile(path)
	client := NewClient(&config.Config{APIKey: "unused"})
	client.Downloader = replay

	s := storage.NewMemoryStorage()
	p := NewPipeline(client, "memory", func() (storage.Storage, error) { return s, nil })

	when := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	summary, err := p.RunDepartures(context.Background(), "740000002", &when)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.RowCount())
	assert.Equal(t, []string{
		"https://realtime-api.trafiklab.se/v1/departures/740000002/2025-03-01T12:00",
	}, replay.Requests)
}

type failingStorage struct {
	storage.Storage
}

func (f failingStorage) GetWriter(dataset string, schema storage.TableSchema, options storage.WriterOptions) (storage.TableWriter, error) {
	w, err := f.Storage.GetWriter(dataset, schema, options)
	if err != nil {
		return nil, err
	}
	return failingWriter{w}, nil
}

type failingWriter struct {
	storage.TableWriter
}

func (f failingWriter) WriteRow(row storage.Row) error {
	f.TableWriter.Abort()
	return fmt.Errorf("disk full")
}

func TestPipelineWriteFailure(t *testing.T) {
	m := serverFixture(t)
	m.Documents["/v1/departures/740000002"] = []byte(testutil.Departures)

	s := storage.NewMemoryStorage()
	p := NewPipeline(clientFixture(m), "memory", func() (storage.Storage, error) {
		return failingStorage{s}, nil
	})

	_, err := p.RunDepartures(context.Background(), "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading trafiklab_departures")
	assert.Contains(t, err.Error(), "disk full")

	var writeErr *model.WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, DeparturesResourceName, writeErr.Table)

	assert.Empty(t, departureRows(t, s))
	loads, err := s.ListLoads(DatasetName)
	require.NoError(t, err)
	assert.Empty(t, loads)
}

func TestPipelineSchemaConflict(t *testing.T) {
	p, _, s, _ := pipelineFixture(t, "sqlite")

	require.NoError(t, s.EnsureTable(DatasetName, storage.TableSchema{
		Name:    DeparturesResourceName,
		Columns: []storage.Column{{Name: "something_else", Type: storage.ColumnTypeText}},
	}))

	_, err := p.RunDepartures(context.Background(), "", nil)
	var writeErr *model.WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Contains(t, err.Error(), "schema conflict")
}

func TestPipelineOpenFailure(t *testing.T) {
	m := serverFixture(t)
	m.Documents["/v1/departures/740000002"] = []byte(testutil.Departures)

	p := NewPipeline(clientFixture(m), "nowhere", func() (storage.Storage, error) {
		return nil, fmt.Errorf("connection refused")
	})

	_, err := p.RunDepartures(context.Background(), "", nil)
	var writeErr *model.WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, 1, len(m.Requests))
}

type staticResource struct {
	name string
	rows []storage.Row
}

func (r staticResource) Name() string { return r.name }

func (r staticResource) Schema() storage.TableSchema {
	return storage.TableSchema{
		Name:       r.name,
		Columns:    []storage.Column{{Name: "id", Type: storage.ColumnTypeText}},
		PrimaryKey: []string{"id"},
	}
}

func (r staticResource) Disposition() storage.WriteDisposition {
	return storage.WriteDispositionAppend
}

func (r staticResource) Rows(ctx context.Context) (iter.Seq[storage.Row], error) {
	return func(yield func(storage.Row) bool) {
		for _, row := range r.rows {
			if !yield(row) {
				return
			}
		}
	}, nil
}

type staticSource []Resource

func (s staticSource) Name() string { return "static" }

func (s staticSource) Resources() []Resource { return s }

func TestPipelineRunSource(t *testing.T) {
	s := storage.NewMemoryStorage()
	p := NewPipeline(nil, "memory", func() (storage.Storage, error) { return s, nil })
	p.Dataset = "other"

	summary, err := p.Run(context.Background(), staticSource{
		staticResource{"a", []storage.Row{{"1"}, {"2"}}},
		staticResource{"b", []storage.Row{{"3"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.RowCount())
	assert.Len(t, summary.Tables, 2)

	rs, err := s.ReadRows("other", "b", 0)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"3", summary.LoadID}}, rs.Rows)

	// RunDepartures needs a client.
	_, err = p.RunDepartures(context.Background(), "", nil)
	var configErr *model.ConfigError
	assert.True(t, errors.As(err, &configErr))
}

func TestPipelineCanceled(t *testing.T) {
	s := storage.NewMemoryStorage()
	p := NewPipeline(nil, "memory", func() (storage.Storage, error) { return s, nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, staticSource{staticResource{"a", []storage.Row{{"1"}}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	rs, err := s.ReadRows(DatasetName, "a", 0)
	require.NoError(t, err)
	assert.Empty(t, rs.Rows)
}

func TestLoadSummaryString(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	summary := &LoadSummary{
		LoadID:       "abc",
		PipelineName: "trafiklab_realtime",
		Dataset:      "raw_trafiklab",
		Destination:  "duckdb at warehouse/trafiklab_realtime.duckdb",
		StartedAt:    start,
		FinishedAt:   start.Add(1500 * time.Millisecond),
		Tables: []TableSummary{
			{Name: "trafiklab_departures", Disposition: storage.WriteDispositionMerge, Rows: 12, Replaced: 3},
		},
	}

	assert.Equal(t, `Pipeline trafiklab_realtime completed in 1.5s
Load abc written to dataset raw_trafiklab in duckdb at warehouse/trafiklab_realtime.duckdb
  trafiklab_departures: 12 rows (merge), 3 replaced
`, summary.String())
}
