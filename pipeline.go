package realtime

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/trafiklab-tools/realtime/model"
	"github.com/trafiklab-tools/realtime/storage"
)

const (
	PipelineName = "trafiklab_realtime"
	DatasetName  = "raw_trafiklab"

	LoadStatusCompleted = "completed"
)

// Loads sources into a destination. Each Run opens the destination,
// once extraction has succeeded, and closes it before returning.
type Pipeline struct {
	Name    string
	Dataset string

	// Human readable description of the destination, for summaries.
	Destination string

	Open   storage.Opener
	Client *Client

	// Used by RunDepartures.
	Disposition storage.WriteDisposition
}

func NewPipeline(client *Client, destination string, open storage.Opener) *Pipeline {
	return &Pipeline{
		Name:        PipelineName,
		Dataset:     DatasetName,
		Destination: destination,
		Open:        open,
		Client:      client,
		Disposition: storage.WriteDispositionAppend,
	}
}

// Runs the trafiklab_realtime source for an area and window.
func (p *Pipeline) RunDepartures(ctx context.Context, areaID string, when *time.Time) (*LoadSummary, error) {
	if p.Client == nil {
		return nil, &model.ConfigError{Err: fmt.Errorf("pipeline has no client")}
	}
	window := model.QueryWindow{AreaID: areaID, When: when}
	return p.Run(ctx, NewRealtimeSource(p.Client, window, p.Disposition))
}

type extracted struct {
	resource Resource
	rows     iter.Seq[storage.Row]
}

// Extracts every resource of the source, then writes them to the
// destination and records the load.
//
// Extraction errors are returned as is, and leave the destination
// untouched. Destination errors are *model.WriteError. What was
// written before a failure is up to the storage backend, which rolls
// back the table being written.
func (p *Pipeline) Run(ctx context.Context, source Source) (summary *LoadSummary, err error) {
	summary = &LoadSummary{
		LoadID:       uuid.NewString(),
		PipelineName: p.Name,
		Dataset:      p.Dataset,
		Destination:  p.Destination,
		StartedAt:    time.Now().UTC(),
		Tables:       []TableSummary{},
		Diagnostics:  []string{},
	}

	log.Info().
		Str("pipeline", p.Name).
		Str("source", source.Name()).
		Str("load_id", summary.LoadID).
		Msg("starting run")

	resources := []extracted{}
	for _, r := range source.Resources() {
		rows, err := r.Rows(ctx)
		if err != nil {
			return nil, fmt.Errorf("extracting %s: %w", r.Name(), err)
		}
		resources = append(resources, extracted{r, rows})
	}

	s, err := p.Open()
	if err != nil {
		return nil, &model.WriteError{Err: fmt.Errorf("opening destination: %w", err)}
	}
	defer func() {
		closeErr := s.Close()
		if closeErr != nil && err == nil {
			summary = nil
			err = &model.WriteError{Err: fmt.Errorf("closing destination: %w", closeErr)}
		}
	}()

	for _, e := range resources {
		table, err := p.load(ctx, s, summary.LoadID, e)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", e.resource.Name(), err)
		}
		summary.Tables = append(summary.Tables, table.TableSummary)
		summary.Diagnostics = append(summary.Diagnostics, table.warnings...)
	}

	summary.FinishedAt = time.Now().UTC()
	err = s.WriteLoad(p.Dataset, storage.Load{
		LoadID:       summary.LoadID,
		PipelineName: p.Name,
		Status:       LoadStatusCompleted,
		InsertedAt:   summary.FinishedAt,
	})
	if err != nil {
		return nil, &model.WriteError{Table: storage.LoadsTable, Err: err}
	}

	for _, d := range summary.Diagnostics {
		log.Warn().Str("load_id", summary.LoadID).Msg(d)
	}
	log.Info().
		Str("pipeline", p.Name).
		Str("load_id", summary.LoadID).
		Int("rows", summary.RowCount()).
		Dur("elapsed", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("run completed")

	return summary, nil
}

type loadedTable struct {
	TableSummary
	warnings []string
}

func (p *Pipeline) load(ctx context.Context, s storage.Storage, loadID string, e extracted) (*loadedTable, error) {
	schema := e.resource.Schema()
	disposition := e.resource.Disposition()

	if err := s.EnsureTable(p.Dataset, schema); err != nil {
		return nil, &model.WriteError{Table: schema.Name, Err: err}
	}

	w, err := s.GetWriter(p.Dataset, schema, storage.WriterOptions{
		Disposition: disposition,
		LoadID:      loadID,
	})
	if err != nil {
		return nil, &model.WriteError{Table: schema.Name, Err: err}
	}

	for row := range e.rows {
		if err := ctx.Err(); err != nil {
			w.Abort()
			return nil, err
		}
		if err := w.WriteRow(row); err != nil {
			return nil, &model.WriteError{Table: schema.Name, Err: errors.Wrap(err, "writing rows")}
		}
	}

	stats, err := w.Close()
	if err != nil {
		return nil, &model.WriteError{Table: schema.Name, Err: err}
	}

	log.Debug().
		Str("table", schema.Name).
		Str("disposition", string(disposition)).
		Int("rows", stats.Rows).
		Int("replaced", stats.Replaced).
		Msg("loaded table")

	return &loadedTable{
		TableSummary: TableSummary{
			Name:        schema.Name,
			Disposition: disposition,
			Rows:        stats.Rows,
			Replaced:    stats.Replaced,
		},
		warnings: stats.Warnings,
	}, nil
}
