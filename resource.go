package realtime

import (
	"context"
	"iter"

	"github.com/trafiklab-tools/realtime/model"
	"github.com/trafiklab-tools/realtime/parse"
	"github.com/trafiklab-tools/realtime/storage"
)

const (
	SourceName             = "trafiklab_realtime"
	DeparturesResourceName = "trafiklab_departures"
)

// A named stream of rows bound for one table.
type Resource interface {
	Name() string
	Schema() storage.TableSchema
	Disposition() storage.WriteDisposition

	// Does all extraction work up front. The returned sequence is
	// only consumed once the destination is open.
	Rows(ctx context.Context) (iter.Seq[storage.Row], error)
}

// A named group of resources, loaded together.
type Source interface {
	Name() string
	Resources() []Resource
}

// Departures for a single query window, flattened.
type DeparturesResource struct {
	Client           *Client
	Window           model.QueryWindow
	WriteDisposition storage.WriteDisposition
}

func (r *DeparturesResource) Name() string {
	return DeparturesResourceName
}

func (r *DeparturesResource) Schema() storage.TableSchema {
	schema := parse.DeparturesSchema
	schema.Name = DeparturesResourceName
	return schema
}

func (r *DeparturesResource) Disposition() storage.WriteDisposition {
	if r.WriteDisposition == "" {
		return storage.WriteDispositionAppend
	}
	return r.WriteDisposition
}

func (r *DeparturesResource) Rows(ctx context.Context) (iter.Seq[storage.Row], error) {
	doc, err := r.Client.FetchWindow(ctx, r.Window)
	if err != nil {
		return nil, err
	}

	records := parse.FlattenDepartures(doc)
	return func(yield func(storage.Row) bool) {
		for rec := range records {
			if !yield(parse.DepartureRow(rec)) {
				return
			}
		}
	}, nil
}

type realtimeSource struct {
	resources []Resource
}

// The trafiklab_realtime source, holding the departures resource.
func NewRealtimeSource(client *Client, window model.QueryWindow, disposition storage.WriteDisposition) Source {
	return &realtimeSource{
		resources: []Resource{
			&DeparturesResource{
				Client:           client,
				Window:           window,
				WriteDisposition: disposition,
			},
		},
	}
}

func (s *realtimeSource) Name() string {
	return SourceName
}

func (s *realtimeSource) Resources() []Resource {
	return s.resources
}
