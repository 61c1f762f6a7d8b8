package realtime

import (
	"fmt"
	"strings"
	"time"

	"github.com/trafiklab-tools/realtime/storage"
)

type TableSummary struct {
	Name        string
	Disposition storage.WriteDisposition
	Rows        int
	Replaced    int
}

// Outcome of a successful Pipeline.Run.
type LoadSummary struct {
	LoadID       string
	PipelineName string
	Dataset      string
	Destination  string
	StartedAt    time.Time
	FinishedAt   time.Time
	Tables       []TableSummary

	// Non-fatal issues reported by storage.
	Diagnostics []string
}

// Total number of rows written.
func (s *LoadSummary) RowCount() int {
	n := 0
	for _, t := range s.Tables {
		n += t.Rows
	}
	return n
}

func (s *LoadSummary) String() string {
	b := &strings.Builder{}

	fmt.Fprintf(b, "Pipeline %s completed in %s\n", s.PipelineName, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(b, "Load %s written to dataset %s", s.LoadID, s.Dataset)
	if s.Destination != "" {
		fmt.Fprintf(b, " in %s", s.Destination)
	}
	b.WriteString("\n")

	for _, t := range s.Tables {
		fmt.Fprintf(b, "  %s: %d rows (%s)", t.Name, t.Rows, t.Disposition)
		if t.Replaced > 0 {
			fmt.Fprintf(b, ", %d replaced", t.Replaced)
		}
		b.WriteString("\n")
	}

	for _, d := range s.Diagnostics {
		fmt.Fprintf(b, "  warning: %s\n", d)
	}

	return b.String()
}
