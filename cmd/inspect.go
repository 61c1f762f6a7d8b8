package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Lists tables in the destination and previews departures",
	Args:  cobra.NoArgs,
	RunE:  inspect,
}

var (
	inspectFilter string
	inspectLimit  int
)

func init() {
	inspectCmd.Flags().StringVarP(&inspectFilter, "filter", "f", "depart", "Preview tables whose name contains this (case-insensitive)")
	inspectCmd.Flags().IntVarP(&inspectLimit, "limit", "l", 10, "Rows to preview per table")
}

func inspect(cmd *cobra.Command, args []string) error {
	pipeline, err := newPipeline()
	if err != nil {
		return err
	}

	s, err := pipeline.Open()
	if err != nil {
		return err
	}
	defer s.Close()

	tables, err := s.ListTables()
	if err != nil {
		return err
	}

	fmt.Printf("Destination: %s\n\n", pipeline.Destination)
	for _, t := range tables {
		fmt.Printf("%s.%s\n", t.Dataset, t.Name)
	}

	filter := strings.ToLower(inspectFilter)
	for _, t := range tables {
		if !strings.Contains(strings.ToLower(t.Name), filter) {
			continue
		}

		rs, err := s.ReadRows(t.Dataset, t.Name, inspectLimit)
		if err != nil {
			return err
		}

		fmt.Printf("\n%s.%s (first %d rows)\n", t.Dataset, t.Name, inspectLimit)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, strings.Join(rs.Columns, "\t"))
		for _, row := range rs.Rows {
			cells := make([]string, 0, len(row))
			for _, v := range row {
				if v == nil {
					cells = append(cells, "NULL")
				} else {
					cells = append(cells, fmt.Sprint(v))
				}
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
		w.Flush()
	}

	return nil
}
