package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/trafiklab-tools/realtime"
	"github.com/trafiklab-tools/realtime/downloader"
	"github.com/trafiklab-tools/realtime/parse"
)

var departuresCmd = &cobra.Command{
	Use:   "departures [area_id]",
	Short: "Lists departures for an area without loading them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  departures,
}

var (
	departuresWhen   string
	departuresCSV    bool
	departuresReplay string
)

func init() {
	departuresCmd.Flags().StringVarP(&departuresWhen, "when", "w", "", "Start of window, YYYY-MM-DDThh:mm in Swedish time (default now)")
	departuresCmd.Flags().BoolVarP(&departuresCSV, "csv", "", false, "Write flattened records as CSV")
	departuresCmd.Flags().StringVarP(&departuresReplay, "replay", "", "", "Read a saved departures document instead of calling the API")
}

func departures(cmd *cobra.Command, args []string) error {
	when, err := parseWhen(departuresWhen)
	if err != nil {
		return err
	}

	client := realtime.NewClient(cfg)
	if departuresReplay != "" {
		client.Downloader = downloader.NewFile(departuresReplay)
		if client.APIKey == "" {
			client.APIKey = "replay"
		}
	}

	doc, err := client.Fetch(cmd.Context(), areaArg(args), when)
	if err != nil {
		return err
	}

	records := slices.Collect(parse.FlattenDepartures(doc))

	if departuresCSV {
		return gocsv.Marshal(records, os.Stdout)
	}

	for _, rec := range records {
		status := ""
		if rec.Canceled != nil && *rec.Canceled {
			status = " canceled"
		} else if rec.DelaySeconds != nil && *rec.DelaySeconds != 0 {
			status = fmt.Sprintf(" %+ds", *rec.DelaySeconds)
		}
		fmt.Printf(
			"%s %s %s %s%s\n",
			deref(rec.ScheduledTime),
			deref(rec.RouteTransportMode),
			deref(rec.RouteDesignation),
			deref(rec.RouteDirection),
			status,
		)
	}

	return nil
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
