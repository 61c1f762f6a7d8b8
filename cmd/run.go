package main

import (
	"fmt"

	"github.com/kr/pretty"
	"github.com/spf13/cobra"

	"github.com/trafiklab-tools/realtime/downloader"
	"github.com/trafiklab-tools/realtime/storage"
)

var runCmd = &cobra.Command{
	Use:   "run [area_id]",
	Short: "Loads departures for an area into the destination",
	Args:  cobra.MaximumNArgs(1),
	RunE:  run,
}

var (
	runWhen        string
	runDisposition string
	runReplay      string
	runVerbose     bool
)

func init() {
	runCmd.Flags().StringVarP(&runWhen, "when", "w", "", "Start of window, YYYY-MM-DDThh:mm in Swedish time (default now)")
	runCmd.Flags().StringVarP(&runDisposition, "disposition", "", "", "append, replace or merge (overrides configuration)")
	runCmd.Flags().StringVarP(&runReplay, "replay", "", "", "Load a saved departures document instead of calling the API")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Dump the full load summary")
}

func run(cmd *cobra.Command, args []string) error {
	when, err := parseWhen(runWhen)
	if err != nil {
		return err
	}

	disposition := cfg.Disposition
	if runDisposition != "" {
		disposition = runDisposition
	}

	pipeline, err := newPipeline()
	if err != nil {
		return err
	}

	pipeline.Disposition, err = storage.ParseWriteDisposition(disposition)
	if err != nil {
		return err
	}

	if runReplay != "" {
		pipeline.Client.Downloader = downloader.NewFile(runReplay)
		if pipeline.Client.APIKey == "" {
			// Never sent anywhere.
			pipeline.Client.APIKey = "replay"
		}
	}

	summary, err := pipeline.RunDepartures(cmd.Context(), areaArg(args), when)
	if err != nil {
		return err
	}

	fmt.Print(summary)
	if runVerbose {
		pretty.Println(summary)
	}

	return nil
}
