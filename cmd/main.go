package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/trafiklab-tools/realtime"
	"github.com/trafiklab-tools/realtime/config"

	_ "time/tzdata"
)

var rootCmd = &cobra.Command{
	Use:               "trafiklab",
	Short:             "Trafiklab realtime departures tool",
	Long:              "Loads realtime departures from the Trafiklab Realtime API into a local warehouse",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var (
	configPath  string
	dbPath      string
	destination string

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "", "", "Database file (overrides configuration)")
	rootCmd.PersistentFlags().StringVarP(&destination, "destination", "", "", "duckdb, sqlite or postgres (overrides configuration)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(departuresCmd)
	rootCmd.AddCommand(inspectCmd)
}

func main() {
	if os.Getenv("TRAFIKLAB_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if os.Getenv("TRAFIKLAB_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if dbPath != "" {
		c.DBPath = dbPath
	}
	if destination != "" {
		c.Destination = destination
	}
	if err := c.Validate(); err != nil {
		return err
	}

	cfg = c
	return nil
}

// Parses a --when flag. Blank means the current window.
func parseWhen(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}

	loc, err := time.LoadLocation("Europe/Stockholm")
	if err != nil {
		return nil, err
	}

	when, err := time.ParseInLocation("2006-01-02T15:04", s, loc)
	if err != nil {
		return nil, fmt.Errorf("'%s' is not on form YYYY-MM-DDThh:mm", s)
	}
	return &when, nil
}

func areaArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.AreaID
}

func newPipeline() (*realtime.Pipeline, error) {
	open, description, err := realtime.OpenDestination(cfg)
	if err != nil {
		return nil, err
	}
	return realtime.NewPipeline(realtime.NewClient(cfg), description, open), nil
}
