package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sensornet-gateway/internal/db"
	"sensornet-gateway/internal/logging"
	"sensornet-gateway/internal/output"
)

func main() {
	var dbPath string
	var outJSON string
	var outCSV string
	flag.StringVar(&dbPath, "db", "data/gateway.sqlite", "path to the gateway sqlite database")
	flag.StringVar(&outJSON, "json", "", "path to write node snapshots as JSON (optional)")
	flag.StringVar(&outCSV, "csv", "", "path to write the sensor value history as CSV (optional)")
	flag.Parse()

	log := logging.New("export", logging.Config{})
	if outJSON == "" && outCSV == "" {
		fmt.Fprintln(os.Stderr, "no output specified: set -json and/or -csv")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.OpenWithLogger(dbPath, log)
	if err != nil {
		log.Fatal().Err(err).Str("db", dbPath).Msg("open store")
	}
	defer store.Close()

	failed := false
	if outJSON != "" {
		snaps, err := store.Snapshot(ctx)
		if err == nil {
			err = output.WriteJSON(outJSON, snaps)
		}
		if err != nil {
			log.Error().Err(err).Str("path", outJSON).Msg("export json")
			failed = true
		} else {
			log.Info().Int("nodes", len(snaps)).Str("path", outJSON).Msg("wrote json")
		}
	}
	if outCSV != "" {
		values, err := store.AllSensorValues(ctx)
		if err == nil {
			err = output.WriteCSV(outCSV, values)
		}
		if err != nil {
			log.Error().Err(err).Str("path", outCSV).Msg("export csv")
			failed = true
		} else {
			log.Info().Int("values", len(values)).Str("path", outCSV).Msg("wrote csv")
		}
	}
	if failed {
		store.Close()
		os.Exit(1)
	}
}
