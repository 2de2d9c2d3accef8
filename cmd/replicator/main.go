package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/MKhiriev/go-table-replicator/internal/app"
	"github.com/MKhiriev/go-table-replicator/internal/config"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	buildInfo := printBuildInfo()

	log := logger.NewLogger("go-table-replicator")
	cfg, err := config.GetReplicatorConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	log.Debug().
		Str("replication_id", cfg.Replication.Identifier).
		Str("table", cfg.Replication.Table).
		Str("adapter", cfg.Adapter.Kind).
		Msg("received configs")

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
	)
	defer stop()

	replicator, err := app.NewApp(ctx, cfg, buildInfo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init replicator error")
	}
	defer replicator.Close()

	if err = replicator.Run(ctx); err != nil {
		log.Error().Err(err).Msg("replicator run error")
	}
}

func printBuildInfo() models.AppBuildInfo {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)

	return models.NewAppBuildInfo(buildVersion, buildDate, buildCommit)
}
