package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluxo/siard-archiver/pkg/config"
	"github.com/fluxo/siard-archiver/pkg/export"
	"github.com/fluxo/siard-archiver/pkg/logger"
	"github.com/fluxo/siard-archiver/pkg/publish"
	"github.com/fluxo/siard-archiver/pkg/source"
	"github.com/fluxo/siard-archiver/pkg/storage"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
	inputPath  = flag.String("input", "", "Path to the dataset manifest")
	profile    = flag.String("profile", "", "Archive profile, overrides the configuration")
	outputPath = flag.String("output", "", "Archive path, overrides the configuration")
	version    = "1.0.0"
)

func main() {
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Missing -input manifest")
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *profile != "" {
		cfg.Export.Profile = *profile
	}
	if *outputPath != "" {
		cfg.Export.Output = *outputPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(
		cfg.Logging.Level,
		cfg.Logging.Format,
		cfg.Logging.Output,
		cfg.Logging.EnableTracing,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info(fmt.Sprintf("Starting SIARD archiver v%s", version))
	log.Info("Configuration loaded successfully", logger.Fields{
		"profile":   cfg.Export.Profile,
		"output":    cfg.Export.Output,
		"container": cfg.Export.Container,
		"publish":   cfg.Publish.Target,
	})

	storageMgr, err := storage.NewManager(
		cfg.Storage.WorkDirectory,
		cfg.Storage.CleanupOnFailure,
		cfg.Storage.Retention,
		log,
	)
	if err != nil {
		log.Fatal("Failed to initialize storage manager", logger.Fields{"error": err.Error()})
	}

	publisher, err := publish.New(&cfg.Publish, log)
	if err != nil {
		log.Fatal("Failed to initialize publisher", logger.Fields{"error": err.Error()})
	}

	ds, err := source.Load(*inputPath)
	if err != nil {
		log.Fatal("Failed to load dataset", logger.Fields{"error": err.Error(), "input": *inputPath})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := export.NewRunner(cfg, log, storageMgr, publisher)
	run, runErr := runner.Run(ctx, ds)

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Error("Error closing publisher", logger.Fields{"error": err.Error()})
		}
	}

	if runErr != nil {
		log.Error("Export failed", logger.Fields{"run_id": run.ID, "error_code": run.ErrorCode})
		os.Exit(1)
	}
	for _, p := range run.Published {
		log.Info("Archive published", logger.Fields{"object_key": p.ObjectKey, "url": p.SignedURL})
	}
	log.Info("Export complete", logger.Fields{"run_id": run.ID, "outputs": run.Outputs})
}
