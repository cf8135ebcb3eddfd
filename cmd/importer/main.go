package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/arenastats/arena-stats-go/internal/cards"
	"github.com/arenastats/arena-stats-go/internal/config"
	"github.com/arenastats/arena-stats-go/internal/importer"
	"github.com/arenastats/arena-stats-go/internal/logging"
	"github.com/arenastats/arena-stats-go/internal/parser"
	"github.com/arenastats/arena-stats-go/internal/repository"
	"go.uber.org/zap"
)

var (
	configPath   = flag.String("config", "config/config.yaml", "path to configuration file")
	logPath      = flag.String("log", "", "path to the Arena Player.log file to import")
	forceRefresh = flag.Bool("refresh-cards", false, "force re-download of the Scryfall bulk data")
	version      = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	if *logPath == "" {
		fmt.Fprintln(os.Stderr, "usage: importer -log <path to Player.log> [-config <path>]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting arena-stats importer",
		zap.String("version", version),
		zap.String("log_file", *logPath),
	)

	ctx := context.Background()

	pool, err := repository.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("failed to ensure schema", zap.Error(err))
	}

	bulk := cards.NewBulkService(cfg.Scryfall, logger)
	if err := bulk.EnsureBulkData(ctx, *forceRefresh); err != nil {
		// Lookups degrade to placeholders; the import still runs.
		logger.Warn("card database unavailable; names will use placeholders", zap.Error(err))
	}

	svc := importer.NewService(
		repository.NewMatchRepository(pool, logger),
		repository.NewCardRepository(pool, logger),
		bulk,
		cfg.Import.SkipExisting,
		logger,
	)

	summary, err := svc.ImportLogFile(ctx, *logPath)
	if err != nil {
		switch {
		case errors.Is(err, parser.ErrLogNotFound):
			logger.Fatal("log file not found", zap.String("path", *logPath))
		case errors.Is(err, parser.ErrInvalidLogFormat):
			logger.Fatal("not a valid Arena log file", zap.String("path", *logPath))
		default:
			logger.Fatal("import failed", zap.Error(err))
		}
	}

	logger.Info("import finished",
		zap.String("session_id", summary.SessionID.String()),
		zap.Int("matches_found", summary.MatchesFound),
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
		zap.Int("parse_errors", len(summary.ParseErrors)),
		zap.Int("unknown_cards", len(summary.UnknownCards)),
	)

	// Surface the first few problems prominently; the full list is stored
	// with the summary.
	for i, pe := range summary.ParseErrors {
		if i == 5 {
			logger.Info("additional parse errors omitted",
				zap.Int("remaining", len(summary.ParseErrors)-5),
			)
			break
		}
		logger.Warn("parse error",
			zap.String("event_type", pe.EventType),
			zap.Int("line", pe.LineNumber),
			zap.String("error", pe.Message),
		)
	}
}
