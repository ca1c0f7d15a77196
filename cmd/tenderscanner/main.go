package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"TenderScanner/internal/app"
	"TenderScanner/internal/config"
	"TenderScanner/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run a single scan and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if *once {
		summary, err := application.RunOnce(ctx)
		if err != nil {
			logger.Error("scan failed", "run_id", summary.RunID, "error", err)
			application.Close()
			os.Exit(1)
		}
		logger.Info("scan done", "run_id", summary.RunID, "message", summary.Message)
		return
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		application.Close()
		os.Exit(1)
	}
}
