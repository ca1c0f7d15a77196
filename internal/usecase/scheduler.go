package usecase

import (
	"context"
	"log/slog"
	"time"

	"TenderScanner/internal/logging"
	"TenderScanner/internal/ports"
)

// Scheduler wires the interval driver with the ingestion use case.
type Scheduler struct {
	driver   ports.Scheduler
	ingestor *Ingestor
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring scans.
func NewScheduler(driver ports.Scheduler, ingestor *Ingestor, log *slog.Logger) *Scheduler {
	if log == nil {
		log = logging.Discard()
	}
	return &Scheduler{driver: driver, ingestor: ingestor, logger: log}
}

// Start registers the scan run with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.ingestor == nil {
		return nil
	}

	job := func(trigger time.Time) {
		summary, err := s.ingestor.Scan(ctx)
		if err != nil {
			s.logger.Error("scheduled scan failed", "trigger", trigger, "error", err)
			return
		}
		s.logger.Info("scheduled scan done", "trigger", trigger, "run_id", summary.RunID, "message", summary.Message)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
