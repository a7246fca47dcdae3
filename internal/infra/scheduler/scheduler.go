package scheduler

import (
	"context"
	"fmt"
	"time"

	"rentara/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Reconciler is the sweep run on every tick.
type Reconciler interface {
	ReconcilePending(ctx context.Context) (app.ReconcileReport, error)
}

type ReconcileScheduler struct {
	cronEngine *cron.Cron
	reconciler Reconciler
	logger     *logrus.Entry
	cronSpec   string
	jobTimeout time.Duration
}

func NewReconcileScheduler(
	reconciler Reconciler,
	logger *logrus.Entry,
	cronSpec string, // e.g., "*/10 * * * *" (every 10 minutes)
) *ReconcileScheduler {
	return &ReconcileScheduler{
		// A sweep that overruns its tick is not started twice.
		cronEngine: cron.New(cron.WithLocation(time.Local), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		reconciler: reconciler,
		logger:     logger,
		cronSpec:   cronSpec,
		jobTimeout: 5 * time.Minute,
	}
}

func (s *ReconcileScheduler) Start() error {
	s.logger.Info("Starting payment reconciliation scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Debug("Cron job triggered for pending payment reconciliation.")
		s.runOnce()
	})
	if err != nil {
		return fmt.Errorf("could not add reconciliation cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.logger.WithField("spec", s.cronSpec).Info("Payment reconciliation scheduler started.")
	return nil
}

func (s *ReconcileScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	report, err := s.reconciler.ReconcilePending(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("report", report.String()).Error("Error during pending payment reconciliation")
		return
	}
	s.logger.WithField("report", report.String()).Debug("Pending payment reconciliation finished")
}

func (s *ReconcileScheduler) Stop() {
	s.logger.Info("Stopping payment reconciliation scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Payment reconciliation scheduler gracefully stopped.")
}
