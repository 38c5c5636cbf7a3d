package evidence

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper re-verifies every case's chain on a schedule, so tampering is
// surfaced even when nobody asks for a specific case. Findings are persisted
// by VerifyChain itself; the sweeper only drives and logs.
type Sweeper struct {
	ledger   *Ledger
	logger   *slog.Logger
	schedule string
	cron     *cron.Cron
}

// NewSweeper builds the periodic chain verifier. schedule is a standard cron
// expression, e.g. "0 3 * * *" for a nightly sweep.
func NewSweeper(ledger *Ledger, schedule string, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		ledger:   ledger,
		logger:   logger,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start registers the sweep and begins the schedule.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.SweepOnce(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("chain integrity sweep scheduled", "schedule", s.schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// SweepOnce verifies every known chain. A failure on one case does not stop
// the sweep for the rest.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	caseIDs, err := s.ledger.ChainedCases(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "chain sweep failed to list cases", "error", err.Error())
		return
	}

	var swept, tampered int
	for _, caseID := range caseIDs {
		report, err := s.ledger.VerifyChain(ctx, caseID)
		if err != nil {
			s.logger.ErrorContext(ctx, "chain sweep verification failed",
				"case_id", caseID.String(),
				"error", err.Error(),
			)
			continue
		}
		swept++
		if !report.Valid {
			tampered++
		}
	}
	s.logger.InfoContext(ctx, "chain integrity sweep finished",
		"cases_swept", swept,
		"cases_tampered", tampered,
	)
}
