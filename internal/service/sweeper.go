package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultSweepInterval is how often expired moderation state is dropped.
const DefaultSweepInterval = time.Minute

// SweepFunc drops expired ownership proposals and cooldown entries and
// reports how many of each it removed.
type SweepFunc func() (transfers, rateEntries int)

// StartSweeper runs sweep every interval. It blocks until the context is
// cancelled, so it should be launched in a separate goroutine.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration, sweep SweepFunc) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper stopped")
			return
		case <-ticker.C:
			transfers, entries := sweep()
			if transfers > 0 || entries > 0 {
				s.logger.WithFields(logrus.Fields{
					"transfers":    transfers,
					"rate_entries": entries,
				}).Debug("Swept expired moderation state")
			}
		}
	}
}
