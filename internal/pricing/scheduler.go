package pricing

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler triggers the aggregator at a fixed rate
type Scheduler struct {
	agg      *Aggregator
	interval time.Duration
	logger   logrus.FieldLogger
}

// NewScheduler creates a scheduler running agg every interval
func NewScheduler(agg *Aggregator, interval time.Duration, logger logrus.FieldLogger) *Scheduler {
	return &Scheduler{agg: agg, interval: interval, logger: logger.WithField("component", "scheduler")}
}

// Run aggregates once immediately and then on every tick until ctx is done.
// Ticks that arrive while a run is in progress are dropped.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.WithField("interval", s.interval.String()).Info("price scheduler started")
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("price scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := s.agg.Aggregate(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("run_id", res.RunID).Error("aggregation run failed")
	}
}
