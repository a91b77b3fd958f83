// Package maintenance runs background repair jobs for a long-lived server.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/logging"
	"go.uber.org/zap"
)

// Sweeper repairs dangling card references. *db.Store implements it.
type Sweeper interface {
	SweepDanglingRefs(ctx context.Context) (db.SweepResult, error)
}

// nextDelay returns the time until the schedule next fires, never negative.
func nextDelay(sched cron.Schedule, now time.Time) time.Duration {
	d := sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// RunSweeps sweeps on every schedule tick until ctx is done. A failed sweep
// is logged and retried at the next tick.
func RunSweeps(ctx context.Context, s Sweeper, sched cron.Schedule, log *zap.Logger) {
	log = logging.OrNop(log).Named("maintenance")

	timer := time.NewTimer(nextDelay(sched, time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			res, err := s.SweepDanglingRefs(ctx)
			switch {
			case err != nil && ctx.Err() != nil:
				return
			case err != nil:
				log.Warn("reference sweep failed", zap.Error(err))
			default:
				log.Debug("reference sweep done", zap.Int("cards_updated", res.CardsUpdated))
			}
			timer.Reset(nextDelay(sched, time.Now()))
		}
	}
}
