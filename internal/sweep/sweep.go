// Package sweep holds the periodic maintenance jobs and their cron wiring.
// Every job is safe to run from several worker processes at once: each one
// is a conditional UPDATE (or funnels into the launch path's conditional
// transition), so a concurrent duplicate run finds nothing left to do.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"campaigner/internal/observability"
	"campaigner/internal/util"
)

type Store interface {
	DueScheduledCampaigns(ctx context.Context, now time.Time) ([]int64, error)
	CompleteExpired(ctx context.Context, now time.Time) (int64, error)
	ResurrectFailed(ctx context.Context) (int64, error)
}

type Launcher interface {
	LaunchScheduled(ctx context.Context, campaignID int64) (int, error)
}

type Sweeper struct {
	Store    Store
	Launcher Launcher
}

// LaunchDue starts every scheduled campaign whose start time has passed.
// Per-campaign failures are logged and do not stop the sweep.
func (s *Sweeper) LaunchDue(ctx context.Context) error {
	ids, err := s.Store.DueScheduledCampaigns(ctx, util.NowUTC())
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := s.Launcher.LaunchScheduled(ctx, id); err != nil {
			slog.Error("auto-launch failed", "campaign_id", id, "err", err)
		}
	}
	return nil
}

func (s *Sweeper) AutoComplete(ctx context.Context) error {
	n, err := s.Store.CompleteExpired(ctx, util.NowUTC())
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("campaigns auto-completed", "count", n)
	}
	return nil
}

func (s *Sweeper) Resurrect(ctx context.Context) error {
	n, err := s.Store.ResurrectFailed(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("failed queue items resurrected", "count", n)
	}
	return nil
}

type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Schedule registers jobs on c at a fixed interval. Job errors are logged
// and counted, never fatal to the scheduler.
func Schedule(c *cron.Cron, every time.Duration, jobs []Job) error {
	spec := "@every " + every.String()
	for _, j := range jobs {
		j := j
		_, err := c.AddFunc(spec, func() {
			if err := j.Run(context.Background()); err != nil {
				observability.SweepRuns.WithLabelValues(j.Name, "error").Inc()
				slog.Error("sweep failed", "job", j.Name, "err", err)
				return
			}
			observability.SweepRuns.WithLabelValues(j.Name, "ok").Inc()
		})
		if err != nil {
			return err
		}
	}
	return nil
}
