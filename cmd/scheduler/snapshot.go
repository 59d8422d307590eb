package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"signage-analytics/internal/infra/metrics"
	"signage-analytics/internal/usecase/schedule"
)

type liveMonitor interface {
	LiveMonitor(ctx context.Context, now time.Time) (schedule.Monitor, error)
}

// snapshotJob stores the current live-monitor view for the API and the gauges.
type snapshotJob struct {
	monitor   liveMonitor
	snapshots *schedule.Snapshots
	log       zerolog.Logger
	now       func() time.Time
}

func (j *snapshotJob) Run(ctx context.Context) {
	if err := j.run(ctx); err != nil {
		j.log.Error().Err(err).Msg("scheduler: live monitor snapshot failed")
	}
}

func (j *snapshotJob) run(ctx context.Context) error {
	now := time.Now()
	if j.now != nil {
		now = j.now()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	m, err := j.monitor.LiveMonitor(ctx, now)
	if err != nil {
		return err
	}
	metrics.SetLiveMonitor(m.Summary.Playing, m.Summary.Idle)

	if err := j.snapshots.Save(m); err != nil {
		return err
	}
	j.log.Debug().Int("tvs", m.Summary.Total).Int("playing", m.Summary.Playing).Str("clock", m.CurrentTime).Msg("scheduler: live monitor snapshot stored")
	return nil
}
