package domain

import (
	"context"
	"time"
)

// BusinessMetric is a business event persisted for later analysis.
type BusinessMetric struct {
	Event      string
	AdID       *int64
	TVID       *int64
	Metadata   map[string]any
	OccurredAt time.Time
}

const (
	BusinessMetricEventAdRegistered     = "ad_registered"
	BusinessMetricEventTVRegistered     = "tv_registered"
	BusinessMetricEventScheduleCreated  = "schedule_created"
	BusinessMetricEventPlaybackRecorded = "playback_recorded"
	BusinessMetricEventBatchQueued      = "playback_batch_queued"
)

// BusinessMetricRepo stores business events.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}
