package domain

import (
	"context"
	"errors"
	"time"
)

// AdRepo stores ads.
type AdRepo interface {
	CreateAd(ctx context.Context, ad Ad) (Ad, error)
	// GetAd returns ErrNotFound when the ad does not exist.
	GetAd(ctx context.Context, id int64) (Ad, error)
}

// TVRepo stores devices.
type TVRepo interface {
	// CreateTV returns ErrConflict when the device code is taken.
	CreateTV(ctx context.Context, tv TV) (TV, error)
	GetTV(ctx context.Context, id int64) (TV, error)
	GetTVByCode(ctx context.Context, code string) (TV, error)
	// ListMonitoredTVs returns online, active TVs.
	ListMonitoredTVs(ctx context.Context) ([]TV, error)
	UpdateTVStatus(ctx context.Context, id int64, status TVStatus) error
	// MarkSynced records the last successful playback report of a device.
	MarkSynced(ctx context.Context, tvID, adID int64, at time.Time) error
	// ListTVsInLocations returns active TVs matching any id of sel, ordered by id.
	ListTVsInLocations(ctx context.Context, sel LocationSelector) ([]TV, error)
}

// ScheduleRepo stores ad schedules. Reads populate AdSchedule.Ad.
type ScheduleRepo interface {
	CreateSchedule(ctx context.Context, schedule AdSchedule) (AdSchedule, error)
	// GetSchedule returns ErrNotFound when the schedule does not exist.
	GetSchedule(ctx context.Context, id int64) (AdSchedule, error)
	SetScheduleActive(ctx context.Context, id int64, active bool) error
	// ListSchedulesForAd returns every schedule of the ad, latest validFrom first.
	ListSchedulesForAd(ctx context.Context, adID int64) ([]AdSchedule, error)
	// ListActiveAt returns active schedules whose validity window contains at,
	// in creation order.
	ListActiveAt(ctx context.Context, at time.Time) ([]AdSchedule, error)
	// ListForTVBetween returns active schedules targeting tvID whose validity overlaps [from, to].
	ListForTVBetween(ctx context.Context, tvID int64, from, to time.Time) ([]AdSchedule, error)
	// HasActiveOverlap reports whether the ad already has an active schedule overlapping [from, to].
	HasActiveOverlap(ctx context.Context, adID int64, from, to time.Time) (bool, error)
}

// AdLogRepo stores playback logs. Reads populate AdLog.Ad and AdLog.TV.
type AdLogRepo interface {
	// InsertLog stores the log unless one with the same (ad, tv, start, end) exists.
	// inserted is false for duplicates, in which case the existing row is returned.
	InsertLog(ctx context.Context, log AdLog) (stored AdLog, inserted bool, err error)
	ListLogs(ctx context.Context, filter LogFilter) ([]AdLog, error)
	CountLogs(ctx context.Context, filter LogFilter) (int, error)
	// StreamLogs calls fn for every matching log without materialising the result set.
	StreamLogs(ctx context.Context, filter LogFilter, fn func(AdLog) error) error
}

// SequenceRepo hands out monotonically increasing ids per named counter.
type SequenceRepo interface {
	NextSequence(ctx context.Context, name string) (int64, error)
}

// ErrCacheMiss is returned by Cache.Get when the key does not exist.
var ErrCacheMiss = errors.New("cache: miss")

// Cache is used for small TTL keyed state.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}

// PlaybackEvent is emitted after a new playback log has been stored.
type PlaybackEvent struct {
	LogID      int64     `json:"log_id"`
	AdID       int64     `json:"ad_id"`
	TVID       int64     `json:"tv_id"`
	TVCode     string    `json:"tv_code"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	PlayTime   string    `json:"play_time,omitempty"`
	Remark     string    `json:"remark,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// EventPublisher fans playback events out to downstream consumers.
type EventPublisher interface {
	PublishPlayback(ctx context.Context, event PlaybackEvent) error
}
