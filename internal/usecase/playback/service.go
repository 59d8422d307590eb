// Package playback ingests device playback reports and derives per-log analytics.
package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/infra/metrics"
)

// Service records playback logs.
type Service struct {
	ads     domain.AdRepo
	tvs     domain.TVRepo
	logs    domain.AdLogRepo
	events  domain.EventPublisher
	metrics domain.BusinessMetricRepo
	log     zerolog.Logger
	now     func() time.Time
}

// NewService creates the ingestion service. events and businessMetrics may be nil.
func NewService(ads domain.AdRepo, tvs domain.TVRepo, logs domain.AdLogRepo, events domain.EventPublisher, businessMetrics domain.BusinessMetricRepo, logger zerolog.Logger) *Service {
	return &Service{
		ads:     ads,
		tvs:     tvs,
		logs:    logs,
		events:  events,
		metrics: businessMetrics,
		log:     logger,
		now:     time.Now,
	}
}

// Result is the outcome of a single submission.
type Result struct {
	Log       domain.AdLog `json:"log"`
	Duplicate bool         `json:"duplicate"`
}

// Record stores one playback report. Resubmitting the same (ad, tv, start, end)
// returns the stored log with Duplicate set and changes nothing.
func (s *Service) Record(ctx context.Context, entry domain.PlaybackEntry) (Result, error) {
	code := strings.TrimSpace(entry.TVCode)
	if code == "" {
		return Result{}, domain.Invalid("tvCode", "is required")
	}
	if entry.AdID <= 0 {
		return Result{}, domain.Invalid("adId", "is required")
	}
	if entry.StartTime.IsZero() || entry.EndTime.IsZero() {
		return Result{}, domain.Invalid("startTime", "startTime and endTime are required")
	}

	tv, err := s.tvs.GetTVByCode(ctx, code)
	if err != nil {
		return Result{}, fmt.Errorf("lookup tv: %w", err)
	}
	ad, err := s.ads.GetAd(ctx, entry.AdID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup ad: %w", err)
	}

	title := entry.AdTitle
	if title == "" {
		title = ad.Title
	}
	stored, inserted, err := s.logs.InsertLog(ctx, domain.AdLog{
		AdID:        ad.ID,
		AdTitle:     title,
		TVID:        tv.ID,
		StartTime:   entry.StartTime,
		EndTime:     entry.EndTime,
		PlayTimes:   entry.PlayTimes,
		PlayTime:    entry.PlayTime,
		RepeatCount: entry.RepeatCount,
		Completed:   entry.Completed,
		Remark:      entry.Remark,
	})
	if err != nil {
		return Result{}, fmt.Errorf("insert log: %w", err)
	}
	if !inserted {
		metrics.ObservePlayback(metrics.PlaybackDuplicate)
		return Result{Log: stored, Duplicate: true}, nil
	}
	metrics.ObservePlayback(metrics.PlaybackStored)

	now := s.now()
	if err := s.tvs.MarkSynced(ctx, tv.ID, ad.ID, now); err != nil {
		return Result{}, fmt.Errorf("mark tv synced: %w", err)
	}
	s.afterInsert(ctx, stored, tv, now)
	return Result{Log: stored}, nil
}

func (s *Service) afterInsert(ctx context.Context, stored domain.AdLog, tv domain.TV, now time.Time) {
	if s.events != nil {
		err := s.events.PublishPlayback(ctx, domain.PlaybackEvent{
			LogID:      stored.ID,
			AdID:       stored.AdID,
			TVID:       tv.ID,
			TVCode:     tv.Code,
			StartTime:  stored.StartTime,
			EndTime:    stored.EndTime,
			PlayTime:   stored.PlayTime,
			Remark:     stored.Remark,
			RecordedAt: now,
		})
		if err != nil {
			s.log.Warn().Err(err).Int64("log_id", stored.ID).Msg("playback: publish event failed")
		}
	}
	if s.metrics != nil {
		adID, tvID := stored.AdID, tv.ID
		if err := s.metrics.RecordBusinessMetric(ctx, domain.BusinessMetric{
			Event:      domain.BusinessMetricEventPlaybackRecorded,
			AdID:       &adID,
			TVID:       &tvID,
			OccurredAt: now,
		}); err != nil {
			s.log.Warn().Err(err).Msg("playback: business metric failed")
		}
	}
}

// BulkStatus is the per-entry outcome of a bulk submission.
type BulkStatus string

const (
	BulkStored    BulkStatus = "stored"
	BulkDuplicate BulkStatus = "duplicate"
	BulkSkipped   BulkStatus = "skipped"
	BulkFailed    BulkStatus = "failed"
)

// BulkItem reports one entry of a bulk submission.
type BulkItem struct {
	Index  int        `json:"index"`
	TVCode string     `json:"tvCode"`
	Status BulkStatus `json:"status"`
	LogID  int64      `json:"logId,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// BulkResult summarises a bulk submission.
type BulkResult struct {
	Items      []BulkItem `json:"items"`
	Stored     int        `json:"stored"`
	Duplicates int        `json:"duplicates"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
}

// RecordBulk records entries one by one. Entries whose TV cannot be resolved are
// skipped; other failures are reported per entry and never abort the batch.
func (s *Service) RecordBulk(ctx context.Context, entries []domain.PlaybackEntry) BulkResult {
	out := BulkResult{Items: make([]BulkItem, 0, len(entries))}
	for i, entry := range entries {
		item := BulkItem{Index: i, TVCode: entry.TVCode}
		res, err := s.Record(ctx, entry)
		switch {
		case err == nil && res.Duplicate:
			item.Status = BulkDuplicate
			item.LogID = res.Log.ID
			out.Duplicates++
		case err == nil:
			item.Status = BulkStored
			item.LogID = res.Log.ID
			out.Stored++
		case errors.Is(err, domain.ErrNotFound) && domain.FieldOf(err) == "tv":
			item.Status = BulkSkipped
			item.Error = err.Error()
			out.Skipped++
		default:
			item.Status = BulkFailed
			item.Error = err.Error()
			out.Failed++
		}
		out.Items = append(out.Items, item)
	}
	return out
}
