// Package httpapi exposes the signage analytics use cases over HTTP.
package httpapi

import (
	"context"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/usecase/catalog"
	"signage-analytics/internal/usecase/playback"
	"signage-analytics/internal/usecase/reports"
	"signage-analytics/internal/usecase/schedule"
)

// Catalog registers ads and TVs.
type Catalog interface {
	RegisterAd(ctx context.Context, p catalog.AdParams) (domain.Ad, error)
	RegisterTV(ctx context.Context, p catalog.TVParams) (domain.TV, error)
	SetTVStatus(ctx context.Context, code, status string) (domain.TV, error)
}

// Schedules manages schedules and answers what is playing.
type Schedules interface {
	Create(ctx context.Context, p schedule.CreateParams) (domain.AdSchedule, error)
	CreateBulk(ctx context.Context, items []schedule.CreateParams) (schedule.BulkCreateResult, error)
	CreateForLocations(ctx context.Context, p schedule.LocationParams) (schedule.LocationSchedule, error)
	TVsInLocations(ctx context.Context, sel domain.LocationSelector) (schedule.LocationPreview, error)
	Toggle(ctx context.Context, id int64) (domain.AdSchedule, error)
	ForAd(ctx context.Context, adID int64) ([]domain.AdSchedule, error)
	NowPlaying(ctx context.Context, tvCode string, now time.Time) (schedule.NowPlaying, error)
	CurrentMonitor(ctx context.Context, now time.Time) (schedule.Monitor, error)
	ForTVOnDate(ctx context.Context, tvCode string, date *time.Time, now time.Time) (schedule.TVDay, error)
}

// Playback ingests playback reports.
type Playback interface {
	Record(ctx context.Context, entry domain.PlaybackEntry) (playback.Result, error)
	RecordBulk(ctx context.Context, entries []domain.PlaybackEntry) playback.BulkResult
}

// Reports builds log listings and analytics.
type Reports interface {
	ListLogs(ctx context.Context, q reports.LogQuery) (reports.LogList, error)
	TVAnalysis(ctx context.Context, tvID int64, q reports.AnalysisQuery) (reports.TVReport, error)
	AdAnalysis(ctx context.Context, adID int64, q reports.AnalysisQuery) (reports.AdReport, error)
	Statistics(ctx context.Context, q reports.StatsQuery) (reports.StatsReport, error)
}

// Deps wires the handler. Queue may be nil, in which case async bulk
// ingestion is unavailable.
type Deps struct {
	Catalog         Catalog
	Schedules       Schedules
	Playback        Playback
	Reports         Reports
	Queue           domain.PlaybackQueue
	BusinessMetrics domain.BusinessMetricRepo
	Location        *time.Location
	Logger          zerolog.Logger
}

// Handler serves the REST API.
type Handler struct {
	catalog   Catalog
	schedules Schedules
	playback  Playback
	reports   Reports
	queue     domain.PlaybackQueue
	metrics   domain.BusinessMetricRepo
	loc       *time.Location
	log       zerolog.Logger
	now       func() time.Time
}

// New creates the handler.
func New(d Deps) *Handler {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		catalog:   d.Catalog,
		schedules: d.Schedules,
		playback:  d.Playback,
		reports:   d.Reports,
		queue:     d.Queue,
		metrics:   d.BusinessMetrics,
		loc:       loc,
		log:       d.Logger.With().Str("component", "httpapi").Logger(),
		now:       time.Now,
	}
}

// Mount registers the routes under /api/v1.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ads", h.createAd)
		r.Get("/ads/{id}/schedules", h.adSchedules)

		r.Post("/tvs", h.createTV)
		r.Get("/tvs/by-locations", h.tvsInLocations)
		r.Patch("/tvs/{code}/status", h.setTVStatus)
		r.Get("/tvs/{code}/schedules", h.tvSchedules)
		r.Get("/tvs/{code}/now-playing", h.nowPlaying)

		r.Post("/schedules", h.createSchedule)
		r.Post("/schedules/bulk", h.createSchedules)
		r.Post("/schedules/by-locations", h.createLocationSchedule)
		r.Patch("/schedules/{id}/toggle", h.toggleSchedule)
		r.Get("/live-monitor", h.liveMonitor)

		r.Post("/ad-logs", h.recordPlayback)
		r.Post("/ad-logs/bulk", h.recordBulk)
		r.Get("/ad-logs", h.listLogs)
		r.Get("/ad-logs/tv/{id}", h.tvAnalysis)
		r.Get("/ad-logs/ad/{id}", h.adAnalysis)

		r.Get("/statistics", h.statistics)
	})
}
