// Package reports builds the playback log listings and analysis reports served by the API.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/infra/metrics"
	"signage-analytics/internal/usecase/playback"
	"signage-analytics/internal/usecase/stats"
	"signage-analytics/internal/usecase/window"
)

// DefaultLimit is the page size used when the caller does not pass one.
const DefaultLimit = 10

// Sort keys accepted by ListLogs. The duration based keys are computed by the store.
var sortKeys = map[string]bool{
	"createdAt":            true,
	"updatedAt":            true,
	"startTime":            true,
	"endTime":              true,
	"repeatCount":          true,
	"adTitle":              true,
	"actualDuration":       true,
	"completionPercentage": true,
	"playDuration":         true,
}

// CompletionAll disables completion filtering.
const CompletionAll = "all"

var completionStatuses = map[string]bool{
	"":                         true,
	CompletionAll:              true,
	playback.StatusCompleted:   true,
	playback.StatusUncompleted: true,
	"interrupted":              true,
	"not_played":               true,
}

// Service builds reports over stored playback logs.
type Service struct {
	ads      domain.AdRepo
	tvs      domain.TVRepo
	logs     domain.AdLogRepo
	resolver *window.Resolver
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates the report service.
func NewService(ads domain.AdRepo, tvs domain.TVRepo, logs domain.AdLogRepo, resolver *window.Resolver, logger zerolog.Logger) *Service {
	if resolver == nil {
		resolver = window.NewResolver(nil)
	}
	return &Service{ads: ads, tvs: tvs, logs: logs, resolver: resolver, log: logger, now: time.Now}
}

// Pagination describes one page of a listing.
type Pagination struct {
	CurrentPage        int  `json:"currentPage"`
	TotalPages         int  `json:"totalPages"`
	TotalCount         int  `json:"totalCount"`
	HasNextPage        bool `json:"hasNextPage"`
	HasPrevPage        bool `json:"hasPrevPage"`
	Limit              int  `json:"limit"`
	OriginalTotalCount int  `json:"originalTotalCount,omitempty"`
}

func paginate(page, limit, total int) Pagination {
	p := Pagination{CurrentPage: page, TotalCount: total, Limit: limit, HasPrevPage: page > 1, TotalPages: 1}
	if limit > 0 {
		p.TotalPages = (total + limit - 1) / limit
		p.HasNextPage = page*limit < total
	}
	return p
}

func pageBounds(page, limit, total int) (int, int) {
	if limit <= 0 {
		return 0, total
	}
	from := (page - 1) * limit
	if from > total {
		from = total
	}
	to := from + limit
	if to > total {
		to = total
	}
	return from, to
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 0 {
		limit = DefaultLimit
	}
	return page, limit
}

func validateCompletion(status string) error {
	if !completionStatuses[status] {
		return domain.Invalid("completionStatus", "must be one of all, completed, uncompleted, interrupted, not_played")
	}
	return nil
}

// Period echoes the resolved window of a report.
type Period struct {
	Type      window.Period `json:"type"`
	StartDate *time.Time    `json:"startDate"`
	EndDate   *time.Time    `json:"endDate"`
}

func periodOf(p window.Period, w window.Window) Period {
	out := Period{Type: p}
	if !w.From.IsZero() {
		from := w.From
		out.StartDate = &from
	}
	if !w.To.IsZero() {
		to := w.To
		out.EndDate = &to
	}
	return out
}

// stream enriches every log matching filter and hands those passing the
// completion filter to fn.
func (s *Service) stream(ctx context.Context, filter domain.LogFilter, completion string, fn func(playback.EnrichedLog)) error {
	return s.logs.StreamLogs(ctx, filter, func(l domain.AdLog) error {
		e := playback.Enrich(l, l.AdDuration())
		if playback.MatchesCompletion(e, completion) {
			fn(e)
		}
		return nil
	})
}

// LogQuery selects logs for ListLogs.
type LogQuery struct {
	Filter           domain.LogFilter
	CompletionStatus string
	Page             int
	// Limit is the page size; zero returns every log.
	Limit        int
	SortBy       string
	SortOrder    string
	IncludeStats bool
}

// LogList is a page of enriched logs.
type LogList struct {
	Logs             []playback.EnrichedLog `json:"logs"`
	Pagination       Pagination             `json:"pagination"`
	Stats            *stats.OverallStats    `json:"stats"`
	Analytics        *stats.Analytics       `json:"analytics"`
	CompletionStatus string                 `json:"completionStatus"`
}

// ListLogs returns a page of enriched logs together with statistics over the
// whole filter. Completion filtering happens after enrichment, so a completion
// status pages over the enriched set rather than in the store.
func (s *Service) ListLogs(ctx context.Context, q LogQuery) (LogList, error) {
	defer metrics.ObserveReport("list_logs", time.Now())

	if err := validateCompletion(q.CompletionStatus); err != nil {
		return LogList{}, err
	}
	page, limit := normalizePage(q.Page, q.Limit)
	filter := q.Filter
	filter.SortBy = "createdAt"
	if sortKeys[q.SortBy] {
		filter.SortBy = q.SortBy
	}
	filter.SortDesc = q.SortOrder == "" || q.SortOrder == "desc"

	status := q.CompletionStatus
	if status == "" {
		status = CompletionAll
	}
	out := LogList{CompletionStatus: status}

	var (
		total   int
		overall *stats.Overall
	)
	g, gctx := errgroup.WithContext(ctx)
	if status == CompletionAll {
		g.Go(func() error {
			paged := filter
			paged.Limit = limit
			if limit > 0 {
				paged.Offset = (page - 1) * limit
			}
			logs, err := s.logs.ListLogs(gctx, paged)
			if err != nil {
				return fmt.Errorf("list logs: %w", err)
			}
			out.Logs = playback.EnrichAll(logs)
			return nil
		})
		g.Go(func() error {
			n, err := s.logs.CountLogs(gctx, filter)
			if err != nil {
				return fmt.Errorf("count logs: %w", err)
			}
			total = n
			return nil
		})
	} else {
		g.Go(func() error {
			var matched []playback.EnrichedLog
			if err := s.stream(gctx, filter, status, func(e playback.EnrichedLog) {
				matched = append(matched, e)
			}); err != nil {
				return fmt.Errorf("stream logs: %w", err)
			}
			total = len(matched)
			from, to := pageBounds(page, limit, total)
			out.Logs = matched[from:to]
			return nil
		})
	}
	if q.IncludeStats {
		g.Go(func() error {
			acc := stats.NewOverall()
			unsorted := filter
			unsorted.SortBy = ""
			if err := s.stream(gctx, unsorted, CompletionAll, acc.Add); err != nil {
				return fmt.Errorf("stream stats: %w", err)
			}
			overall = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return LogList{}, err
	}

	if out.Logs == nil {
		out.Logs = []playback.EnrichedLog{}
	}
	out.Pagination = paginate(page, limit, total)
	if overall != nil {
		st := overall.Stats()
		out.Stats = &st
		out.Pagination.OriginalTotalCount = overall.Count()
	}
	pageStats := stats.NewOverall()
	for _, e := range out.Logs {
		pageStats.Add(e)
	}
	out.Analytics = pageStats.Analytics()
	return out, nil
}
