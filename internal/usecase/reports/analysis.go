package reports

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/infra/metrics"
	"signage-analytics/internal/usecase/playback"
	"signage-analytics/internal/usecase/stats"
	"signage-analytics/internal/usecase/window"
)

// AnalysisQuery selects the logs of one TV or ad.
type AnalysisQuery struct {
	Period window.Request
	// AdID narrows a TV analysis, TVID narrows an ad analysis.
	AdID             int64
	TVID             int64
	CompletionStatus string
	Page             int
	Limit            int

	IncludeHourly        bool
	IncludeAdPerformance bool
	IncludeComparative   bool

	IncludeTVPerformance bool
	IncludeGeographic    bool
	IncludeTimeAnalysis  bool
}

// Duration is a total play time.
type Duration struct {
	Seconds float64 `json:"seconds"`
	Hours   float64 `json:"hours"`
}

func durationOf(seconds float64) Duration {
	return Duration{Seconds: seconds, Hours: playback.Round(seconds/3600, 2)}
}

// TVSummary is the headline of a TV analysis.
type TVSummary struct {
	TotalPlays          int      `json:"totalPlays"`
	TotalPlayDuration   Duration `json:"totalPlayDuration"`
	CompletedPlays      int      `json:"completedPlays"`
	CompletionRate      float64  `json:"completionRate"`
	AveragePlayDuration float64  `json:"averagePlayDuration"`
}

// TVPerformance are the rate metrics of a TV.
type TVPerformance struct {
	SuccessRate      float64 `json:"successRate"`
	InterruptionRate float64 `json:"interruptionRate"`
	Efficiency       float64 `json:"efficiency"`
}

// TVAnalytics is the analytics block of a TV analysis.
type TVAnalytics struct {
	Summary             TVSummary          `json:"summary"`
	PerformanceMetrics  TVPerformance      `json:"performanceMetrics"`
	HourlyBreakdown     []stats.HourBucket `json:"hourlyBreakdown,omitempty"`
	AdPerformance       []stats.AdRow      `json:"adPerformance,omitempty"`
	ComparativeAnalysis *stats.Comparison  `json:"comparativeAnalysis,omitempty"`
	DailyTrends         []stats.DayBucket  `json:"dailyTrends"`
}

// TVReport is the analysis of one TV over a period.
type TVReport struct {
	TV         domain.TV              `json:"tvDetails"`
	Period     Period                 `json:"period"`
	Logs       []playback.EnrichedLog `json:"logs"`
	Analytics  TVAnalytics            `json:"analytics"`
	Pagination Pagination             `json:"pagination"`
}

// TVAnalysis reports on the logs of one TV. Comparative ranking uses every log
// of the window as population.
func (s *Service) TVAnalysis(ctx context.Context, tvID int64, q AnalysisQuery) (TVReport, error) {
	defer metrics.ObserveReport("tv_analysis", time.Now())

	if err := validateCompletion(q.CompletionStatus); err != nil {
		return TVReport{}, err
	}
	tv, err := s.tvs.GetTV(ctx, tvID)
	if err != nil {
		return TVReport{}, fmt.Errorf("lookup tv: %w", err)
	}
	now := s.now()
	win, err := s.resolver.Resolve(q.Period, now)
	if err != nil {
		return TVReport{}, err
	}
	loc := s.resolver.Location()

	overall := stats.NewOverall()
	hourly := stats.NewHourly(loc)
	byAd := stats.NewByAd()
	daily := stats.NewDaily(loc, win, now)
	population := stats.NewByTV()
	var logs []playback.EnrichedLog

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		filter := domain.LogFilter{TVID: tvID, AdID: q.AdID, From: win.From, To: win.To, SortBy: "createdAt", SortDesc: true}
		return s.stream(gctx, filter, q.CompletionStatus, func(e playback.EnrichedLog) {
			logs = append(logs, e)
			overall.Add(e)
			hourly.Add(e)
			byAd.Add(e)
			daily.Add(e)
		})
	})
	if q.IncludeComparative {
		g.Go(func() error {
			filter := domain.LogFilter{From: win.From, To: win.To}
			return s.stream(gctx, filter, CompletionAll, population.Add)
		})
	}
	if err := g.Wait(); err != nil {
		return TVReport{}, fmt.Errorf("stream logs: %w", err)
	}

	perf := overall.Performance()
	analytics := TVAnalytics{
		Summary: TVSummary{
			TotalPlays:        overall.Count(),
			TotalPlayDuration: durationOf(overall.TotalSeconds()),
			CompletedPlays:    overall.CompletedCount(),
			CompletionRate:    perf.SuccessRate,
		},
		PerformanceMetrics: TVPerformance{
			SuccessRate:      perf.SuccessRate,
			InterruptionRate: perf.InterruptionRate,
			Efficiency:       overall.MeanEfficiency(),
		},
		DailyTrends: daily.Result(),
	}
	if n := overall.Count(); n > 0 {
		analytics.Summary.AveragePlayDuration = playback.Round(overall.TotalSeconds()/float64(n), 2)
	}
	if q.IncludeHourly {
		analytics.HourlyBreakdown = hourly.Result()
	}
	if q.IncludeAdPerformance {
		analytics.AdPerformance = byAd.Result()
	}
	if q.IncludeComparative {
		cmp := stats.Compare(population.Result(), tvID)
		analytics.ComparativeAnalysis = &cmp
	}

	page, limit := normalizePage(q.Page, q.Limit)
	from, to := pageBounds(page, limit, len(logs))
	out := TVReport{
		TV:         tv,
		Period:     periodOf(q.Period.Period, win),
		Logs:       logs[from:to],
		Analytics:  analytics,
		Pagination: paginate(page, limit, len(logs)),
	}
	if out.Logs == nil {
		out.Logs = []playback.EnrichedLog{}
	}
	return out, nil
}

// AdSummary is the headline of an ad analysis.
type AdSummary struct {
	TotalPlays        int      `json:"totalPlays"`
	UniqueTVs         int      `json:"uniqueTVs"`
	TotalReach        int      `json:"totalReach"`
	TotalPlayDuration Duration `json:"totalPlayDuration"`
	CompletionRate    float64  `json:"completionRate"`
}

// AdPerformance are the engagement metrics of an ad.
type AdPerformance struct {
	EngagementRate          float64 `json:"engagementRate"`
	AvgCompletionPercentage float64 `json:"avgCompletionPercentage"`
}

// AdAnalytics is the analytics block of an ad analysis.
type AdAnalytics struct {
	Summary              AdSummary          `json:"summary"`
	PerformanceMetrics   AdPerformance      `json:"performanceMetrics"`
	TVPerformance        []stats.TVRow      `json:"tvPerformance,omitempty"`
	GeographicalAnalysis []stats.GeoRow     `json:"geographicalAnalysis,omitempty"`
	TimeAnalysis         *stats.TimeSlots   `json:"timeAnalysis,omitempty"`
	PerformanceTrends    []stats.WeekBucket `json:"performanceTrends"`
}

// AdReport is the analysis of one ad over a period.
type AdReport struct {
	Ad         domain.Ad              `json:"adDetails"`
	Period     Period                 `json:"period"`
	Logs       []playback.EnrichedLog `json:"logs"`
	Analytics  AdAnalytics            `json:"analytics"`
	Pagination Pagination             `json:"pagination"`
}

// AdAnalysis reports on the logs of one ad.
func (s *Service) AdAnalysis(ctx context.Context, adID int64, q AnalysisQuery) (AdReport, error) {
	defer metrics.ObserveReport("ad_analysis", time.Now())

	if err := validateCompletion(q.CompletionStatus); err != nil {
		return AdReport{}, err
	}
	ad, err := s.ads.GetAd(ctx, adID)
	if err != nil {
		return AdReport{}, fmt.Errorf("lookup ad: %w", err)
	}
	now := s.now()
	win, err := s.resolver.Resolve(q.Period, now)
	if err != nil {
		return AdReport{}, err
	}
	loc := s.resolver.Location()

	overall := stats.NewOverall()
	byTV := stats.NewByTV()
	geo := stats.NewGeographic()
	slots := stats.NewTimeOfDay(loc)
	weekly := stats.NewWeekly(loc)
	var logs []playback.EnrichedLog

	filter := domain.LogFilter{AdID: adID, TVID: q.TVID, From: win.From, To: win.To, SortBy: "createdAt", SortDesc: true}
	err = s.stream(ctx, filter, q.CompletionStatus, func(e playback.EnrichedLog) {
		logs = append(logs, e)
		for _, acc := range []stats.Accumulator{overall, byTV, geo, slots, weekly} {
			acc.Add(e)
		}
	})
	if err != nil {
		return AdReport{}, fmt.Errorf("stream logs: %w", err)
	}

	analytics := AdAnalytics{
		Summary: AdSummary{
			TotalPlays:        overall.Count(),
			UniqueTVs:         overall.Reach(),
			TotalReach:        overall.Reach(),
			TotalPlayDuration: durationOf(overall.TotalSeconds()),
			CompletionRate:    overall.Performance().SuccessRate,
		},
		PerformanceMetrics: AdPerformance{
			EngagementRate:          overall.EngagementRate(),
			AvgCompletionPercentage: overall.MeanCompletionPercentage(),
		},
		PerformanceTrends: weekly.Result(),
	}
	if q.IncludeTVPerformance {
		analytics.TVPerformance = byTV.Result()
	}
	if q.IncludeGeographic {
		analytics.GeographicalAnalysis = geo.Result()
	}
	if q.IncludeTimeAnalysis {
		ts := slots.Result()
		analytics.TimeAnalysis = &ts
	}

	page, limit := normalizePage(q.Page, q.Limit)
	from, to := pageBounds(page, limit, len(logs))
	out := AdReport{
		Ad:         ad,
		Period:     periodOf(q.Period.Period, win),
		Logs:       logs[from:to],
		Analytics:  analytics,
		Pagination: paginate(page, limit, len(logs)),
	}
	if out.Logs == nil {
		out.Logs = []playback.EnrichedLog{}
	}
	return out, nil
}

// StatsQuery selects the logs folded by Statistics.
type StatsQuery struct {
	Period           window.Request
	AdID             int64
	TVID             int64
	CompletionStatus string
	GroupBy          stats.GroupBy
}

// StatsReport is an aggregate over a resolved window.
type StatsReport struct {
	Period Period `json:"period"`
	stats.Snapshot
}

// Statistics streams the matching logs through the aggregator.
func (s *Service) Statistics(ctx context.Context, q StatsQuery) (StatsReport, error) {
	defer metrics.ObserveReport("statistics", time.Now())

	if err := validateCompletion(q.CompletionStatus); err != nil {
		return StatsReport{}, err
	}
	now := s.now()
	win, err := s.resolver.Resolve(q.Period, now)
	if err != nil {
		return StatsReport{}, err
	}
	folder := stats.NewFolder(q.GroupBy, stats.Options{Location: s.resolver.Location(), Window: win, Now: now})
	filter := domain.LogFilter{AdID: q.AdID, TVID: q.TVID, From: win.From, To: win.To}
	if err := s.stream(ctx, filter, q.CompletionStatus, folder.Add); err != nil {
		return StatsReport{}, fmt.Errorf("stream logs: %w", err)
	}
	snap := folder.Result()
	s.log.Debug().
		Str("group_by", string(snap.GroupBy)).
		Int("logs", snap.Overall.TotalLogs).
		Msg("reports: statistics built")
	return StatsReport{Period: periodOf(q.Period.Period, win), Snapshot: snap}, nil
}
