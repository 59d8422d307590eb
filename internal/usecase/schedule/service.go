package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/usecase/window"
)

// Service answers "what's on now" and manages schedule writes.
type Service struct {
	ads       domain.AdRepo
	tvs       domain.TVRepo
	schedules domain.ScheduleRepo
	metrics   domain.BusinessMetricRepo
	loc       *time.Location
	snapshots *Snapshots
}

// NewService creates the service. metrics may be nil.
func NewService(ads domain.AdRepo, tvs domain.TVRepo, schedules domain.ScheduleRepo, metrics domain.BusinessMetricRepo, loc *time.Location) *Service {
	if loc == nil {
		loc = window.LoadLocation(window.DefaultZone)
	}
	return &Service{ads: ads, tvs: tvs, schedules: schedules, metrics: metrics, loc: loc}
}

// NowPlaying is the state of one TV at a given minute.
type NowPlaying struct {
	TV          domain.TV `json:"tv"`
	CurrentTime string    `json:"currentTime"`
	Playing     bool      `json:"playing"`
	Match       *Match    `json:"match,omitempty"`
}

// MonitorSummary counts TVs by playback state.
type MonitorSummary struct {
	Total   int `json:"total"`
	Playing int `json:"playing"`
	Idle    int `json:"idle"`
}

// Monitor is the live view over all monitored TVs.
type Monitor struct {
	CurrentTime string         `json:"currentTime"`
	CheckedAt   time.Time      `json:"checkedAt"`
	Summary     MonitorSummary `json:"summary"`
	TVs         []NowPlaying   `json:"tvs"`
}

// NowPlaying resolves the TV by device code and matches it against the active schedules.
func (s *Service) NowPlaying(ctx context.Context, tvCode string, now time.Time) (NowPlaying, error) {
	tv, err := s.tvs.GetTVByCode(ctx, strings.TrimSpace(tvCode))
	if err != nil {
		return NowPlaying{}, fmt.Errorf("lookup tv: %w", err)
	}
	schedules, err := s.schedules.ListActiveAt(ctx, now)
	if err != nil {
		return NowPlaying{}, fmt.Errorf("list active schedules: %w", err)
	}
	return s.evaluate(tv, schedules, now), nil
}

// LiveMonitor evaluates every online, active TV against one snapshot of active schedules.
func (s *Service) LiveMonitor(ctx context.Context, now time.Time) (Monitor, error) {
	tvs, err := s.tvs.ListMonitoredTVs(ctx)
	if err != nil {
		return Monitor{}, fmt.Errorf("list monitored tvs: %w", err)
	}
	schedules, err := s.schedules.ListActiveAt(ctx, now)
	if err != nil {
		return Monitor{}, fmt.Errorf("list active schedules: %w", err)
	}
	monitor := Monitor{
		CurrentTime: Clock(now, s.loc),
		CheckedAt:   now.In(s.loc),
		TVs:         make([]NowPlaying, 0, len(tvs)),
	}
	for _, tv := range tvs {
		state := s.evaluate(tv, schedules, now)
		monitor.TVs = append(monitor.TVs, state)
		if state.Playing {
			monitor.Summary.Playing++
		}
	}
	monitor.Summary.Total = len(monitor.TVs)
	monitor.Summary.Idle = monitor.Summary.Total - monitor.Summary.Playing
	return monitor, nil
}

func (s *Service) evaluate(tv domain.TV, schedules []domain.AdSchedule, now time.Time) NowPlaying {
	clock := Clock(now, s.loc)
	state := NowPlaying{TV: tv, CurrentTime: clock}
	if m, ok := WhatsPlaying(tv.ID, schedules, now, clock); ok {
		state.Playing = true
		state.Match = &m
	}
	return state
}

// DayEntry is one schedule as seen by a single TV on a single day.
type DayEntry struct {
	ScheduleID int64     `json:"scheduleId"`
	Ad         domain.Ad `json:"ad"`
	PlayTimes  []string  `json:"playTimes"`
	ValidFrom  time.Time `json:"validFrom"`
	ValidTo    time.Time `json:"validTo"`
	Priority   int       `json:"priority"`
}

// TVDay lists a TV's schedules for one calendar day.
type TVDay struct {
	TV      domain.TV  `json:"tv"`
	Date    string     `json:"date"`
	Entries []DayEntry `json:"schedules"`
}

// ForTVOnDate returns the schedules targeting the TV whose validity overlaps the given day.
// A nil date means today.
func (s *Service) ForTVOnDate(ctx context.Context, tvCode string, date *time.Time, now time.Time) (TVDay, error) {
	tv, err := s.tvs.GetTVByCode(ctx, strings.TrimSpace(tvCode))
	if err != nil {
		return TVDay{}, fmt.Errorf("lookup tv: %w", err)
	}
	day := now
	if date != nil {
		day = *date
	}
	from, to := window.StartOfDay(day, s.loc), window.EndOfDay(day, s.loc)
	schedules, err := s.schedules.ListForTVBetween(ctx, tv.ID, from, to)
	if err != nil {
		return TVDay{}, fmt.Errorf("list schedules for tv: %w", err)
	}
	out := TVDay{TV: tv, Date: window.DateKey(from, s.loc), Entries: make([]DayEntry, 0, len(schedules))}
	for _, sc := range schedules {
		times, ok := sc.PlayTimesFor(tv.ID)
		if !ok {
			continue
		}
		sorted := append([]string(nil), times...)
		sort.Strings(sorted)
		out.Entries = append(out.Entries, DayEntry{
			ScheduleID: sc.ID,
			Ad:         sc.Ad,
			PlayTimes:  sorted,
			ValidFrom:  sc.ValidFrom,
			ValidTo:    sc.ValidTo,
			Priority:   sc.Priority,
		})
	}
	sortDayEntries(out.Entries)
	return out, nil
}

// sortDayEntries orders entries by priority, highest first, then by their
// earliest play-time. Entries without play-times go last within a priority.
func sortDayEntries(entries []DayEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return firstPlayTime(a) < firstPlayTime(b)
	})
}

func firstPlayTime(e DayEntry) string {
	if len(e.PlayTimes) == 0 {
		// sorts after every "HH:MM"
		return "~"
	}
	return e.PlayTimes[0]
}

// CreateParams describes a new schedule.
type CreateParams struct {
	AdID         int64
	TVs          []domain.ScheduleTV
	ValidFrom    time.Time
	ValidTo      time.Time
	RepeatInADay int
	Priority     int
	IsActive     *bool
}

// Create validates and stores a schedule. An ad may hold only one active schedule
// per validity period.
func (s *Service) Create(ctx context.Context, p CreateParams) (domain.AdSchedule, error) {
	if p.ValidFrom.IsZero() || p.ValidTo.IsZero() {
		return domain.AdSchedule{}, domain.Invalid("validFrom", "validFrom and validTo are required")
	}
	if p.ValidTo.Before(p.ValidFrom) {
		return domain.AdSchedule{}, domain.Invalid("validTo", "must not be before validFrom")
	}
	if len(p.TVs) == 0 {
		return domain.AdSchedule{}, domain.Invalid("tvs", "at least one TV is required")
	}
	ad, err := s.ads.GetAd(ctx, p.AdID)
	if err != nil {
		return domain.AdSchedule{}, fmt.Errorf("lookup ad: %w", err)
	}

	entries := make([]domain.ScheduleTV, 0, len(p.TVs))
	seen := make(map[int64]struct{}, len(p.TVs))
	for _, entry := range p.TVs {
		if _, dup := seen[entry.TVID]; dup {
			return domain.AdSchedule{}, domain.Invalid("tvs", fmt.Sprintf("tv %d listed twice", entry.TVID))
		}
		seen[entry.TVID] = struct{}{}
		if _, err := s.tvs.GetTV(ctx, entry.TVID); err != nil {
			return domain.AdSchedule{}, fmt.Errorf("lookup tv %d: %w", entry.TVID, err)
		}
		times, err := NormalizePlayTimes(entry.PlayTimes)
		if err != nil {
			return domain.AdSchedule{}, err
		}
		entries = append(entries, domain.ScheduleTV{TVID: entry.TVID, PlayTimes: times})
	}

	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	if active {
		overlap, err := s.schedules.HasActiveOverlap(ctx, ad.ID, p.ValidFrom, p.ValidTo)
		if err != nil {
			return domain.AdSchedule{}, fmt.Errorf("check overlap: %w", err)
		}
		if overlap {
			return domain.AdSchedule{}, domain.Conflict("ad", fmt.Sprintf("ad %d already has an active schedule in this period", ad.ID))
		}
	}

	repeat := p.RepeatInADay
	if repeat <= 0 {
		repeat = 1
	}
	priority := p.Priority
	if priority == 0 {
		priority = 1
	}
	created, err := s.schedules.CreateSchedule(ctx, domain.AdSchedule{
		AdID:         ad.ID,
		Ad:           ad,
		TVs:          entries,
		ValidFrom:    p.ValidFrom,
		ValidTo:      p.ValidTo,
		RepeatInADay: repeat,
		Priority:     priority,
		IsActive:     active,
	})
	if err != nil {
		return domain.AdSchedule{}, fmt.Errorf("create schedule: %w", err)
	}
	created.Ad = ad
	s.recordMetric(ctx, created)
	return created, nil
}

func (s *Service) recordMetric(ctx context.Context, sc domain.AdSchedule) {
	if s.metrics == nil {
		return
	}
	adID := sc.AdID
	_ = s.metrics.RecordBusinessMetric(ctx, domain.BusinessMetric{
		Event:    domain.BusinessMetricEventScheduleCreated,
		AdID:     &adID,
		Metadata: map[string]any{"schedule_id": sc.ID, "tvs": len(sc.TVs)},
	})
}

// ErrBadPlayTime is returned for play-times that are not "HH:MM".
var ErrBadPlayTime = errors.New("play-time must be HH:MM")

// NormalizePlayTimes validates "HH:MM" clock strings and drops duplicates, keeping order.
func NormalizePlayTimes(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, pt := range raw {
		pt = strings.TrimSpace(pt)
		if len(pt) != len(ClockLayout) {
			return nil, fmt.Errorf("%w: %w", domain.Invalid("playTimes", fmt.Sprintf("%q", pt)), ErrBadPlayTime)
		}
		if _, err := time.Parse(ClockLayout, pt); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.Invalid("playTimes", fmt.Sprintf("%q", pt)), ErrBadPlayTime)
		}
		if _, dup := seen[pt]; dup {
			continue
		}
		seen[pt] = struct{}{}
		out = append(out, pt)
	}
	return out, nil
}
