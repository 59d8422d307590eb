package stats

import (
	"time"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/usecase/playback"
	"signage-analytics/internal/usecase/window"
)

// GroupBy selects the breakdown produced next to the overall numbers.
type GroupBy string

const (
	GroupOverall    GroupBy = "overall"
	GroupHourly     GroupBy = "hourly"
	GroupTimeOfDay  GroupBy = "time_of_day"
	GroupDaily      GroupBy = "daily"
	GroupWeekly     GroupBy = "weekly"
	GroupByTV       GroupBy = "by_tv"
	GroupByAd       GroupBy = "by_ad"
	GroupGeographic GroupBy = "geographic"
)

// ParseGroupBy validates a group-by value. Empty means overall.
func ParseGroupBy(raw string) (GroupBy, error) {
	switch g := GroupBy(raw); g {
	case "":
		return GroupOverall, nil
	case GroupOverall, GroupHourly, GroupTimeOfDay, GroupDaily, GroupWeekly, GroupByTV, GroupByAd, GroupGeographic:
		return g, nil
	default:
		return "", domain.Invalid("groupBy", "unsupported value "+raw)
	}
}

// Options carry the context some breakdowns depend on.
type Options struct {
	Location *time.Location
	Window   window.Window
	Now      time.Time
}

// Snapshot is the aggregate of one log set.
type Snapshot struct {
	GroupBy        GroupBy      `json:"groupBy"`
	Overall        OverallStats `json:"overall"`
	Analytics      *Analytics   `json:"analytics"`
	Reach          int          `json:"reach"`
	EngagementRate float64      `json:"engagementRate"`

	Hourly     []HourBucket `json:"hourly,omitempty"`
	TimeOfDay  *TimeSlots   `json:"timeOfDay,omitempty"`
	Daily      []DayBucket  `json:"daily,omitempty"`
	Weekly     []WeekBucket `json:"weekly,omitempty"`
	ByTV       []TVRow      `json:"byTv,omitempty"`
	ByAd       []AdRow      `json:"byAd,omitempty"`
	Geographic []GeoRow     `json:"geographic,omitempty"`
}

// Folder streams logs into the overall numbers and one breakdown.
type Folder struct {
	groupBy GroupBy
	overall *Overall
	group   Accumulator
	finish  func(*Snapshot)
}

// NewFolder prepares a fold for groupBy.
func NewFolder(groupBy GroupBy, opts Options) *Folder {
	if opts.Location == nil {
		opts.Location = window.LoadLocation(window.DefaultZone)
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	f := &Folder{groupBy: groupBy, overall: NewOverall()}
	switch groupBy {
	case GroupHourly:
		acc := NewHourly(opts.Location)
		f.group, f.finish = acc, func(s *Snapshot) { s.Hourly = acc.Result() }
	case GroupTimeOfDay:
		acc := NewTimeOfDay(opts.Location)
		f.group, f.finish = acc, func(s *Snapshot) {
			slots := acc.Result()
			s.TimeOfDay = &slots
		}
	case GroupDaily:
		acc := NewDaily(opts.Location, opts.Window, opts.Now)
		f.group, f.finish = acc, func(s *Snapshot) { s.Daily = acc.Result() }
	case GroupWeekly:
		acc := NewWeekly(opts.Location)
		f.group, f.finish = acc, func(s *Snapshot) { s.Weekly = acc.Result() }
	case GroupByTV:
		acc := NewByTV()
		f.group, f.finish = acc, func(s *Snapshot) { s.ByTV = acc.Result() }
	case GroupByAd:
		acc := NewByAd()
		f.group, f.finish = acc, func(s *Snapshot) { s.ByAd = acc.Result() }
	case GroupGeographic:
		acc := NewGeographic()
		f.group, f.finish = acc, func(s *Snapshot) { s.Geographic = acc.Result() }
	default:
		f.groupBy = GroupOverall
	}
	return f
}

// Add folds one log.
func (f *Folder) Add(e playback.EnrichedLog) {
	f.overall.Add(e)
	if f.group != nil {
		f.group.Add(e)
	}
}

// Result returns the snapshot of everything folded so far.
func (f *Folder) Result() Snapshot {
	out := Snapshot{
		GroupBy:        f.groupBy,
		Overall:        f.overall.Stats(),
		Analytics:      f.overall.Analytics(),
		Reach:          f.overall.Reach(),
		EngagementRate: f.overall.EngagementRate(),
	}
	if f.finish != nil {
		f.finish(&out)
	}
	return out
}

// Aggregate folds an in-memory log set.
func Aggregate(logs []playback.EnrichedLog, groupBy GroupBy, opts Options) Snapshot {
	f := NewFolder(groupBy, opts)
	for _, e := range logs {
		f.Add(e)
	}
	return f.Result()
}
