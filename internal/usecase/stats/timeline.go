package stats

import (
	"fmt"
	"sort"
	"time"

	"signage-analytics/internal/usecase/playback"
	"signage-analytics/internal/usecase/window"
)

// HourBucket aggregates plays that started within one hour of the day.
type HourBucket struct {
	Hour            int     `json:"hour"`
	HourLabel       string  `json:"hourLabel"`
	Plays           int     `json:"plays"`
	TotalDuration   float64 `json:"totalDuration"`
	CompletedPlays  int     `json:"completedPlays"`
	AverageDuration float64 `json:"averageDuration"`
	CompletionRate  float64 `json:"completionRate"`
}

// Hourly buckets plays by the hour of their start time.
type Hourly struct {
	loc     *time.Location
	buckets [24]HourBucket
}

// NewHourly creates 24 empty buckets.
func NewHourly(loc *time.Location) *Hourly {
	h := &Hourly{loc: loc}
	for i := range h.buckets {
		h.buckets[i] = HourBucket{Hour: i, HourLabel: fmt.Sprintf("%d:00 - %d:00", i, i+1)}
	}
	return h
}

func (h *Hourly) Add(e playback.EnrichedLog) {
	b := &h.buckets[e.StartTime.In(h.loc).Hour()]
	b.Plays++
	b.TotalDuration += e.PlayDuration.Seconds
	if e.Completed() {
		b.CompletedPlays++
	}
}

func (h *Hourly) Result() []HourBucket {
	out := make([]HourBucket, len(h.buckets))
	for i, b := range h.buckets {
		b.AverageDuration = mean(b.TotalDuration, b.Plays)
		b.CompletionRate = ratio(b.CompletedPlays, b.Plays)
		out[i] = b
	}
	return out
}

// TimeSlot is one part of the day.
type TimeSlot struct {
	Start           int     `json:"start"`
	End             int     `json:"end"`
	Label           string  `json:"label"`
	Plays           int     `json:"plays"`
	Duration        float64 `json:"duration"`
	AverageDuration float64 `json:"averageDuration"`
	Percentage      float64 `json:"percentage"`
}

func (s TimeSlot) contains(hour int) bool {
	if s.Start > s.End {
		return hour >= s.Start || hour < s.End
	}
	return hour >= s.Start && hour < s.End
}

// TimeSlots splits the day into morning, afternoon, evening and night.
type TimeSlots struct {
	Morning   TimeSlot `json:"morning"`
	Afternoon TimeSlot `json:"afternoon"`
	Evening   TimeSlot `json:"evening"`
	Night     TimeSlot `json:"night"`
}

// TimeOfDay buckets plays into day parts. Night wraps around midnight.
type TimeOfDay struct {
	loc   *time.Location
	total int
	slots TimeSlots
}

// NewTimeOfDay creates empty day parts.
func NewTimeOfDay(loc *time.Location) *TimeOfDay {
	return &TimeOfDay{loc: loc, slots: TimeSlots{
		Morning:   TimeSlot{Start: 6, End: 12, Label: "Morning (6AM-12PM)"},
		Afternoon: TimeSlot{Start: 12, End: 18, Label: "Afternoon (12PM-6PM)"},
		Evening:   TimeSlot{Start: 18, End: 22, Label: "Evening (6PM-10PM)"},
		Night:     TimeSlot{Start: 22, End: 6, Label: "Night (10PM-6AM)"},
	}}
}

func (t *TimeOfDay) all() []*TimeSlot {
	return []*TimeSlot{&t.slots.Morning, &t.slots.Afternoon, &t.slots.Evening, &t.slots.Night}
}

func (t *TimeOfDay) Add(e playback.EnrichedLog) {
	t.total++
	hour := e.StartTime.In(t.loc).Hour()
	for _, slot := range t.all() {
		if slot.contains(hour) {
			slot.Plays++
			slot.Duration += e.PlayDuration.Seconds
		}
	}
}

func (t *TimeOfDay) Result() TimeSlots {
	out := *t
	for _, slot := range out.all() {
		slot.AverageDuration = mean(slot.Duration, slot.Plays)
		slot.Percentage = ratio(slot.Plays, t.total)
	}
	return out.slots
}

// DayBucket aggregates one calendar day.
type DayBucket struct {
	Date            string  `json:"date"`
	Plays           int     `json:"plays"`
	TotalDuration   float64 `json:"totalDuration"`
	CompletedPlays  int     `json:"completedPlays"`
	UniqueAdCount   int     `json:"uniqueAdCount"`
	UniqueTVCount   int     `json:"uniqueTVCount"`
	AverageDuration float64 `json:"averageDuration"`
	CompletionRate  float64 `json:"completionRate"`
}

type dayAcc struct {
	DayBucket
	ads map[int64]struct{}
	tvs map[int64]struct{}
}

// Daily buckets plays per calendar day of the window. Every day of the window
// gets a bucket, including days without plays; plays outside it are ignored.
type Daily struct {
	loc      *time.Location
	win      window.Window
	now      time.Time
	days     map[string]*dayAcc
	earliest time.Time
}

// NewDaily creates a daily trend over win. A zero win.From starts at the earliest
// log; a zero win.To ends at now.
func NewDaily(loc *time.Location, win window.Window, now time.Time) *Daily {
	return &Daily{loc: loc, win: win, now: now, days: make(map[string]*dayAcc)}
}

func (d *Daily) Add(e playback.EnrichedLog) {
	if !d.win.Contains(e.StartTime) {
		return
	}
	if d.earliest.IsZero() || e.StartTime.Before(d.earliest) {
		d.earliest = e.StartTime
	}
	key := window.DateKey(e.StartTime, d.loc)
	acc, ok := d.days[key]
	if !ok {
		acc = &dayAcc{
			DayBucket: DayBucket{Date: key},
			ads:       make(map[int64]struct{}),
			tvs:       make(map[int64]struct{}),
		}
		d.days[key] = acc
	}
	acc.Plays++
	acc.TotalDuration += e.PlayDuration.Seconds
	if e.Completed() {
		acc.CompletedPlays++
	}
	acc.ads[e.AdID] = struct{}{}
	acc.tvs[e.TVID] = struct{}{}
}

func (d *Daily) Result() []DayBucket {
	from, to := d.win.From, d.win.To
	if from.IsZero() {
		if d.earliest.IsZero() {
			return []DayBucket{}
		}
		from = d.earliest
	}
	if to.IsZero() {
		to = d.now
	}
	var out []DayBucket
	end := window.StartOfDay(to, d.loc)
	for day := window.StartOfDay(from, d.loc); !day.After(end); day = day.AddDate(0, 0, 1) {
		key := window.DateKey(day, d.loc)
		b := DayBucket{Date: key}
		if acc, ok := d.days[key]; ok {
			b = acc.DayBucket
			b.UniqueAdCount = len(acc.ads)
			b.UniqueTVCount = len(acc.tvs)
			b.AverageDuration = mean(b.TotalDuration, b.Plays)
			b.CompletionRate = ratio(b.CompletedPlays, b.Plays)
		}
		out = append(out, b)
	}
	if out == nil {
		out = []DayBucket{}
	}
	return out
}

// WeekBucket aggregates one Monday-based week.
type WeekBucket struct {
	WeekStart       string  `json:"weekStart"`
	Plays           int     `json:"plays"`
	TotalDuration   float64 `json:"totalDuration"`
	CompletedPlays  int     `json:"completedPlays"`
	Engagement      int     `json:"engagement"`
	AverageDuration float64 `json:"averageDuration"`
	CompletionRate  float64 `json:"completionRate"`
	EngagementRate  float64 `json:"engagementRate"`
}

// Weekly buckets plays by the Monday of their week.
type Weekly struct {
	loc   *time.Location
	weeks map[string]*WeekBucket
}

// NewWeekly creates an empty weekly trend.
func NewWeekly(loc *time.Location) *Weekly {
	return &Weekly{loc: loc, weeks: make(map[string]*WeekBucket)}
}

// WeekStart returns midnight of the Monday starting t's week in loc.
// Sunday belongs to the week of the preceding Monday.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	day := window.StartOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func (w *Weekly) Add(e playback.EnrichedLog) {
	key := window.DateKey(WeekStart(e.StartTime, w.loc), w.loc)
	b, ok := w.weeks[key]
	if !ok {
		b = &WeekBucket{WeekStart: key}
		w.weeks[key] = b
	}
	b.Plays++
	b.TotalDuration += e.PlayDuration.Seconds
	if e.Completed() {
		b.CompletedPlays++
	}
	if e.Engaged() {
		b.Engagement++
	}
}

func (w *Weekly) Result() []WeekBucket {
	out := make([]WeekBucket, 0, len(w.weeks))
	for _, b := range w.weeks {
		week := *b
		week.AverageDuration = mean(week.TotalDuration, week.Plays)
		week.CompletionRate = ratio(week.CompletedPlays, week.Plays)
		week.EngagementRate = ratio(week.Engagement, week.Plays)
		out = append(out, week)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart < out[j].WeekStart })
	return out
}
