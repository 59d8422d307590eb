// Package window turns symbolic reporting periods into concrete time windows.
// Every day boundary is computed in one fixed location, never the host zone.
package window

import (
	"time"

	"signage-analytics/internal/domain"
)

// DefaultZone is the operating timezone of the signage network.
const DefaultZone = "Asia/Kolkata"

// Period is a symbolic reporting period.
type Period string

const (
	PeriodToday     Period = "today"
	PeriodYesterday Period = "yesterday"
	PeriodWeekly    Period = "weekly"
	PeriodMonthly   Period = "monthly"
	PeriodCustom    Period = "custom"
	PeriodSpecific  Period = "specific"
	PeriodDaily     Period = "daily"
)

// Request is the caller's period selection.
type Request struct {
	Period       Period
	StartDate    *time.Time
	EndDate      *time.Time
	SpecificDate *time.Time
}

// Window is an inclusive [From, To] interval. A zero bound is unbounded.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}

// Resolver resolves periods relative to a fixed location.
type Resolver struct {
	loc *time.Location
}

// NewResolver creates a resolver. A nil location means DefaultZone.
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = LoadLocation(DefaultZone)
	}
	return &Resolver{loc: loc}
}

// Location returns the operating location.
func (r *Resolver) Location() *time.Location { return r.loc }

// Resolve returns the window for req at instant now.
func (r *Resolver) Resolve(req Request, now time.Time) (Window, error) {
	now = now.In(r.loc)
	switch req.Period {
	case PeriodToday:
		return Window{From: StartOfDay(now, r.loc), To: now}, nil
	case PeriodYesterday:
		day := now.AddDate(0, 0, -1)
		return Window{From: StartOfDay(day, r.loc), To: EndOfDay(day, r.loc)}, nil
	case PeriodWeekly:
		return Window{From: now.AddDate(0, 0, -7), To: now}, nil
	case PeriodMonthly:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, r.loc)
		return Window{From: first, To: now}, nil
	case PeriodCustom:
		var w Window
		if req.StartDate != nil {
			w.From = req.StartDate.In(r.loc)
		}
		if req.EndDate != nil {
			w.To = req.EndDate.In(r.loc)
		}
		return w, nil
	case PeriodSpecific:
		if req.SpecificDate == nil {
			return Window{}, domain.Invalid("specificDate", "is required for the specific period")
		}
		return Window{From: StartOfDay(*req.SpecificDate, r.loc), To: EndOfDay(*req.SpecificDate, r.loc)}, nil
	default:
		return Window{From: now.AddDate(0, 0, -1), To: now}, nil
	}
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns 23:59:59.999 of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
}

// DateKey formats t as YYYY-MM-DD in loc.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

// LoadLocation loads a named zone and falls back to a fixed +05:30 offset
// when the zone database is unavailable.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}
