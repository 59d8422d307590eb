package window

import (
	"errors"
	"testing"
	"time"

	"signage-analytics/internal/domain"
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

func at(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, ist)
}

func ptr(t time.Time) *time.Time { return &t }

func TestResolve(t *testing.T) {
	r := NewResolver(ist)
	now := at(2025, time.March, 15, 14, 30, 0)
	endOfDay := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), ist)
	}

	tests := []struct {
		name     string
		req      Request
		wantFrom time.Time
		wantTo   time.Time
	}{
		{name: "today", req: Request{Period: PeriodToday}, wantFrom: at(2025, time.March, 15, 0, 0, 0), wantTo: now},
		{name: "yesterday", req: Request{Period: PeriodYesterday}, wantFrom: at(2025, time.March, 14, 0, 0, 0), wantTo: endOfDay(2025, time.March, 14)},
		{name: "weekly", req: Request{Period: PeriodWeekly}, wantFrom: at(2025, time.March, 8, 14, 30, 0), wantTo: now},
		{name: "monthly", req: Request{Period: PeriodMonthly}, wantFrom: at(2025, time.March, 1, 0, 0, 0), wantTo: now},
		{name: "daily", req: Request{Period: PeriodDaily}, wantFrom: at(2025, time.March, 14, 14, 30, 0), wantTo: now},
		{name: "unknown falls back to rolling day", req: Request{Period: "fortnight"}, wantFrom: at(2025, time.March, 14, 14, 30, 0), wantTo: now},
		{
			name:     "specific",
			req:      Request{Period: PeriodSpecific, SpecificDate: ptr(at(2025, time.February, 2, 17, 0, 0))},
			wantFrom: at(2025, time.February, 2, 0, 0, 0),
			wantTo:   endOfDay(2025, time.February, 2),
		},
		{
			name:     "custom with both bounds",
			req:      Request{Period: PeriodCustom, StartDate: ptr(at(2025, time.January, 1, 0, 0, 0)), EndDate: ptr(at(2025, time.January, 31, 0, 0, 0))},
			wantFrom: at(2025, time.January, 1, 0, 0, 0),
			wantTo:   at(2025, time.January, 31, 0, 0, 0),
		},
		{name: "custom unbounded", req: Request{Period: PeriodCustom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.req, now)
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			if !got.From.Equal(tt.wantFrom) {
				t.Fatalf("From = %v, want %v", got.From, tt.wantFrom)
			}
			if !got.To.Equal(tt.wantTo) {
				t.Fatalf("To = %v, want %v", got.To, tt.wantTo)
			}
		})
	}
}

func TestResolveUsesOperatingZoneForDayBoundaries(t *testing.T) {
	r := NewResolver(ist)
	// 20:00 UTC is already 01:30 of the next day in IST.
	now := time.Date(2025, time.March, 15, 20, 0, 0, 0, time.UTC)
	got, err := r.Resolve(Request{Period: PeriodToday}, now)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	want := at(2025, time.March, 16, 0, 0, 0)
	if !got.From.Equal(want) {
		t.Fatalf("From = %v, want %v", got.From, want)
	}
}

func TestResolveSpecificRequiresDate(t *testing.T) {
	_, err := NewResolver(ist).Resolve(Request{Period: PeriodSpecific}, time.Now())
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestWindowContains(t *testing.T) {
	w := Window{From: at(2025, time.March, 1, 0, 0, 0), To: at(2025, time.March, 2, 0, 0, 0)}
	if !w.Contains(w.From) || !w.Contains(w.To) {
		t.Fatalf("window bounds must be inclusive")
	}
	if w.Contains(w.To.Add(time.Millisecond)) {
		t.Fatalf("instant after To must be outside")
	}
	if !(Window{}).Contains(time.Now()) {
		t.Fatalf("unbounded window must contain everything")
	}
}
