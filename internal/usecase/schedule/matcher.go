package schedule

import (
	"sort"
	"time"

	"signage-analytics/internal/domain"
)

// ClockLayout is the literal play-time format devices are scheduled with.
const ClockLayout = "15:04"

// Match is the ad a TV should be playing right now.
type Match struct {
	Schedule  domain.AdSchedule `json:"schedule"`
	Ad        domain.Ad         `json:"ad"`
	PlayTime  string            `json:"playTime"`
	PlayTimes []string          `json:"playTimes"`
}

// Clock formats now as an "HH:MM" reading in loc.
func Clock(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(ClockLayout)
}

// Candidates returns the schedules eligible for tvID at now, highest priority first.
// Schedules with equal priority keep their input order.
func Candidates(tvID int64, schedules []domain.AdSchedule, now time.Time) []domain.AdSchedule {
	out := make([]domain.AdSchedule, 0, len(schedules))
	for _, s := range schedules {
		if !s.Covers(now) {
			continue
		}
		if _, ok := s.PlayTimesFor(tvID); !ok {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// WhatsPlaying finds the schedule whose play-time list for tvID contains clock.
// now decides validity, clock decides membership.
func WhatsPlaying(tvID int64, schedules []domain.AdSchedule, now time.Time, clock string) (Match, bool) {
	for _, s := range Candidates(tvID, schedules, now) {
		times, _ := s.PlayTimesFor(tvID)
		for _, pt := range times {
			if pt == clock {
				return Match{Schedule: s, Ad: s.Ad, PlayTime: pt, PlayTimes: times}, true
			}
		}
	}
	return Match{}, false
}
