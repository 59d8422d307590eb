package playback

import (
	"fmt"
	"math"
	"time"

	"signage-analytics/internal/domain"
)

// Completion thresholds, as fractions of the nominal ad duration.
const (
	CompletedThreshold   = 0.9
	PartialThreshold     = 0.5
	BriefThreshold       = 0.1
	EngagementPercentage = 50.0
)

// CompletionReason explains how much of an ad was played.
type CompletionReason string

const (
	ReasonNotPlayed          CompletionReason = "not_played"
	ReasonPlayedFully        CompletionReason = "played_fully"
	ReasonPartiallyPlayed    CompletionReason = "partially_played"
	ReasonBrieflyPlayed      CompletionReason = "briefly_played"
	ReasonStoppedImmediately CompletionReason = "stopped_immediately"
)

// Completion statuses.
const (
	StatusCompleted   = "completed"
	StatusUncompleted = "uncompleted"
)

// PlayDuration is the observed play time of a log.
type PlayDuration struct {
	Seconds   float64   `json:"seconds"`
	Minutes   float64   `json:"minutes"`
	Formatted string    `json:"formatted"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Completion compares the device flag with the computed one.
type Completion struct {
	Original   bool             `json:"original"`
	Calculated bool             `json:"calculated"`
	Status     string           `json:"status"`
	Reason     CompletionReason `json:"reason"`
	Percentage float64          `json:"percentage"`
}

// Timing holds the detailed duration figures.
type Timing struct {
	ActualDuration       float64 `json:"actualDuration"`
	ExpectedDuration     float64 `json:"expectedDuration"`
	CompletionPercentage float64 `json:"completionPercentage"`
	IsFullyCompleted     bool    `json:"isFullyCompleted"`
	WasInterrupted       bool    `json:"wasInterrupted"`
	DurationDifference   float64 `json:"durationDifference"`
	Efficiency           float64 `json:"efficiency"`
}

// EnrichedLog is a log together with everything derived from it.
type EnrichedLog struct {
	domain.AdLog
	PlayDuration       PlayDuration   `json:"playDuration"`
	EnhancedCompletion Completion     `json:"enhancedCompletion"`
	Timing             Timing         `json:"timing"`
	RemarkAnalysis     RemarkAnalysis `json:"remarkAnalysis"`
}

// Completed reports whether the computed status is completed.
func (e EnrichedLog) Completed() bool { return e.EnhancedCompletion.Status == StatusCompleted }

// Engaged reports whether at least half of the ad was played.
func (e EnrichedLog) Engaged() bool {
	return e.EnhancedCompletion.Percentage >= EngagementPercentage
}

// NotPlayed reports whether nothing was played.
func (e EnrichedLog) NotPlayed() bool { return e.PlayDuration.Seconds == 0 }

// Enrich derives timing, completion and remark analysis for one log.
// expected is the nominal ad duration in seconds.
func Enrich(log domain.AdLog, expected float64) EnrichedLog {
	actual := ActualDuration(log.StartTime, log.EndTime)
	pct := CompletionPercentage(actual, expected)
	completed := pct >= CompletedThreshold*100

	status := StatusUncompleted
	if completed {
		status = StatusCompleted
	}
	efficiency := 0.0
	if expected > 0 {
		efficiency = Round(actual/expected, 3)
	}

	return EnrichedLog{
		AdLog: log,
		PlayDuration: PlayDuration{
			Seconds:   Round(actual, 3),
			Minutes:   Round(actual/60, 2),
			Formatted: FormatDuration(actual),
			StartTime: log.StartTime,
			EndTime:   log.EndTime,
		},
		EnhancedCompletion: Completion{
			Original:   log.Completed,
			Calculated: completed,
			Status:     status,
			Reason:     Reason(actual, expected),
			Percentage: Round(pct, 1),
		},
		Timing: Timing{
			ActualDuration:       Round(actual, 3),
			ExpectedDuration:     Round(expected, 3),
			CompletionPercentage: Round(pct, 1),
			IsFullyCompleted:     completed,
			WasInterrupted:       actual > 0 && actual < expected*CompletedThreshold,
			DurationDifference:   Round(expected-actual, 3),
			Efficiency:           efficiency,
		},
		RemarkAnalysis: AnalyzeRemark(log.Remark),
	}
}

// EnrichAll enriches logs using the duration of their populated ad.
func EnrichAll(logs []domain.AdLog) []EnrichedLog {
	out := make([]EnrichedLog, len(logs))
	for i, l := range logs {
		out[i] = Enrich(l, l.AdDuration())
	}
	return out
}

// ActualDuration returns end-start in seconds, clamped at zero.
func ActualDuration(start, end time.Time) float64 {
	ms := end.Sub(start).Milliseconds()
	return math.Max(0, float64(ms)/1000)
}

// CompletionPercentage returns the played share of the ad, capped at 100.
// Without a nominal duration any playback counts as complete.
func CompletionPercentage(actual, expected float64) float64 {
	if expected > 0 {
		return math.Min(100, actual/expected*100)
	}
	if actual > 0 {
		return 100
	}
	return 0
}

// Reason classifies playback against the descending thresholds.
func Reason(actual, expected float64) CompletionReason {
	switch {
	case actual == 0:
		return ReasonNotPlayed
	case actual >= expected*CompletedThreshold:
		return ReasonPlayedFully
	case actual >= expected*PartialThreshold:
		return ReasonPartiallyPlayed
	case actual >= expected*BriefThreshold:
		return ReasonBrieflyPlayed
	default:
		return ReasonStoppedImmediately
	}
}

// FormatDuration renders seconds as "12.5 sec" or "2 min 5 sec".
func FormatDuration(seconds float64) string {
	if seconds < 60 {
		return ToFixed(seconds, 1) + " sec"
	}
	minutes := int(math.Floor(seconds / 60))
	return fmt.Sprintf("%d min %s sec", minutes, ToFixed(math.Mod(seconds, 60), 0))
}

// MatchesCompletion applies a completion-status filter to an enriched log.
func MatchesCompletion(e EnrichedLog, status string) bool {
	switch status {
	case StatusCompleted:
		return e.Completed()
	case StatusUncompleted:
		return !e.Completed()
	case "interrupted":
		return e.Timing.WasInterrupted
	case "not_played":
		return e.NotPlayed()
	default:
		return true
	}
}
