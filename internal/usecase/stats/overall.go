// Package stats folds enriched playback logs into summary statistics.
//
// Every breakdown is an accumulator: feed logs one at a time with Add and read
// the figures with Result, so callers can stream logs from storage instead of
// materialising the whole window.
package stats

import (
	"signage-analytics/internal/usecase/playback"
)

// Accumulator consumes enriched logs one at a time.
type Accumulator interface {
	Add(e playback.EnrichedLog)
}

// CompletionBreakdown counts logs per completion class.
type CompletionBreakdown struct {
	FullyPlayed int `json:"fully_played"`
	Interrupted int `json:"interrupted"`
	NotPlayed   int `json:"not_played"`
}

// RemarkCounts counts classified remarks.
type RemarkCounts struct {
	DailySummaries int `json:"daily_summaries"`
	RepeatUpdates  int `json:"repeat_updates"`
	Errors         int `json:"errors"`
}

// OverallStats are the headline numbers of a log set.
type OverallStats struct {
	TotalLogs             int                 `json:"totalLogs"`
	CompletedLogs         int                 `json:"completedLogs"`
	UncompletedLogs       int                 `json:"uncompletedLogs"`
	TotalExpectedDuration float64             `json:"totalExpectedDuration"`
	TotalActualDuration   float64             `json:"totalActualDuration"`
	CompletionBreakdown   CompletionBreakdown `json:"completionBreakdown"`
	AverageCompletionRate float64             `json:"averageCompletionRate"`
	RemarkAnalysis        RemarkCounts        `json:"remarkAnalysis"`
	CompletionRate        float64             `json:"completionRate"`
	EfficiencyRate        float64             `json:"efficiencyRate"`
	AveragePlayDuration   float64             `json:"averagePlayDuration"`
}

// PlayTime is a duration expressed in several units.
type PlayTime struct {
	Seconds float64 `json:"seconds"`
	Minutes float64 `json:"minutes,omitempty"`
	Hours   float64 `json:"hours"`
}

// Performance holds success and interruption rates in percent.
type Performance struct {
	SuccessRate      float64 `json:"successRate"`
	InterruptionRate float64 `json:"interruptionRate"`
}

// Analytics is the play-time summary of a non-empty log set.
type Analytics struct {
	TotalPlayTime   PlayTime `json:"totalPlayTime"`
	AveragePlayTime struct {
		Seconds float64 `json:"seconds"`
	} `json:"averagePlayTime"`
	Performance Performance `json:"performance"`
}

// Overall accumulates the headline numbers, reach and engagement.
type Overall struct {
	total       int
	completed   int
	fully       int
	interrupted int
	notPlayed   int
	engaged     int

	expected      float64
	actual        float64
	percentSum    float64
	efficiencySum float64

	remarks RemarkCounts
	tvs     map[int64]struct{}
}

// NewOverall creates an empty accumulator.
func NewOverall() *Overall {
	return &Overall{tvs: make(map[int64]struct{})}
}

// Add folds one log.
func (o *Overall) Add(e playback.EnrichedLog) {
	o.total++
	if e.Completed() {
		o.completed++
	}
	if e.Timing.IsFullyCompleted {
		o.fully++
	}
	if e.Timing.WasInterrupted {
		o.interrupted++
	}
	if e.NotPlayed() {
		o.notPlayed++
	}
	if e.Engaged() {
		o.engaged++
	}
	o.expected += e.AdDuration()
	o.actual += e.PlayDuration.Seconds
	o.percentSum += e.EnhancedCompletion.Percentage
	o.efficiencySum += e.Timing.Efficiency

	switch e.RemarkAnalysis.Type {
	case playback.RemarkPlayTimeSummary:
		o.remarks.DailySummaries++
	case playback.RemarkRepeatUpdate:
		o.remarks.RepeatUpdates++
	case playback.RemarkError:
		o.remarks.Errors++
	}
	if e.TVID != 0 {
		o.tvs[e.TVID] = struct{}{}
	}
}

// Count returns the number of folded logs.
func (o *Overall) Count() int { return o.total }

// CompletedCount returns the number of logs with computed status completed.
func (o *Overall) CompletedCount() int { return o.completed }

// TotalSeconds returns the summed play duration.
func (o *Overall) TotalSeconds() float64 { return o.actual }

// Stats returns the headline numbers.
func (o *Overall) Stats() OverallStats {
	out := OverallStats{
		TotalLogs:             o.total,
		CompletedLogs:         o.completed,
		UncompletedLogs:       o.total - o.completed,
		TotalExpectedDuration: o.expected,
		TotalActualDuration:   o.actual,
		CompletionBreakdown: CompletionBreakdown{
			FullyPlayed: o.fully,
			Interrupted: o.interrupted,
			NotPlayed:   o.notPlayed,
		},
		RemarkAnalysis: o.remarks,
		CompletionRate: percent(o.completed, o.total),
	}
	if o.total > 0 {
		out.AverageCompletionRate = o.percentSum / float64(o.total)
		out.AveragePlayDuration = playback.Round(o.actual/float64(o.total), 2)
	}
	if o.expected > 0 {
		out.EfficiencyRate = playback.Round(o.actual/o.expected*100, 2)
	}
	return out
}

// Analytics returns the play-time summary, or nil for an empty set.
func (o *Overall) Analytics() *Analytics {
	if o.total == 0 {
		return nil
	}
	out := &Analytics{
		TotalPlayTime: PlayTime{
			Seconds: playback.Round(o.actual, 2),
			Minutes: playback.Round(o.actual/60, 2),
			Hours:   playback.Round(o.actual/3600, 2),
		},
		Performance: o.Performance(),
	}
	out.AveragePlayTime.Seconds = playback.Round(o.actual/float64(o.total), 2)
	return out
}

// Performance returns success and interruption rates.
func (o *Overall) Performance() Performance {
	return Performance{
		SuccessRate:      percent(o.completed, o.total),
		InterruptionRate: percent(o.interrupted, o.total),
	}
}

// Reach returns the number of distinct TVs.
func (o *Overall) Reach() int { return len(o.tvs) }

// EngagementRate returns the share of logs that reached half of the ad, in percent.
func (o *Overall) EngagementRate() float64 { return percent(o.engaged, o.total) }

// MeanEfficiency returns the mean per-log efficiency.
func (o *Overall) MeanEfficiency() float64 {
	if o.total == 0 {
		return 0
	}
	return playback.Round(o.efficiencySum/float64(o.total), 3)
}

// MeanCompletionPercentage returns the mean completion percentage.
func (o *Overall) MeanCompletionPercentage() float64 {
	if o.total == 0 {
		return 0
	}
	return playback.Round(o.percentSum/float64(o.total), 2)
}

// percent returns part/whole in percent at two decimals, zero for an empty whole.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return playback.Round(float64(part)/float64(whole)*100, 2)
}

// ratio returns part/whole in percent without rounding.
func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
