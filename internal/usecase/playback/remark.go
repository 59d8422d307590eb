package playback

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RemarkType classifies the free-text remark attached to a log.
type RemarkType string

const (
	RemarkUnknown         RemarkType = "unknown"
	RemarkInformation     RemarkType = "information"
	RemarkPlayTimeSummary RemarkType = "play_time_summary"
	RemarkRepeatUpdate    RemarkType = "repeat_update"
	RemarkError           RemarkType = "error"
)

// Error types reported for error remarks.
const (
	ErrorTypeMediaDecoder = "media_decoder_error"
	ErrorTypePlayback     = "playback_error"
)

// RemarkDetails holds the values extracted from a remark.
type RemarkDetails struct {
	TVNumber       *int   `json:"tvNumber,omitempty"`
	TotalPlays     *int   `json:"totalPlays,omitempty"`
	Context        string `json:"context,omitempty"`
	IsRepeatUpdate bool   `json:"isRepeatUpdate,omitempty"`
	HasError       bool   `json:"hasError,omitempty"`
	ErrorType      string `json:"errorType,omitempty"`
	Severity       string `json:"severity,omitempty"`
}

// RemarkAnalysis is the classification of one remark.
type RemarkAnalysis struct {
	Type    RemarkType     `json:"type"`
	Summary string         `json:"summary"`
	Details *RemarkDetails `json:"details,omitempty"`
}

var (
	playTotalsPattern = regexp.MustCompile(`Today total plays on TV (\d+): (\d+)`)
	tvPlaysPattern    = regexp.MustCompile(`TV (\d+): (\d+)`)
)

type remarkRule struct {
	match    func(remark string) bool
	classify func(remark string) RemarkAnalysis
}

// remarkRules are evaluated in order; the first match wins.
var remarkRules = []remarkRule{
	{
		match: playTotalsPattern.MatchString,
		classify: func(remark string) RemarkAnalysis {
			m := playTotalsPattern.FindStringSubmatch(remark)
			return RemarkAnalysis{
				Type:    RemarkPlayTimeSummary,
				Summary: fmt.Sprintf("TV %s played %s times today", m[1], m[2]),
				Details: &RemarkDetails{
					TVNumber:   atoiPtr(m[1]),
					TotalPlays: atoiPtr(m[2]),
					Context:    "repeat_count_for_this_play_time",
				},
			}
		},
	},
	{
		match: func(remark string) bool { return strings.Contains(remark, "Repeat updated") },
		classify: func(remark string) RemarkAnalysis {
			out := RemarkAnalysis{
				Type:    RemarkRepeatUpdate,
				Summary: remark,
				Details: &RemarkDetails{IsRepeatUpdate: true},
			}
			if m := tvPlaysPattern.FindStringSubmatch(remark); m != nil {
				out.Details.TVNumber = atoiPtr(m[1])
				out.Details.TotalPlays = atoiPtr(m[2])
				out.Summary = fmt.Sprintf("Repeat updated - TV %s total plays: %s", m[1], m[2])
			}
			return out
		},
	},
	{
		match: func(remark string) bool {
			return strings.Contains(remark, "Playback failed") ||
				strings.Contains(remark, "error") ||
				strings.Contains(remark, "MediaCodec")
		},
		classify: func(remark string) RemarkAnalysis {
			errType := ErrorTypePlayback
			if strings.Contains(remark, "MediaCodec") {
				errType = ErrorTypeMediaDecoder
			}
			return RemarkAnalysis{
				Type:    RemarkError,
				Summary: "Playback error occurred",
				Details: &RemarkDetails{HasError: true, ErrorType: errType, Severity: "high"},
			}
		},
	},
}

// AnalyzeRemark classifies a device remark.
func AnalyzeRemark(remark string) RemarkAnalysis {
	if remark == "" {
		return RemarkAnalysis{Type: RemarkUnknown, Summary: "No remark provided"}
	}
	for _, rule := range remarkRules {
		if rule.match(remark) {
			return rule.classify(remark)
		}
	}
	return RemarkAnalysis{Type: RemarkInformation, Summary: remark, Details: &RemarkDetails{}}
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
