package playback

import "testing"

func TestAnalyzeRemark(t *testing.T) {
	tests := []struct {
		name      string
		remark    string
		wantType  RemarkType
		summary   string
		tvNumber  int
		plays     int
		errorType string
	}{
		{name: "empty", remark: "", wantType: RemarkUnknown, summary: "No remark provided"},
		{name: "daily totals", remark: "Today total plays on TV 4: 12", wantType: RemarkPlayTimeSummary, summary: "TV 4 played 12 times today", tvNumber: 4, plays: 12},
		{name: "daily totals inside text", remark: "sync ok. Today total plays on TV 17: 3 (09:00)", wantType: RemarkPlayTimeSummary, summary: "TV 17 played 3 times today", tvNumber: 17, plays: 3},
		{name: "repeat with counts", remark: "Repeat updated, TV 2: 8", wantType: RemarkRepeatUpdate, summary: "Repeat updated - TV 2 total plays: 8", tvNumber: 2, plays: 8},
		{name: "repeat without counts", remark: "Repeat updated", wantType: RemarkRepeatUpdate, summary: "Repeat updated"},
		{name: "decoder", remark: "MediaCodec init failed", wantType: RemarkError, summary: "Playback error occurred", errorType: ErrorTypeMediaDecoder},
		{name: "playback failed", remark: "Playback failed: file missing", wantType: RemarkError, summary: "Playback error occurred", errorType: ErrorTypePlayback},
		{name: "lowercase error", remark: "network error while streaming", wantType: RemarkError, summary: "Playback error occurred", errorType: ErrorTypePlayback},
		{name: "capitalised Error is information", remark: "Error budget fine", wantType: RemarkInformation, summary: "Error budget fine"},
		{name: "information", remark: "played from cache", wantType: RemarkInformation, summary: "played from cache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeRemark(tt.remark)
			if got.Type != tt.wantType {
				t.Fatalf("type = %s, want %s", got.Type, tt.wantType)
			}
			if got.Summary != tt.summary {
				t.Fatalf("summary = %q, want %q", got.Summary, tt.summary)
			}
			if tt.tvNumber != 0 {
				if got.Details == nil || got.Details.TVNumber == nil || *got.Details.TVNumber != tt.tvNumber {
					t.Fatalf("tvNumber mismatch: %+v", got.Details)
				}
				if got.Details.TotalPlays == nil || *got.Details.TotalPlays != tt.plays {
					t.Fatalf("totalPlays mismatch: %+v", got.Details)
				}
			}
			if tt.errorType != "" {
				if got.Details == nil || got.Details.ErrorType != tt.errorType || got.Details.Severity != "high" {
					t.Fatalf("error details mismatch: %+v", got.Details)
				}
			}
		})
	}
}

func TestRemarkRulesOrder(t *testing.T) {
	// A daily total that also mentions an error is still a summary.
	got := AnalyzeRemark("Today total plays on TV 1: 2 after error")
	if got.Type != RemarkPlayTimeSummary {
		t.Fatalf("type = %s, want %s", got.Type, RemarkPlayTimeSummary)
	}
	got = AnalyzeRemark("Repeat updated after MediaCodec error")
	if got.Type != RemarkRepeatUpdate {
		t.Fatalf("type = %s, want %s", got.Type, RemarkRepeatUpdate)
	}
}
