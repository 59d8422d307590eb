package domain

import (
	"context"
	"time"
)

// PlaybackEntry is one playback report as sent by a device.
type PlaybackEntry struct {
	TVCode      string    `json:"tv_code"`
	AdID        int64     `json:"ad_id"`
	AdTitle     string    `json:"ad_title,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	PlayTimes   []string  `json:"play_times,omitempty"`
	PlayTime    string    `json:"play_time,omitempty"`
	RepeatCount int       `json:"repeat_count,omitempty"`
	Completed   bool      `json:"completed"`
	Remark      string    `json:"remark,omitempty"`
}

// PlaybackBatchJob carries a bulk submission accepted for asynchronous ingestion.
type PlaybackBatchJob struct {
	ID          string          `json:"job_id"`
	Entries     []PlaybackEntry `json:"entries"`
	RequestedAt time.Time       `json:"requested_at"`
}

// PlaybackQueue transports batch jobs from the API to the ingestor.
type PlaybackQueue interface {
	Enqueue(ctx context.Context, job PlaybackBatchJob) error
	Receive(ctx context.Context) (PlaybackBatchJob, AckFunc, error)
}

// AckFunc confirms processing (true) or asks for redelivery (false).
type AckFunc func(success bool) error
