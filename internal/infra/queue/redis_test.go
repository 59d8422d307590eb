package queue

import (
	"testing"
	"time"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		redelivery int64
		want       time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{6, 60 * time.Second},
		{40, 60 * time.Second},
	}
	for _, tt := range tests {
		if got := retryDelay(retryBaseDelay, tt.redelivery); got != tt.want {
			t.Fatalf("retryDelay(%d) = %v, want %v", tt.redelivery, got, tt.want)
		}
	}
}

func TestRedisQueueKeys(t *testing.T) {
	q := NewRedisPlaybackQueue(nil, "playback_batches")
	if q.processing != "playback_batches:processing" || q.delayed != "playback_batches:delayed" || q.retries != "playback_batches:retries" {
		t.Fatalf("unexpected keys: %+v", q)
	}
	if q.baseDelay != retryBaseDelay {
		t.Fatalf("base delay = %v", q.baseDelay)
	}
}
