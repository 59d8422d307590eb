package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"signage-analytics/internal/domain"
)

type memCache struct {
	data   map[string][]byte
	getErr error
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Once(string, time.Duration, func() error) error { return nil }
func (c *memCache) Set(key string, value []byte, _ time.Duration) error {
	c.data[key] = value
	return nil
}
func (c *memCache) Get(key string) ([]byte, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.data[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return v, nil
}

func TestSnapshotsRoundTrip(t *testing.T) {
	sn := NewSnapshots(newMemCache(), "live", time.Minute)
	if _, err := sn.Load(); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	now := day(11, 18, 0)
	if err := sn.Save(Monitor{CurrentTime: "18:00", CheckedAt: now, Summary: MonitorSummary{Total: 4, Playing: 3, Idle: 1}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := sn.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Summary.Playing != 3 || !got.CheckedAt.Equal(now) {
		t.Fatalf("unexpected monitor: %+v", got)
	}
}

func TestCurrentMonitor(t *testing.T) {
	now := day(11, 18, 0).Add(40 * time.Second)
	stored := Monitor{CurrentTime: "18:00", CheckedAt: day(11, 18, 0).Add(5 * time.Second), Summary: MonitorSummary{Total: 42}}

	tests := []struct {
		name      string
		snapshot  *Monitor
		getErr    error
		noStore   bool
		wantTotal int
	}{
		{name: "hit in same minute", snapshot: &stored, wantTotal: 42},
		{name: "miss evaluates", wantTotal: 2},
		{
			name:      "stale view evaluates",
			snapshot:  &Monitor{CurrentTime: "17:58", CheckedAt: day(11, 17, 58), Summary: MonitorSummary{Total: 42}},
			wantTotal: 2,
		},
		{name: "cache failure evaluates", snapshot: &stored, getErr: errors.New("redis: connection refused"), wantTotal: 2},
		{name: "without store evaluates", snapshot: &stored, noStore: true, wantTotal: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newStub()
			c := newMemCache()
			sn := NewSnapshots(c, "live", time.Minute)
			if tt.snapshot != nil {
				if err := sn.Save(*tt.snapshot); err != nil {
					t.Fatalf("save: %v", err)
				}
			}
			c.getErr = tt.getErr
			svc := NewService(repo, repo, repo, nil, ist)
			if !tt.noStore {
				svc = svc.WithSnapshots(sn)
			}

			got, err := svc.CurrentMonitor(context.Background(), now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Summary.Total != tt.wantTotal {
				t.Fatalf("total = %d, want %d", got.Summary.Total, tt.wantTotal)
			}
		})
	}
}
