package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"signage-analytics/internal/domain"
)

// Snapshots keeps the latest live monitor view under one cache key.
type Snapshots struct {
	cache domain.Cache
	key   string
	ttl   time.Duration
}

// NewSnapshots creates the store.
func NewSnapshots(cache domain.Cache, key string, ttl time.Duration) *Snapshots {
	return &Snapshots{cache: cache, key: key, ttl: ttl}
}

// Save stores m, replacing the previous view.
func (s *Snapshots) Save(m Monitor) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal monitor: %w", err)
	}
	return s.cache.Set(s.key, data, s.ttl)
}

// Load returns the stored view or domain.ErrCacheMiss.
func (s *Snapshots) Load() (Monitor, error) {
	data, err := s.cache.Get(s.key)
	if err != nil {
		return Monitor{}, err
	}
	var m Monitor
	if err := json.Unmarshal(data, &m); err != nil {
		return Monitor{}, fmt.Errorf("decode monitor: %w", err)
	}
	return m, nil
}

// WithSnapshots makes CurrentMonitor serve views stored in sn.
func (s *Service) WithSnapshots(sn *Snapshots) *Service {
	s.snapshots = sn
	return s
}

// CurrentMonitor returns the stored live view when it was taken in the same
// minute as now. A miss, a stale view or a cache failure evaluates the
// schedules instead.
func (s *Service) CurrentMonitor(ctx context.Context, now time.Time) (Monitor, error) {
	if s.snapshots != nil {
		if m, err := s.snapshots.Load(); err == nil && s.sameMinute(m, now) {
			return m, nil
		}
	}
	return s.LiveMonitor(ctx, now)
}

func (s *Service) sameMinute(m Monitor, now time.Time) bool {
	age := now.Sub(m.CheckedAt)
	return m.CurrentTime == Clock(now, s.loc) && age >= 0 && age < time.Minute
}
