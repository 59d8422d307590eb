package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"signage-analytics/internal/domain"
)

type fakeStore struct {
	counters map[string]int64
	ads      []domain.Ad
	tvs      map[string]domain.TV
	updates  int
	events   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{counters: map[string]int64{}, tvs: map[string]domain.TV{}}
}

func (f *fakeStore) NextSequence(_ context.Context, name string) (int64, error) {
	f.counters[name]++
	return f.counters[name], nil
}

func (f *fakeStore) CreateAd(_ context.Context, ad domain.Ad) (domain.Ad, error) {
	f.ads = append(f.ads, ad)
	return ad, nil
}
func (f *fakeStore) GetAd(context.Context, int64) (domain.Ad, error) {
	return domain.Ad{}, domain.NotFound("ad", 0)
}

func (f *fakeStore) CreateTV(_ context.Context, tv domain.TV) (domain.TV, error) {
	if _, taken := f.tvs[tv.Code]; taken {
		return domain.TV{}, domain.Conflict("code", "device code already registered")
	}
	f.tvs[tv.Code] = tv
	return tv, nil
}
func (f *fakeStore) GetTV(context.Context, int64) (domain.TV, error) {
	return domain.TV{}, domain.NotFound("tv", 0)
}
func (f *fakeStore) GetTVByCode(_ context.Context, code string) (domain.TV, error) {
	tv, ok := f.tvs[code]
	if !ok {
		return domain.TV{}, domain.NotFound("tv", code)
	}
	return tv, nil
}
func (f *fakeStore) ListMonitoredTVs(context.Context) ([]domain.TV, error) { return nil, nil }
func (f *fakeStore) UpdateTVStatus(_ context.Context, id int64, status domain.TVStatus) error {
	f.updates++
	for code, tv := range f.tvs {
		if tv.ID == id {
			tv.Status = status
			f.tvs[code] = tv
		}
	}
	return nil
}
func (f *fakeStore) MarkSynced(context.Context, int64, int64, time.Time) error { return nil }
func (f *fakeStore) ListTVsInLocations(context.Context, domain.LocationSelector) ([]domain.TV, error) {
	return nil, nil
}

func (f *fakeStore) RecordBusinessMetric(_ context.Context, m domain.BusinessMetric) error {
	f.events = append(f.events, m.Event)
	return nil
}

func newTestService(f *fakeStore) *Service {
	return NewService(f, f, f, f, zerolog.Nop())
}

var pune = domain.Location{StoreID: 1, ZoneID: 2, CityID: 3, StateID: 4, CountryID: 5, City: "Pune", State: "Maharashtra"}

func TestRegisterAd(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)

	first, err := svc.RegisterAd(context.Background(), AdParams{Title: " Summer Sale ", AdvertiserID: 7, VideoURL: "s3://ads/summer.mp4", Duration: 30})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	second, err := svc.RegisterAd(context.Background(), AdParams{Title: "Winter", AdvertiserID: 7, VideoURL: "s3://ads/winter.mp4", Duration: 15})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("ids = %d, %d; want sequential", first.ID, second.ID)
	}
	if first.Title != "Summer Sale" || !first.IsActive || first.Categories == nil {
		t.Fatalf("unexpected ad: %+v", first)
	}
	if len(f.events) != 2 || f.events[0] != domain.BusinessMetricEventAdRegistered {
		t.Fatalf("unexpected events: %v", f.events)
	}
}

func TestRegisterAdValidation(t *testing.T) {
	tests := []struct {
		name  string
		p     AdParams
		field string
	}{
		{"title", AdParams{AdvertiserID: 1, VideoURL: "v", Duration: 1}, "title"},
		{"duration", AdParams{Title: "a", AdvertiserID: 1, VideoURL: "v"}, "duration"},
		{"advertiser", AdParams{Title: "a", VideoURL: "v", Duration: 1}, "advertiserId"},
		{"video", AdParams{Title: "a", AdvertiserID: 1, Duration: 1}, "videoUrl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeStore()
			_, err := newTestService(f).RegisterAd(context.Background(), tt.p)
			if !errors.Is(err, domain.ErrInvalidInput) || domain.FieldOf(err) != tt.field {
				t.Fatalf("err = %v, want invalid %s", err, tt.field)
			}
			if f.counters[SequenceAd] != 0 {
				t.Fatal("invalid input must not consume an id")
			}
		})
	}
}

func TestRegisterTV(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)

	tv, err := svc.RegisterTV(context.Background(), TVParams{Location: pune})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if tv.ID != 1 || tv.Code != "1" || tv.Name != "TV 1" || tv.Status != domain.TVStatusOffline || !tv.IsActive {
		t.Fatalf("unexpected defaults: %+v", tv)
	}

	named, err := svc.RegisterTV(context.Background(), TVParams{Code: "MALL-01", Name: "Mall", Location: pune, Status: "Online"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if named.ID != 2 || named.Status != domain.TVStatusOnline {
		t.Fatalf("unexpected tv: %+v", named)
	}

	_, err = svc.RegisterTV(context.Background(), TVParams{Code: "MALL-01", Location: pune})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	_, err = svc.RegisterTV(context.Background(), TVParams{Location: domain.Location{StoreID: 1}})
	if !errors.Is(err, domain.ErrInvalidInput) || domain.FieldOf(err) != "zoneId" {
		t.Fatalf("expected invalid zoneId, got %v", err)
	}
	_, err = svc.RegisterTV(context.Background(), TVParams{Location: pune, Status: "broken"})
	if !errors.Is(err, domain.ErrInvalidInput) || domain.FieldOf(err) != "status" {
		t.Fatalf("expected invalid status, got %v", err)
	}
}

func TestSetTVStatus(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f)
	if _, err := svc.RegisterTV(context.Background(), TVParams{Code: "TV-A", Location: pune}); err != nil {
		t.Fatalf("register: %v", err)
	}

	tv, err := svc.SetTVStatus(context.Background(), "TV-A", "maintenance")
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if tv.Status != domain.TVStatusMaintenance || f.tvs["TV-A"].Status != domain.TVStatusMaintenance {
		t.Fatalf("status not persisted: %+v", tv)
	}
	if _, err := svc.SetTVStatus(context.Background(), "TV-A", "maintenance"); err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if f.updates != 1 {
		t.Fatalf("unchanged status must not be written, updates = %d", f.updates)
	}
	if _, err := svc.SetTVStatus(context.Background(), "TV-Z", "online"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.SetTVStatus(context.Background(), "TV-A", "sleeping"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
