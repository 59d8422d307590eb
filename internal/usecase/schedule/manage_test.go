package schedule

import (
	"context"
	"errors"
	"testing"

	"signage-analytics/internal/domain"
)

func TestToggle(t *testing.T) {
	t.Run("deactivates without overlap check", func(t *testing.T) {
		repo := newStub()
		repo.overlap = true
		got, err := NewService(repo, repo, repo, nil, ist).Toggle(context.Background(), 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.IsActive || repo.activeSet[1] {
			t.Fatalf("expected schedule off, got %+v stored %v", got, repo.activeSet)
		}
	})

	t.Run("activates when period is free", func(t *testing.T) {
		repo := newStub()
		repo.schedules[0].IsActive = false
		got, err := NewService(repo, repo, repo, nil, ist).Toggle(context.Background(), 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.IsActive || !repo.activeSet[1] {
			t.Fatalf("expected schedule on, got %+v stored %v", got, repo.activeSet)
		}
	})

	t.Run("refuses second active schedule", func(t *testing.T) {
		repo := newStub()
		repo.schedules[0].IsActive = false
		repo.overlap = true
		_, err := NewService(repo, repo, repo, nil, ist).Toggle(context.Background(), 1)
		if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		if _, set := repo.activeSet[1]; set {
			t.Fatal("schedule must stay untouched")
		}
	})

	t.Run("unknown schedule", func(t *testing.T) {
		repo := newStub()
		_, err := NewService(repo, repo, repo, nil, ist).Toggle(context.Background(), 99)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestToggledScheduleStopsMatching(t *testing.T) {
	repo := newStub()
	svc := NewService(repo, repo, repo, nil, ist)
	now := day(11, 9, 0)

	off, err := svc.Toggle(context.Background(), 1)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, ok := WhatsPlaying(7, []domain.AdSchedule{off}, now, Clock(now, ist)); ok {
		t.Fatal("inactive schedule must not match")
	}
}

func TestForAd(t *testing.T) {
	repo := newStub()
	repo.ads[101] = domain.Ad{ID: 101, Title: "Festive", Duration: 15}
	svc := NewService(repo, repo, repo, nil, ist)

	got, err := svc.ForAd(context.Background(), 100)
	if err != nil || len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("ForAd(100) = %+v, %v", got, err)
	}

	got, err = svc.ForAd(context.Background(), 101)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("ad without schedules must give an empty list, got %#v, %v", got, err)
	}

	if _, err := svc.ForAd(context.Background(), 404); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateBulk(t *testing.T) {
	valid := CreateParams{
		AdID:      100,
		TVs:       []domain.ScheduleTV{{TVID: 7, PlayTimes: []string{"09:00"}}},
		ValidFrom: day(1, 0, 0),
		ValidTo:   day(30, 0, 0),
	}
	unknownAd := valid
	unknownAd.AdID = 404
	badTime := valid
	badTime.TVs = []domain.ScheduleTV{{TVID: 7, PlayTimes: []string{"25:00"}}}

	repo := newStub()
	res, err := NewService(repo, repo, repo, nil, ist).CreateBulk(context.Background(), []CreateParams{valid, unknownAd, badTime})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Created) != 1 || res.Created[0].AdID != 100 {
		t.Fatalf("unexpected created: %+v", res.Created)
	}
	if len(res.Failed) != 2 {
		t.Fatalf("unexpected failures: %+v", res.Failed)
	}
	if f := res.Failed[0]; f.Index != 1 || f.Code != "not_found" || f.Field != "ad" {
		t.Fatalf("unexpected first failure: %+v", f)
	}
	if f := res.Failed[1]; f.Index != 2 || f.Code != "invalid_input" || f.Field != "playTimes" {
		t.Fatalf("unexpected second failure: %+v", f)
	}

	broken := newStub()
	broken.createErr = domain.Internal("postgres: create schedule", errors.New("connection reset"))
	if _, err := NewService(broken, broken, broken, nil, ist).CreateBulk(context.Background(), []CreateParams{valid}); !errors.Is(err, domain.ErrInternal) {
		t.Fatalf("store failures must abort the batch, got %v", err)
	}
}

func TestCreateForLocations(t *testing.T) {
	newRepo := func() *stubRepo {
		repo := newStub()
		repo.tvs[0].Location = domain.Location{CityID: 4, StateID: 1}
		repo.tvs[1].Location = domain.Location{CityID: 5, StateID: 2}
		repo.tvs[2].Location = domain.Location{CityID: 4, StateID: 1}
		repo.tvs[2].IsActive = false
		return repo
	}
	base := LocationParams{
		CreateParams: CreateParams{AdID: 100, ValidFrom: day(1, 0, 0), ValidTo: day(30, 0, 0), Priority: 2},
		PlayTimes:    []string{"18:00", "09:00"},
	}

	t.Run("fans out to every active TV", func(t *testing.T) {
		repo := newRepo()
		p := base
		p.Locations = domain.LocationSelector{Cities: []int64{4}, States: []int64{2}}
		got, err := NewService(repo, repo, repo, nil, ist).CreateForLocations(context.Background(), p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.TVCount != 2 || len(got.Schedule.TVs) != 2 || got.Schedule.Priority != 2 {
			t.Fatalf("unexpected schedule: %+v", got)
		}
		for _, entry := range got.Schedule.TVs {
			if entry.TVID == 9 {
				t.Fatal("inactive TV must not be scheduled")
			}
			if len(entry.PlayTimes) != 2 || entry.PlayTimes[0] != "18:00" {
				t.Fatalf("unexpected play-times: %v", entry.PlayTimes)
			}
		}
		if len(repo.created) != 1 {
			t.Fatalf("expected one stored schedule, got %d", len(repo.created))
		}
	})

	t.Run("needs a location", func(t *testing.T) {
		repo := newRepo()
		_, err := NewService(repo, repo, repo, nil, ist).CreateForLocations(context.Background(), base)
		if !errors.Is(err, domain.ErrInvalidInput) || domain.FieldOf(err) != "locations" {
			t.Fatalf("expected invalid locations, got %v", err)
		}
	})

	t.Run("no TV in locations", func(t *testing.T) {
		repo := newRepo()
		p := base
		p.Locations = domain.LocationSelector{Countries: []int64{99}}
		_, err := NewService(repo, repo, repo, nil, ist).CreateForLocations(context.Background(), p)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("goes through the overlap check", func(t *testing.T) {
		repo := newRepo()
		repo.overlap = true
		p := base
		p.Locations = domain.LocationSelector{Cities: []int64{4}}
		_, err := NewService(repo, repo, repo, nil, ist).CreateForLocations(context.Background(), p)
		if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}

func TestTVsInLocations(t *testing.T) {
	repo := newStub()
	repo.tvs[0].Location = domain.Location{StoreID: 11}
	repo.tvs[1].Location = domain.Location{StoreID: 12}
	svc := NewService(repo, repo, repo, nil, ist)

	got, err := svc.TVsInLocations(context.Background(), domain.LocationSelector{Stores: []int64{12, 13}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TVCount != 1 || got.TVs[0].ID != 8 {
		t.Fatalf("unexpected preview: %+v", got)
	}

	got, err = svc.TVsInLocations(context.Background(), domain.LocationSelector{Zones: []int64{99}})
	if err != nil || got.TVCount != 0 || got.TVs == nil {
		t.Fatalf("empty preview = %#v, %v", got, err)
	}

	if _, err := svc.TVsInLocations(context.Background(), domain.LocationSelector{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
