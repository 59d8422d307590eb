package schedule

import (
	"context"
	"errors"
	"fmt"

	"signage-analytics/internal/domain"
)

// Toggle flips the active flag of a schedule. Activation is refused when the
// ad already has another active schedule in the same validity period.
func (s *Service) Toggle(ctx context.Context, id int64) (domain.AdSchedule, error) {
	sc, err := s.schedules.GetSchedule(ctx, id)
	if err != nil {
		return domain.AdSchedule{}, fmt.Errorf("lookup schedule: %w", err)
	}
	next := !sc.IsActive
	if next {
		overlap, err := s.schedules.HasActiveOverlap(ctx, sc.AdID, sc.ValidFrom, sc.ValidTo)
		if err != nil {
			return domain.AdSchedule{}, fmt.Errorf("check overlap: %w", err)
		}
		if overlap {
			return domain.AdSchedule{}, domain.Conflict("ad", fmt.Sprintf("ad %d already has an active schedule in this period", sc.AdID))
		}
	}
	if err := s.schedules.SetScheduleActive(ctx, id, next); err != nil {
		return domain.AdSchedule{}, fmt.Errorf("set schedule active: %w", err)
	}
	sc.IsActive = next
	return sc, nil
}

// ForAd lists every schedule of an ad, latest validity first.
func (s *Service) ForAd(ctx context.Context, adID int64) ([]domain.AdSchedule, error) {
	if _, err := s.ads.GetAd(ctx, adID); err != nil {
		return nil, fmt.Errorf("lookup ad: %w", err)
	}
	schedules, err := s.schedules.ListSchedulesForAd(ctx, adID)
	if err != nil {
		return nil, fmt.Errorf("list schedules for ad: %w", err)
	}
	if schedules == nil {
		schedules = []domain.AdSchedule{}
	}
	return schedules, nil
}

// BulkFailure is one rejected item of a bulk create.
type BulkFailure struct {
	Index int    `json:"index"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
	Error string `json:"error"`
}

// BulkCreateResult reports a bulk create item by item.
type BulkCreateResult struct {
	Created []domain.AdSchedule `json:"created"`
	Failed  []BulkFailure       `json:"failed"`
}

// CreateBulk creates each schedule independently; one failure does not stop
// the rest. Unexpected errors abort the batch.
func (s *Service) CreateBulk(ctx context.Context, items []CreateParams) (BulkCreateResult, error) {
	res := BulkCreateResult{Created: []domain.AdSchedule{}, Failed: []BulkFailure{}}
	for i, p := range items {
		sc, err := s.Create(ctx, p)
		if err == nil {
			res.Created = append(res.Created, sc)
			continue
		}
		code, ok := failureCode(err)
		if !ok {
			return res, fmt.Errorf("schedule %d: %w", i, err)
		}
		res.Failed = append(res.Failed, BulkFailure{Index: i, Code: code, Field: domain.FieldOf(err), Error: publicMessage(err)})
	}
	return res, nil
}

func failureCode(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input", true
	case errors.Is(err, domain.ErrNotFound):
		return "not_found", true
	case errors.Is(err, domain.ErrConflict):
		return "conflict", true
	}
	return "", false
}

func publicMessage(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Error()
	}
	return err.Error()
}

// LocationParams describes a schedule fanned out to every active TV in a set
// of locations. All TVs share the same play-times.
type LocationParams struct {
	CreateParams
	Locations domain.LocationSelector
	PlayTimes []string
}

// LocationSchedule is the schedule created for a location selection.
type LocationSchedule struct {
	Schedule  domain.AdSchedule       `json:"schedule"`
	TVCount   int                     `json:"tvCount"`
	Locations domain.LocationSelector `json:"locations"`
}

// LocationPreview lists the TVs a location selection resolves to.
type LocationPreview struct {
	TVCount   int                     `json:"tvCount"`
	TVs       []domain.TV             `json:"tvs"`
	Locations domain.LocationSelector `json:"locations"`
}

// TVsInLocations previews the active TVs in the selected locations.
func (s *Service) TVsInLocations(ctx context.Context, sel domain.LocationSelector) (LocationPreview, error) {
	tvs, err := s.resolveLocations(ctx, sel)
	if err != nil {
		return LocationPreview{}, err
	}
	if tvs == nil {
		tvs = []domain.TV{}
	}
	return LocationPreview{TVCount: len(tvs), TVs: tvs, Locations: sel}, nil
}

func (s *Service) resolveLocations(ctx context.Context, sel domain.LocationSelector) ([]domain.TV, error) {
	if sel.Empty() {
		return nil, domain.Invalid("locations", "at least one store, zone, city, state or country is required")
	}
	tvs, err := s.tvs.ListTVsInLocations(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("list tvs in locations: %w", err)
	}
	return tvs, nil
}

// CreateForLocations resolves the selected locations to TVs and creates one
// schedule covering all of them.
func (s *Service) CreateForLocations(ctx context.Context, p LocationParams) (LocationSchedule, error) {
	tvs, err := s.resolveLocations(ctx, p.Locations)
	if err != nil {
		return LocationSchedule{}, err
	}
	if len(tvs) == 0 {
		return LocationSchedule{}, &domain.Error{Kind: domain.ErrNotFound, Field: "tvs", Msg: "no active TV in the selected locations"}
	}
	params := p.CreateParams
	params.TVs = make([]domain.ScheduleTV, 0, len(tvs))
	for _, tv := range tvs {
		params.TVs = append(params.TVs, domain.ScheduleTV{TVID: tv.ID, PlayTimes: p.PlayTimes})
	}
	sc, err := s.Create(ctx, params)
	if err != nil {
		return LocationSchedule{}, err
	}
	return LocationSchedule{Schedule: sc, TVCount: len(tvs), Locations: p.Locations}, nil
}
