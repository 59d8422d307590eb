// Package catalog registers the ads and TVs the rest of the system refers to.
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"signage-analytics/internal/domain"
)

// Counter names.
const (
	SequenceAd = "adId"
	SequenceTV = "tvId"
)

// Service manages ads and TVs.
type Service struct {
	ads     domain.AdRepo
	tvs     domain.TVRepo
	seq     domain.SequenceRepo
	metrics domain.BusinessMetricRepo
	log     zerolog.Logger
	now     func() time.Time
}

// NewService creates the catalog service. businessMetrics may be nil.
func NewService(ads domain.AdRepo, tvs domain.TVRepo, seq domain.SequenceRepo, businessMetrics domain.BusinessMetricRepo, logger zerolog.Logger) *Service {
	return &Service{ads: ads, tvs: tvs, seq: seq, metrics: businessMetrics, log: logger, now: time.Now}
}

// AdParams describe a new ad.
type AdParams struct {
	Title        string
	Categories   []string
	AdvertiserID int64
	VideoURL     string
	Duration     float64
	IsActive     *bool
}

// RegisterAd validates and stores an ad under the next sequential id.
func (s *Service) RegisterAd(ctx context.Context, p AdParams) (domain.Ad, error) {
	title := strings.TrimSpace(p.Title)
	switch {
	case title == "":
		return domain.Ad{}, domain.Invalid("title", "is required")
	case p.Duration <= 0:
		return domain.Ad{}, domain.Invalid("duration", "must be positive")
	case p.AdvertiserID <= 0:
		return domain.Ad{}, domain.Invalid("advertiserId", "is required")
	case strings.TrimSpace(p.VideoURL) == "":
		return domain.Ad{}, domain.Invalid("videoUrl", "is required")
	}

	id, err := s.seq.NextSequence(ctx, SequenceAd)
	if err != nil {
		return domain.Ad{}, fmt.Errorf("next ad id: %w", err)
	}
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	categories := p.Categories
	if categories == nil {
		categories = []string{}
	}
	ad, err := s.ads.CreateAd(ctx, domain.Ad{
		ID:           id,
		Title:        title,
		Categories:   categories,
		AdvertiserID: p.AdvertiserID,
		VideoURL:     strings.TrimSpace(p.VideoURL),
		Duration:     p.Duration,
		IsActive:     active,
	})
	if err != nil {
		return domain.Ad{}, fmt.Errorf("create ad: %w", err)
	}
	s.record(ctx, domain.BusinessMetric{Event: domain.BusinessMetricEventAdRegistered, AdID: &ad.ID})
	return ad, nil
}

// TVParams describe a new TV. An empty Code defaults to the sequential number.
type TVParams struct {
	Code     string
	Name     string
	Location domain.Location
	Status   string
	IsActive *bool
}

// RegisterTV validates and stores a TV under the next sequential id.
// A device code that is already taken is a conflict.
func (s *Service) RegisterTV(ctx context.Context, p TVParams) (domain.TV, error) {
	loc := p.Location
	switch {
	case loc.StoreID <= 0:
		return domain.TV{}, domain.Invalid("storeId", "is required")
	case loc.ZoneID <= 0:
		return domain.TV{}, domain.Invalid("zoneId", "is required")
	case loc.CityID <= 0:
		return domain.TV{}, domain.Invalid("cityId", "is required")
	case loc.StateID <= 0:
		return domain.TV{}, domain.Invalid("stateId", "is required")
	case loc.CountryID <= 0:
		return domain.TV{}, domain.Invalid("countryId", "is required")
	}
	status := domain.TVStatusOffline
	if strings.TrimSpace(p.Status) != "" {
		parsed, err := domain.ParseTVStatus(p.Status)
		if err != nil {
			return domain.TV{}, err
		}
		status = parsed
	}

	id, err := s.seq.NextSequence(ctx, SequenceTV)
	if err != nil {
		return domain.TV{}, fmt.Errorf("next tv id: %w", err)
	}
	code := strings.TrimSpace(p.Code)
	if code == "" {
		code = strconv.FormatInt(id, 10)
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "TV " + strconv.FormatInt(id, 10)
	}
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}

	tv, err := s.tvs.CreateTV(ctx, domain.TV{
		ID:       id,
		Code:     code,
		Name:     name,
		Location: loc,
		Status:   status,
		IsActive: active,
	})
	if err != nil {
		return domain.TV{}, fmt.Errorf("create tv: %w", err)
	}
	s.record(ctx, domain.BusinessMetric{Event: domain.BusinessMetricEventTVRegistered, TVID: &tv.ID})
	return tv, nil
}

// SetTVStatus changes the connectivity status of a TV.
func (s *Service) SetTVStatus(ctx context.Context, code, raw string) (domain.TV, error) {
	status, err := domain.ParseTVStatus(raw)
	if err != nil {
		return domain.TV{}, err
	}
	tv, err := s.tvs.GetTVByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return domain.TV{}, fmt.Errorf("lookup tv: %w", err)
	}
	if tv.Status == status {
		return tv, nil
	}
	if err := s.tvs.UpdateTVStatus(ctx, tv.ID, status); err != nil {
		return domain.TV{}, fmt.Errorf("update tv status: %w", err)
	}
	s.log.Info().Str("tv", tv.Code).Str("from", string(tv.Status)).Str("to", string(status)).Msg("catalog: tv status changed")
	tv.Status = status
	return tv, nil
}

func (s *Service) record(ctx context.Context, metric domain.BusinessMetric) {
	if s.metrics == nil {
		return
	}
	metric.OccurredAt = s.now()
	if err := s.metrics.RecordBusinessMetric(ctx, metric); err != nil {
		s.log.Warn().Err(err).Str("event", metric.Event).Msg("catalog: business metric failed")
	}
}
