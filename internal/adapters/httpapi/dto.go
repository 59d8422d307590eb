package httpapi

import (
	"time"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/usecase/catalog"
	"signage-analytics/internal/usecase/schedule"
)

type createAdRequest struct {
	Title        string   `json:"title" validate:"required"`
	Categories   []string `json:"categories"`
	AdvertiserID int64    `json:"advertiserId" validate:"gt=0"`
	VideoURL     string   `json:"videoUrl" validate:"required"`
	Duration     float64  `json:"duration" validate:"gt=0"`
	IsActive     *bool    `json:"isActive"`
}

func (r createAdRequest) params() catalog.AdParams {
	return catalog.AdParams{
		Title:        r.Title,
		Categories:   r.Categories,
		AdvertiserID: r.AdvertiserID,
		VideoURL:     r.VideoURL,
		Duration:     r.Duration,
		IsActive:     r.IsActive,
	}
}

type locationRequest struct {
	StoreID   int64  `json:"storeId" validate:"gt=0"`
	ZoneID    int64  `json:"zoneId" validate:"gt=0"`
	CityID    int64  `json:"cityId" validate:"gt=0"`
	StateID   int64  `json:"stateId" validate:"gt=0"`
	CountryID int64  `json:"countryId" validate:"gt=0"`
	Store     string `json:"store"`
	Zone      string `json:"zone"`
	City      string `json:"city"`
	State     string `json:"state"`
	Country   string `json:"country"`
}

type createTVRequest struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Location locationRequest `json:"location"`
	Status   string          `json:"status"`
	IsActive *bool           `json:"isActive"`
}

func (r createTVRequest) params() catalog.TVParams {
	l := r.Location
	return catalog.TVParams{
		Code: r.Code,
		Name: r.Name,
		Location: domain.Location{
			StoreID: l.StoreID, ZoneID: l.ZoneID, CityID: l.CityID, StateID: l.StateID, CountryID: l.CountryID,
			Store: l.Store, Zone: l.Zone, City: l.City, State: l.State, Country: l.Country,
		},
		Status:   r.Status,
		IsActive: r.IsActive,
	}
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type scheduleTVRequest struct {
	TVID      int64    `json:"tvId" validate:"gt=0"`
	PlayTimes []string `json:"playTimes" validate:"required,min=1"`
}

type createScheduleRequest struct {
	AdID         int64               `json:"adId" validate:"gt=0"`
	TVs          []scheduleTVRequest `json:"tvs" validate:"required,min=1,dive"`
	ValidFrom    time.Time           `json:"validFrom" validate:"required"`
	ValidTo      time.Time           `json:"validTo" validate:"required"`
	RepeatInADay int                 `json:"repeatInADay" validate:"gte=0"`
	Priority     int                 `json:"priority" validate:"gte=0"`
	IsActive     *bool               `json:"isActive"`
}

func (r createScheduleRequest) params() schedule.CreateParams {
	tvs := make([]domain.ScheduleTV, 0, len(r.TVs))
	for _, tv := range r.TVs {
		tvs = append(tvs, domain.ScheduleTV{TVID: tv.TVID, PlayTimes: tv.PlayTimes})
	}
	return schedule.CreateParams{
		AdID:         r.AdID,
		TVs:          tvs,
		ValidFrom:    r.ValidFrom,
		ValidTo:      r.ValidTo,
		RepeatInADay: r.RepeatInADay,
		Priority:     r.Priority,
		IsActive:     r.IsActive,
	}
}

type bulkScheduleRequest struct {
	Schedules []createScheduleRequest `json:"schedules" validate:"required,min=1,dive"`
}

type locationScheduleRequest struct {
	AdID         int64     `json:"adId" validate:"gt=0"`
	Stores       []int64   `json:"stores" validate:"omitempty,dive,gt=0"`
	Zones        []int64   `json:"zones" validate:"omitempty,dive,gt=0"`
	Cities       []int64   `json:"cities" validate:"omitempty,dive,gt=0"`
	States       []int64   `json:"states" validate:"omitempty,dive,gt=0"`
	Countries    []int64   `json:"countries" validate:"omitempty,dive,gt=0"`
	PlayTimes    []string  `json:"playTimes" validate:"required,min=1"`
	ValidFrom    time.Time `json:"validFrom" validate:"required"`
	ValidTo      time.Time `json:"validTo" validate:"required"`
	RepeatInADay int       `json:"repeatInADay" validate:"gte=0"`
	Priority     int       `json:"priority" validate:"gte=0"`
}

func (r locationScheduleRequest) params() schedule.LocationParams {
	return schedule.LocationParams{
		CreateParams: schedule.CreateParams{
			AdID:         r.AdID,
			ValidFrom:    r.ValidFrom,
			ValidTo:      r.ValidTo,
			RepeatInADay: r.RepeatInADay,
			Priority:     r.Priority,
		},
		Locations: domain.LocationSelector{
			Stores:    r.Stores,
			Zones:     r.Zones,
			Cities:    r.Cities,
			States:    r.States,
			Countries: r.Countries,
		},
		PlayTimes: r.PlayTimes,
	}
}

// playbackRequest is one device report. Field checks beyond presence happen in
// the ingestion service so bulk submissions can report them per entry.
type playbackRequest struct {
	TVCode      string    `json:"tvCode"`
	AdID        int64     `json:"adId"`
	AdTitle     string    `json:"adTitle"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	PlayTimes   []string  `json:"playTimes"`
	PlayTime    string    `json:"playTime"`
	RepeatCount int       `json:"repeatCount"`
	Completed   bool      `json:"completed"`
	Remark      string    `json:"remark"`
}

func (r playbackRequest) entry() domain.PlaybackEntry {
	return domain.PlaybackEntry{
		TVCode:      r.TVCode,
		AdID:        r.AdID,
		AdTitle:     r.AdTitle,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		PlayTimes:   r.PlayTimes,
		PlayTime:    r.PlayTime,
		RepeatCount: r.RepeatCount,
		Completed:   r.Completed,
		Remark:      r.Remark,
	}
}

type bulkRequest struct {
	Entries []playbackRequest `json:"entries" validate:"required,min=1"`
}

type bulkAccepted struct {
	JobID   string `json:"jobId"`
	Entries int    `json:"entries"`
	Status  string `json:"status"`
}
