package domain

import "time"

// Location holds the store/zone/city/state/country chain a TV is installed in.
// Names are filled on reads.
type Location struct {
	StoreID   int64 `json:"storeId"`
	ZoneID    int64 `json:"zoneId"`
	CityID    int64 `json:"cityId"`
	StateID   int64 `json:"stateId"`
	CountryID int64 `json:"countryId"`

	Store   string `json:"store,omitempty"`
	Zone    string `json:"zone,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// LocationSelector picks TVs by store, zone, city, state or country id.
// A TV matches when any of its ids is listed.
type LocationSelector struct {
	Stores    []int64 `json:"stores"`
	Zones     []int64 `json:"zones"`
	Cities    []int64 `json:"cities"`
	States    []int64 `json:"states"`
	Countries []int64 `json:"countries"`
}

// Empty reports whether no location is selected.
func (s LocationSelector) Empty() bool {
	return len(s.Stores) == 0 && len(s.Zones) == 0 && len(s.Cities) == 0 && len(s.States) == 0 && len(s.Countries) == 0
}

// Ad is a creative that can be scheduled onto TVs.
type Ad struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Categories   []string `json:"categories"`
	AdvertiserID int64    `json:"advertiserId"`
	VideoURL     string   `json:"videoUrl"`
	// Duration is the nominal length in seconds and is authoritative for completion math.
	Duration  float64   `json:"duration"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TV is a signage device identified by a sequential id and an external device code.
type TV struct {
	ID             int64      `json:"id"`
	Code           string     `json:"code"`
	Name           string     `json:"name"`
	Location       Location   `json:"location"`
	Status         TVStatus   `json:"status"`
	IsActive       bool       `json:"isActive"`
	LastSyncTime   *time.Time `json:"lastSyncTime,omitempty"`
	LastSyncedAdID *int64     `json:"lastSyncedAdId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// ScheduleTV binds one TV to the literal "HH:MM" clock strings it must start the ad at.
type ScheduleTV struct {
	TVID      int64    `json:"tvId"`
	PlayTimes []string `json:"playTimes"`
}

// AdSchedule binds an ad to a set of TVs within an inclusive validity window.
type AdSchedule struct {
	ID           int64        `json:"id"`
	AdID         int64        `json:"adId"`
	Ad           Ad           `json:"ad"`
	TVs          []ScheduleTV `json:"tvs"`
	ValidFrom    time.Time    `json:"validFrom"`
	ValidTo      time.Time    `json:"validTo"`
	RepeatInADay int          `json:"repeatInADay"`
	Priority     int          `json:"priority"`
	IsActive     bool         `json:"isActive"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// PlayTimesFor returns the play-time list of the given TV, if the schedule targets it.
func (s AdSchedule) PlayTimesFor(tvID int64) ([]string, bool) {
	for _, entry := range s.TVs {
		if entry.TVID == tvID {
			return entry.PlayTimes, true
		}
	}
	return nil, false
}

// Covers reports whether the schedule is active and its validity window includes at.
func (s AdSchedule) Covers(at time.Time) bool {
	if !s.IsActive {
		return false
	}
	return !at.Before(s.ValidFrom) && !at.After(s.ValidTo)
}

// AdLog is one playback attempt reported by a device.
type AdLog struct {
	ID          int64     `json:"id"`
	AdID        int64     `json:"adId"`
	AdTitle     string    `json:"adTitle"`
	TVID        int64     `json:"tvId"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	PlayTimes   []string  `json:"playTimes"`
	PlayTime    string    `json:"playTime"`
	RepeatCount int       `json:"repeatCount"`
	// Completed is the device-reported flag; it is not authoritative.
	Completed bool      `json:"completed"`
	Remark    string    `json:"remark"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Ad and TV are populated by log queries.
	Ad *Ad `json:"ad,omitempty"`
	TV *TV `json:"tv,omitempty"`
}

// AdDuration returns the nominal duration of the referenced ad, or zero when unknown.
func (l AdLog) AdDuration() float64 {
	if l.Ad == nil {
		return 0
	}
	return l.Ad.Duration
}

// LogFilter narrows log queries. Zero values mean "any".
type LogFilter struct {
	AdID      int64
	TVID      int64
	From      time.Time
	To        time.Time
	Completed *bool
	AdTitle   string
	Remark    string
	PlayTime  string
	Search    string

	SortBy   string
	SortDesc bool
	Limit    int
	Offset   int
}
