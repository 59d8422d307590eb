package stats

import (
	"sort"
	"strings"

	"signage-analytics/internal/usecase/playback"
)

// TVRow is the performance of one TV.
type TVRow struct {
	TVID              int64   `json:"tvId"`
	TVCode            string  `json:"tvCode"`
	TVName            string  `json:"tvName"`
	Location          string  `json:"location"`
	Plays             int     `json:"plays"`
	TotalDuration     float64 `json:"totalDuration"`
	CompletedPlays    int     `json:"completedPlays"`
	AverageCompletion float64 `json:"averageCompletion"`
	AverageDuration   float64 `json:"averageDuration"`
	CompletionRate    float64 `json:"completionRate"`
}

// ByTV ranks TVs by plays.
type ByTV struct {
	order []int64
	rows  map[int64]*TVRow
}

// NewByTV creates an empty TV leaderboard.
func NewByTV() *ByTV {
	return &ByTV{rows: make(map[int64]*TVRow)}
}

func (b *ByTV) Add(e playback.EnrichedLog) {
	row, ok := b.rows[e.TVID]
	if !ok {
		row = &TVRow{TVID: e.TVID}
		if e.TV != nil {
			row.TVCode = e.TV.Code
			row.TVName = e.TV.Name
			row.Location = e.TV.Location.City + ", " + e.TV.Location.State
		} else {
			row.Location = ", "
		}
		b.rows[e.TVID] = row
		b.order = append(b.order, e.TVID)
	}
	row.Plays++
	row.TotalDuration += e.PlayDuration.Seconds
	if e.Completed() {
		row.CompletedPlays++
	}
	// Summed here, divided in Result.
	row.AverageCompletion += e.EnhancedCompletion.Percentage
}

// Result returns the rows ordered by plays, descending. Ties keep first-seen order.
func (b *ByTV) Result() []TVRow {
	out := make([]TVRow, 0, len(b.order))
	for _, id := range b.order {
		row := *b.rows[id]
		row.AverageCompletion = mean(row.AverageCompletion, row.Plays)
		row.AverageDuration = mean(row.TotalDuration, row.Plays)
		row.CompletionRate = ratio(row.CompletedPlays, row.Plays)
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Plays > out[j].Plays })
	return out
}

// AdRow is the performance of one ad.
type AdRow struct {
	AdID            int64   `json:"adId"`
	AdTitle         string  `json:"adTitle"`
	Plays           int     `json:"plays"`
	TotalDuration   float64 `json:"totalDuration"`
	CompletedPlays  int     `json:"completedPlays"`
	AverageDuration float64 `json:"averageDuration"`
	CompletionRate  float64 `json:"completionRate"`
	// Efficiency is played time over nominal time for this ad, in percent.
	Efficiency float64 `json:"efficiency"`
}

type adAcc struct {
	AdRow
	duration float64
}

// ByAd ranks ads by plays.
type ByAd struct {
	order []int64
	rows  map[int64]*adAcc
}

// NewByAd creates an empty ad leaderboard.
func NewByAd() *ByAd {
	return &ByAd{rows: make(map[int64]*adAcc)}
}

func (b *ByAd) Add(e playback.EnrichedLog) {
	acc, ok := b.rows[e.AdID]
	if !ok {
		acc = &adAcc{AdRow: AdRow{AdID: e.AdID, AdTitle: e.AdTitle}, duration: e.AdDuration()}
		if e.Ad != nil && e.Ad.Title != "" {
			acc.AdTitle = e.Ad.Title
		}
		b.rows[e.AdID] = acc
		b.order = append(b.order, e.AdID)
	}
	acc.Plays++
	acc.TotalDuration += e.PlayDuration.Seconds
	if e.Completed() {
		acc.CompletedPlays++
	}
}

// Result returns the rows ordered by plays, descending.
func (b *ByAd) Result() []AdRow {
	out := make([]AdRow, 0, len(b.order))
	for _, id := range b.order {
		acc := b.rows[id]
		row := acc.AdRow
		row.AverageDuration = mean(row.TotalDuration, row.Plays)
		row.CompletionRate = ratio(row.CompletedPlays, row.Plays)
		if nominal := float64(row.Plays) * acc.duration; nominal > 0 {
			row.Efficiency = playback.Round(row.TotalDuration/nominal*100, 2)
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Plays > out[j].Plays })
	return out
}

// GeoRow aggregates plays of one city.
type GeoRow struct {
	City            string  `json:"city"`
	State           string  `json:"state"`
	Country         string  `json:"country"`
	Plays           int     `json:"plays"`
	UniqueTVCount   int     `json:"uniqueTVCount"`
	TotalDuration   float64 `json:"totalDuration"`
	AverageDuration float64 `json:"averageDuration"`
}

type geoAcc struct {
	GeoRow
	tvs map[int64]struct{}
}

const unknownPlace = "Unknown"

// Geographic groups plays by city and state.
type Geographic struct {
	order []string
	rows  map[string]*geoAcc
}

// NewGeographic creates an empty geographic rollup.
func NewGeographic() *Geographic {
	return &Geographic{rows: make(map[string]*geoAcc)}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownPlace
	}
	return s
}

func (g *Geographic) Add(e playback.EnrichedLog) {
	city, state, country := unknownPlace, unknownPlace, ""
	if e.TV != nil {
		city = orUnknown(e.TV.Location.City)
		state = orUnknown(e.TV.Location.State)
		country = e.TV.Location.Country
	}
	key := city + "-" + state
	acc, ok := g.rows[key]
	if !ok {
		acc = &geoAcc{
			GeoRow: GeoRow{City: city, State: state, Country: country},
			tvs:    make(map[int64]struct{}),
		}
		g.rows[key] = acc
		g.order = append(g.order, key)
	}
	acc.Plays++
	acc.TotalDuration += e.PlayDuration.Seconds
	acc.tvs[e.TVID] = struct{}{}
}

// Result returns the rows ordered by plays, descending.
func (g *Geographic) Result() []GeoRow {
	out := make([]GeoRow, 0, len(g.order))
	for _, key := range g.order {
		acc := g.rows[key]
		row := acc.GeoRow
		row.UniqueTVCount = len(acc.tvs)
		row.AverageDuration = mean(row.TotalDuration, row.Plays)
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Plays > out[j].Plays })
	return out
}

// AverageMetrics are population means over TV rows.
type AverageMetrics struct {
	AvgPlays          float64 `json:"avgPlays"`
	AvgCompletionRate float64 `json:"avgCompletionRate"`
	AvgDuration       float64 `json:"avgDuration"`
}

// Comparison ranks one TV against its peers.
type Comparison struct {
	CurrentTV      *TVRow         `json:"currentTV"`
	Rank           int            `json:"rank"`
	TotalTVs       int            `json:"totalTVs"`
	TopPerformers  []TVRow        `json:"topPerformers"`
	AverageMetrics AverageMetrics `json:"averageMetrics"`
}

const topPerformers = 5

// Compare ranks tvID within population, which must be ordered by plays as ByTV
// returns it. Rank is 1-based and zero when the TV has no plays.
func Compare(population []TVRow, tvID int64) Comparison {
	out := Comparison{TotalTVs: len(population), TopPerformers: []TVRow{}}
	var plays, completion, duration float64
	for i, row := range population {
		if row.TVID == tvID && out.CurrentTV == nil {
			current := row
			out.CurrentTV = &current
			out.Rank = i + 1
		}
		if i < topPerformers {
			out.TopPerformers = append(out.TopPerformers, row)
		}
		plays += float64(row.Plays)
		completion += row.CompletionRate
		duration += row.AverageDuration
	}
	if n := len(population); n > 0 {
		out.AverageMetrics = AverageMetrics{
			AvgPlays:          plays / float64(n),
			AvgCompletionRate: completion / float64(n),
			AvgDuration:       duration / float64(n),
		}
	}
	return out
}
