package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/usecase/catalog"
	"signage-analytics/internal/usecase/playback"
	"signage-analytics/internal/usecase/reports"
	"signage-analytics/internal/usecase/schedule"
	"signage-analytics/internal/usecase/stats"
	"signage-analytics/internal/usecase/window"
)

type stubCatalog struct {
	adParams catalog.AdParams
	err      error
}

func (s *stubCatalog) RegisterAd(_ context.Context, p catalog.AdParams) (domain.Ad, error) {
	s.adParams = p
	if s.err != nil {
		return domain.Ad{}, s.err
	}
	return domain.Ad{ID: 1, Title: p.Title, Duration: p.Duration}, nil
}

func (s *stubCatalog) RegisterTV(_ context.Context, p catalog.TVParams) (domain.TV, error) {
	if s.err != nil {
		return domain.TV{}, s.err
	}
	return domain.TV{ID: 1, Code: p.Code, Location: p.Location}, nil
}

func (s *stubCatalog) SetTVStatus(_ context.Context, code, status string) (domain.TV, error) {
	if s.err != nil {
		return domain.TV{}, s.err
	}
	return domain.TV{Code: code, Status: domain.TVStatus(status)}, nil
}

type stubSchedules struct {
	date      *time.Time
	bulk      []schedule.CreateParams
	locations schedule.LocationParams
	toggled   int64
	forAd     int64
	selector  domain.LocationSelector
}

func (s *stubSchedules) Create(_ context.Context, p schedule.CreateParams) (domain.AdSchedule, error) {
	return domain.AdSchedule{ID: 5, AdID: p.AdID, TVs: p.TVs}, nil
}

func (s *stubSchedules) NowPlaying(_ context.Context, code string, _ time.Time) (schedule.NowPlaying, error) {
	return schedule.NowPlaying{}, domain.NotFound("tv", code)
}

func (s *stubSchedules) CurrentMonitor(context.Context, time.Time) (schedule.Monitor, error) {
	return schedule.Monitor{}, errors.New("connection refused")
}

func (s *stubSchedules) CreateBulk(_ context.Context, items []schedule.CreateParams) (schedule.BulkCreateResult, error) {
	s.bulk = items
	return schedule.BulkCreateResult{
		Created: []domain.AdSchedule{{ID: 1, AdID: items[0].AdID}},
		Failed:  []schedule.BulkFailure{{Index: 1, Code: "conflict", Field: "ad", Error: "taken"}},
	}, nil
}

func (s *stubSchedules) CreateForLocations(_ context.Context, p schedule.LocationParams) (schedule.LocationSchedule, error) {
	s.locations = p
	return schedule.LocationSchedule{Schedule: domain.AdSchedule{ID: 9, AdID: p.AdID}, TVCount: 2, Locations: p.Locations}, nil
}

func (s *stubSchedules) TVsInLocations(_ context.Context, sel domain.LocationSelector) (schedule.LocationPreview, error) {
	s.selector = sel
	return schedule.LocationPreview{TVCount: 1, TVs: []domain.TV{{ID: 1}}, Locations: sel}, nil
}

func (s *stubSchedules) Toggle(_ context.Context, id int64) (domain.AdSchedule, error) {
	if id == 404 {
		return domain.AdSchedule{}, domain.NotFound("schedule", id)
	}
	s.toggled = id
	return domain.AdSchedule{ID: id, IsActive: false}, nil
}

func (s *stubSchedules) ForAd(_ context.Context, adID int64) ([]domain.AdSchedule, error) {
	s.forAd = adID
	return []domain.AdSchedule{{ID: 3, AdID: adID}}, nil
}

func (s *stubSchedules) ForTVOnDate(_ context.Context, _ string, date *time.Time, _ time.Time) (schedule.TVDay, error) {
	s.date = date
	return schedule.TVDay{Date: "2024-06-10"}, nil
}

type stubPlayback struct {
	duplicate bool
	bulk      []domain.PlaybackEntry
}

func (s *stubPlayback) Record(_ context.Context, e domain.PlaybackEntry) (playback.Result, error) {
	return playback.Result{Log: domain.AdLog{ID: 7, AdID: e.AdID}, Duplicate: s.duplicate}, nil
}

func (s *stubPlayback) RecordBulk(_ context.Context, entries []domain.PlaybackEntry) playback.BulkResult {
	s.bulk = entries
	return playback.BulkResult{Stored: len(entries)}
}

type stubReports struct {
	logQuery      reports.LogQuery
	analysisQuery reports.AnalysisQuery
	tvID          int64
	statsQuery    reports.StatsQuery
}

func (s *stubReports) ListLogs(_ context.Context, q reports.LogQuery) (reports.LogList, error) {
	s.logQuery = q
	return reports.LogList{}, nil
}

func (s *stubReports) TVAnalysis(_ context.Context, tvID int64, q reports.AnalysisQuery) (reports.TVReport, error) {
	s.tvID, s.analysisQuery = tvID, q
	return reports.TVReport{}, nil
}

func (s *stubReports) AdAnalysis(_ context.Context, _ int64, q reports.AnalysisQuery) (reports.AdReport, error) {
	s.analysisQuery = q
	return reports.AdReport{}, nil
}

func (s *stubReports) Statistics(_ context.Context, q reports.StatsQuery) (reports.StatsReport, error) {
	s.statsQuery = q
	return reports.StatsReport{}, nil
}

type stubQueue struct {
	jobs []domain.PlaybackBatchJob
}

func (q *stubQueue) Enqueue(_ context.Context, job domain.PlaybackBatchJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *stubQueue) Receive(context.Context) (domain.PlaybackBatchJob, domain.AckFunc, error) {
	return domain.PlaybackBatchJob{}, nil, errors.New("not used")
}

type stubMetrics struct {
	events []domain.BusinessMetric
}

func (m *stubMetrics) RecordBusinessMetric(_ context.Context, metric domain.BusinessMetric) error {
	m.events = append(m.events, metric)
	return nil
}

type fixture struct {
	catalog   *stubCatalog
	schedules *stubSchedules
	playback  *stubPlayback
	reports   *stubReports
	queue     *stubQueue
	metrics   *stubMetrics
	router    chi.Router
}

var ist = window.LoadLocation(window.DefaultZone)

func newFixture(withQueue bool) *fixture {
	f := &fixture{
		catalog:   &stubCatalog{},
		schedules: &stubSchedules{},
		playback:  &stubPlayback{},
		reports:   &stubReports{},
		queue:     &stubQueue{},
		metrics:   &stubMetrics{},
	}
	deps := Deps{
		Catalog:         f.catalog,
		Schedules:       f.schedules,
		Playback:        f.playback,
		Reports:         f.reports,
		BusinessMetrics: f.metrics,
		Location:        ist,
		Logger:          zerolog.Nop(),
	}
	if withQueue {
		deps.Queue = f.queue
	}
	h := New(deps)
	h.now = func() time.Time { return time.Date(2024, 6, 10, 12, 0, 0, 0, ist) }
	f.router = chi.NewRouter()
	h.Mount(f.router)
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestCreateAd(t *testing.T) {
	f := newFixture(false)
	rec := f.do(t, http.MethodPost, "/api/v1/ads", `{"title":"Sale","advertiserId":3,"videoUrl":"s3://a.mp4","duration":30}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if f.catalog.adParams.Title != "Sale" || f.catalog.adParams.Duration != 30 {
		t.Fatalf("unexpected params: %+v", f.catalog.adParams)
	}
}

func TestCreateAdValidation(t *testing.T) {
	f := newFixture(false)
	rec := f.do(t, http.MethodPost, "/api/v1/ads", `{"title":"Sale","advertiserId":3,"videoUrl":"s3://a.mp4"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body["code"] != "invalid_input" || body["field"] != "duration" {
		t.Fatalf("unexpected body: %v", body)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/ads", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"conflict", domain.Conflict("code", "taken"), http.StatusConflict, "conflict"},
		{"not found", domain.NotFound("tv", "X"), http.StatusNotFound, "not_found"},
		{"internal", domain.Internal("postgres: create tv", errors.New("boom")), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(false)
			f.catalog.err = tt.err
			rec := f.do(t, http.MethodPost, "/api/v1/tvs", `{"code":"X","location":{"storeId":1,"zoneId":1,"cityId":1,"stateId":1,"countryId":1}}`)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			body := decodeError(t, rec)
			if body["code"] != tt.code {
				t.Fatalf("code = %q, want %q", body["code"], tt.code)
			}
			if tt.code == "internal" && strings.Contains(body["error"], "boom") {
				t.Fatal("internal details must not leak")
			}
		})
	}
}

func TestNowPlayingNotFound(t *testing.T) {
	f := newFixture(false)
	rec := f.do(t, http.MethodGet, "/api/v1/tvs/TV-9/now-playing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTVSchedulesDate(t *testing.T) {
	f := newFixture(false)
	rec := f.do(t, http.MethodGet, "/api/v1/tvs/TV-1/schedules?date=2024-06-12", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := time.Date(2024, 6, 12, 0, 0, 0, 0, ist)
	if f.schedules.date == nil || !f.schedules.date.Equal(want) {
		t.Fatalf("date = %v, want %v", f.schedules.date, want)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/tvs/TV-1/schedules?date=12.06.2024", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d", rec.Code)
	}
}

func TestCreateSchedule(t *testing.T) {
	f := newFixture(false)
	body := `{"adId":2,"tvs":[{"tvId":1,"playTimes":["09:00"]}],"validFrom":"2024-06-01T00:00:00+05:30","validTo":"2024-06-30T23:59:59+05:30"}`
	rec := f.do(t, http.MethodPost, "/api/v1/schedules", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/schedules", `{"adId":2,"tvs":[{"tvId":1}],"validFrom":"2024-06-01T00:00:00Z","validTo":"2024-06-02T00:00:00Z"}`)
	if body := decodeError(t, rec); rec.Code != http.StatusBadRequest || body["field"] != "tvs[0].playTimes" {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
}

func TestCreateSchedulesBulk(t *testing.T) {
	f := newFixture(false)
	item := `{"adId":2,"tvs":[{"tvId":1,"playTimes":["09:00"]}],"validFrom":"2024-06-01T00:00:00Z","validTo":"2024-06-30T00:00:00Z"}`
	rec := f.do(t, http.MethodPost, "/api/v1/schedules/bulk", `{"schedules":[`+item+`,`+item+`]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var res schedule.BulkCreateResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(f.schedules.bulk) != 2 || len(res.Created) != 1 || len(res.Failed) != 1 || res.Failed[0].Index != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/schedules/bulk", `{"schedules":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty bulk status = %d", rec.Code)
	}
}

func TestCreateLocationSchedule(t *testing.T) {
	f := newFixture(false)
	body := `{"adId":2,"cities":[4],"states":[1],"playTimes":["09:00","18:00"],"validFrom":"2024-06-01T00:00:00Z","validTo":"2024-06-30T00:00:00Z","priority":3}`
	rec := f.do(t, http.MethodPost, "/api/v1/schedules/by-locations", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	p := f.schedules.locations
	if p.AdID != 2 || p.Priority != 3 || len(p.Locations.Cities) != 1 || p.Locations.States[0] != 1 || len(p.PlayTimes) != 2 {
		t.Fatalf("unexpected params: %+v", p)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/schedules/by-locations", `{"adId":2,"cities":[0],"playTimes":["09:00"],"validFrom":"2024-06-01T00:00:00Z","validTo":"2024-06-30T00:00:00Z"}`)
	if body := decodeError(t, rec); rec.Code != http.StatusBadRequest || body["field"] != "cities[0]" {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
}

func TestTVsInLocations(t *testing.T) {
	f := newFixture(false)
	rec := f.do(t, http.MethodGet, "/api/v1/tvs/by-locations?stores=3,4&countries=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	sel := f.schedules.selector
	if len(sel.Stores) != 2 || sel.Stores[1] != 4 || len(sel.Countries) != 1 || sel.Zones != nil {
		t.Fatalf("unexpected selector: %+v", sel)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/tvs/by-locations?zones=2,x", "")
	if body := decodeError(t, rec); rec.Code != http.StatusBadRequest || body["field"] != "zones" {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
}

func TestToggleSchedule(t *testing.T) {
	f := newFixture(false)
	rec := f.do(t, http.MethodPatch, "/api/v1/schedules/12/toggle", "")
	if rec.Code != http.StatusOK || f.schedules.toggled != 12 {
		t.Fatalf("status = %d, toggled %d", rec.Code, f.schedules.toggled)
	}
	if rec := f.do(t, http.MethodPatch, "/api/v1/schedules/404/toggle", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing schedule status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPatch, "/api/v1/schedules/x/toggle", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}
}

func TestAdSchedules(t *testing.T) {
	f := newFixture(false)
	rec := f.do(t, http.MethodGet, "/api/v1/ads/8/schedules", "")
	if rec.Code != http.StatusOK || f.schedules.forAd != 8 {
		t.Fatalf("status = %d, ad %d", rec.Code, f.schedules.forAd)
	}
}

func TestLiveMonitorInternalError(t *testing.T) {
	f := newFixture(false)
	rec := f.do(t, http.MethodGet, "/api/v1/live-monitor", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRecordPlayback(t *testing.T) {
	f := newFixture(false)
	body := `{"tvCode":"TV-1","adId":2,"startTime":"2024-06-10T09:00:00+05:30","endTime":"2024-06-10T09:00:30+05:30"}`
	if rec := f.do(t, http.MethodPost, "/api/v1/ad-logs", body); rec.Code != http.StatusCreated {
		t.Fatalf("stored status = %d", rec.Code)
	}
	f.playback.duplicate = true
	if rec := f.do(t, http.MethodPost, "/api/v1/ad-logs", body); rec.Code != http.StatusOK {
		t.Fatalf("duplicate status = %d", rec.Code)
	}
}

func TestRecordBulkSync(t *testing.T) {
	f := newFixture(true)
	rec := f.do(t, http.MethodPost, "/api/v1/ad-logs/bulk", `{"entries":[{"tvCode":"A","adId":1},{"tvCode":"B","adId":2}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(f.playback.bulk) != 2 || f.playback.bulk[1].TVCode != "B" {
		t.Fatalf("unexpected entries: %+v", f.playback.bulk)
	}
	if len(f.queue.jobs) != 0 {
		t.Fatal("sync bulk must not enqueue")
	}

	rec = f.do(t, http.MethodPost, "/api/v1/ad-logs/bulk", `{"entries":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty batch status = %d", rec.Code)
	}
}

func TestRecordBulkAsync(t *testing.T) {
	f := newFixture(true)
	rec := f.do(t, http.MethodPost, "/api/v1/ad-logs/bulk?async=true", `{"entries":[{"tvCode":"A","adId":1}]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	var accepted bulkAccepted
	if err := json.NewDecoder(rec.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(f.queue.jobs) != 1 || f.queue.jobs[0].ID != accepted.JobID || accepted.Entries != 1 {
		t.Fatalf("job not queued: %+v %+v", f.queue.jobs, accepted)
	}
	if len(f.metrics.events) != 1 || f.metrics.events[0].Event != domain.BusinessMetricEventBatchQueued {
		t.Fatalf("unexpected metrics: %+v", f.metrics.events)
	}
	if f.playback.bulk != nil {
		t.Fatal("async bulk must not ingest inline")
	}

	noQueue := newFixture(false)
	rec = noQueue.do(t, http.MethodPost, "/api/v1/ad-logs/bulk?async=true", `{"entries":[{"tvCode":"A","adId":1}]}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status without queue = %d", rec.Code)
	}
}

func TestListLogsQuery(t *testing.T) {
	f := newFixture(false)
	rec := f.do(t, http.MethodGet, "/api/v1/ad-logs?adId=2&completed=false&search=mall&startDate=2024-06-01&endDate=2024-06-02&sortBy=startTime&sortOrder=asc&page=3&includeStats=false", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	q := f.reports.logQuery
	if q.Filter.AdID != 2 || q.Filter.Completed == nil || *q.Filter.Completed || q.Filter.Search != "mall" {
		t.Fatalf("unexpected filter: %+v", q.Filter)
	}
	if !q.Filter.From.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, ist)) {
		t.Fatalf("from = %v", q.Filter.From)
	}
	if !q.Filter.To.Equal(window.EndOfDay(time.Date(2024, 6, 2, 0, 0, 0, 0, ist), ist)) {
		t.Fatalf("to = %v", q.Filter.To)
	}
	if q.Page != 3 || q.Limit != reports.DefaultLimit || q.IncludeStats || q.SortOrder != "asc" {
		t.Fatalf("unexpected query: %+v", q)
	}

	f.do(t, http.MethodGet, "/api/v1/ad-logs?limit=all", "")
	if f.reports.logQuery.Limit != 0 || !f.reports.logQuery.IncludeStats {
		t.Fatalf("limit=all must return everything: %+v", f.reports.logQuery)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/ad-logs?tvId=abc", "")
	if body := decodeError(t, rec); rec.Code != http.StatusBadRequest || body["field"] != "tvId" {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
}

func TestTVAnalysisQuery(t *testing.T) {
	f := newFixture(false)
	rec := f.do(t, http.MethodGet, "/api/v1/ad-logs/tv/12?includeHourly=false&adId=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	q := f.reports.analysisQuery
	if f.reports.tvID != 12 || q.AdID != 3 || q.Period.Period != window.PeriodDaily {
		t.Fatalf("unexpected query: %d %+v", f.reports.tvID, q)
	}
	if q.IncludeHourly || !q.IncludeAdPerformance || !q.IncludeComparative {
		t.Fatalf("unexpected include flags: %+v", q)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/ad-logs/tv/zero", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}
}

func TestAdAnalysisPeriod(t *testing.T) {
	f := newFixture(false)
	rec := f.do(t, http.MethodGet, "/api/v1/ad-logs/ad/4?period=specific&specificDate=2024-06-05&tvId=9&includeGeographic=false", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	q := f.reports.analysisQuery
	if q.Period.Period != window.PeriodSpecific || q.Period.SpecificDate == nil || q.TVID != 9 || q.IncludeGeographic {
		t.Fatalf("unexpected query: %+v", q)
	}
}

func TestStatisticsGroupBy(t *testing.T) {
	f := newFixture(false)
	if rec := f.do(t, http.MethodGet, "/api/v1/statistics?groupBy=by_tv&period=weekly", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if f.reports.statsQuery.GroupBy != stats.GroupByTV || f.reports.statsQuery.Period.Period != window.PeriodWeekly {
		t.Fatalf("unexpected query: %+v", f.reports.statsQuery)
	}
	rec := f.do(t, http.MethodGet, "/api/v1/statistics?groupBy=by_planet", "")
	if body := decodeError(t, rec); rec.Code != http.StatusBadRequest || body["field"] != "groupBy" {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
}
