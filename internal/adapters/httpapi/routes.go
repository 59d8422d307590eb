package httpapi

import (
	"fmt"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"signage-analytics/internal/domain"
	httpinfra "signage-analytics/internal/infra/http"
	"signage-analytics/internal/usecase/reports"
	"signage-analytics/internal/usecase/schedule"
	"signage-analytics/internal/usecase/stats"
)

func (h *Handler) createAd(w http.ResponseWriter, r *http.Request) {
	var req createAdRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ad, err := h.catalog.RegisterAd(r.Context(), req.params())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, ad)
}

func (h *Handler) createTV(w http.ResponseWriter, r *http.Request) {
	var req createTVRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tv, err := h.catalog.RegisterTV(r.Context(), req.params())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, tv)
}

func (h *Handler) setTVStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tv, err := h.catalog.SetTVStatus(r.Context(), chi.URLParam(r, "code"), req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, tv)
}

func (h *Handler) tvSchedules(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r, h.loc)
	date := q.date("date", false)
	if q.err != nil {
		h.writeError(w, r, q.err)
		return
	}
	day, err := h.schedules.ForTVOnDate(r.Context(), chi.URLParam(r, "code"), date, h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, day)
}

func (h *Handler) nowPlaying(w http.ResponseWriter, r *http.Request) {
	np, err := h.schedules.NowPlaying(r.Context(), chi.URLParam(r, "code"), h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, np)
}

func (h *Handler) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sc, err := h.schedules.Create(r.Context(), req.params())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, sc)
}

func (h *Handler) createSchedules(w http.ResponseWriter, r *http.Request) {
	var req bulkScheduleRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]schedule.CreateParams, 0, len(req.Schedules))
	for _, item := range req.Schedules {
		items = append(items, item.params())
	}
	res, err := h.schedules.CreateBulk(r.Context(), items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) createLocationSchedule(w http.ResponseWriter, r *http.Request) {
	var req locationScheduleRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.schedules.CreateForLocations(r.Context(), req.params())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) tvsInLocations(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r, h.loc)
	sel := domain.LocationSelector{
		Stores:    q.ids("stores"),
		Zones:     q.ids("zones"),
		Cities:    q.ids("cities"),
		States:    q.ids("states"),
		Countries: q.ids("countries"),
	}
	if q.err != nil {
		h.writeError(w, r, q.err)
		return
	}
	preview, err := h.schedules.TVsInLocations(r.Context(), sel)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, preview)
}

func (h *Handler) toggleSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sc, err := h.schedules.Toggle(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, sc)
}

func (h *Handler) adSchedules(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	schedules, err := h.schedules.ForAd(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, schedules)
}

func (h *Handler) liveMonitor(w http.ResponseWriter, r *http.Request) {
	m, err := h.schedules.CurrentMonitor(r.Context(), h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) recordPlayback(w http.ResponseWriter, r *http.Request) {
	var req playbackRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.playback.Record(r.Context(), req.entry())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	httpinfra.WriteJSON(w, status, res)
}

// recordBulk stores a batch inline, or hands it to the ingestor queue when
// async=true.
func (h *Handler) recordBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	entries := make([]domain.PlaybackEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, e.entry())
	}

	q := newQuery(r, h.loc)
	async := q.flag("async", false)
	if q.err != nil {
		h.writeError(w, r, q.err)
		return
	}
	if !async {
		httpinfra.WriteJSON(w, http.StatusOK, h.playback.RecordBulk(r.Context(), entries))
		return
	}
	if h.queue == nil {
		httpinfra.WriteError(w, http.StatusServiceUnavailable, httpinfra.ErrorResponse{Error: "async ingestion is not configured", Code: "unavailable"})
		return
	}

	job := domain.PlaybackBatchJob{ID: uuid.NewString(), Entries: entries, RequestedAt: h.now().UTC()}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.writeError(w, r, fmt.Errorf("enqueue batch: %w", err))
		return
	}
	if h.metrics != nil {
		metric := domain.BusinessMetric{
			Event:      domain.BusinessMetricEventBatchQueued,
			Metadata:   map[string]any{"job_id": job.ID, "entries": len(entries)},
			OccurredAt: job.RequestedAt,
		}
		if err := h.metrics.RecordBusinessMetric(r.Context(), metric); err != nil {
			h.log.Warn().Err(err).Str("job_id", job.ID).Msg("api: failed to record batch metric")
		}
	}
	h.log.Info().Str("job_id", job.ID).Int("entries", len(entries)).Msg("api: playback batch queued")
	httpinfra.WriteJSON(w, http.StatusAccepted, bulkAccepted{JobID: job.ID, Entries: len(entries), Status: "queued"})
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r, h.loc)
	lq := reports.LogQuery{
		Filter: domain.LogFilter{
			AdID:      q.int64("adId"),
			TVID:      q.int64("tvId"),
			Completed: q.optionalBool("completed"),
			AdTitle:   q.str("adTitle"),
			Remark:    q.str("remark"),
			PlayTime:  q.str("playTime"),
			Search:    q.str("search"),
		},
		CompletionStatus: q.str("completionStatus"),
		Page:             q.int("page", 1),
		Limit:            q.limit(),
		SortBy:           q.str("sortBy"),
		SortOrder:        q.str("sortOrder"),
		IncludeStats:     q.flag("includeStats", true),
	}
	if from := q.date("startDate", false); from != nil {
		lq.Filter.From = *from
	}
	if to := q.date("endDate", true); to != nil {
		lq.Filter.To = *to
	}
	if q.err != nil {
		h.writeError(w, r, q.err)
		return
	}
	list, err := h.reports.ListLogs(r.Context(), lq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, list)
}

func analysisQuery(q *query) reports.AnalysisQuery {
	return reports.AnalysisQuery{
		Period:           q.period(),
		CompletionStatus: q.str("completionStatus"),
		Page:             q.int("page", 1),
		Limit:            q.limit(),

		IncludeHourly:        q.flag("includeHourly", true),
		IncludeAdPerformance: q.flag("includeAdPerformance", true),
		IncludeComparative:   q.flag("includeComparative", true),

		IncludeTVPerformance: q.flag("includeTVPerformance", true),
		IncludeGeographic:    q.flag("includeGeographic", true),
		IncludeTimeAnalysis:  q.flag("includeTimeAnalysis", true),
	}
}

func (h *Handler) tvAnalysis(w http.ResponseWriter, r *http.Request) {
	tvID, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := newQuery(r, h.loc)
	aq := analysisQuery(q)
	aq.AdID = q.int64("adId")
	if q.err != nil {
		h.writeError(w, r, q.err)
		return
	}
	report, err := h.reports.TVAnalysis(r.Context(), tvID, aq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) adAnalysis(w http.ResponseWriter, r *http.Request) {
	adID, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := newQuery(r, h.loc)
	aq := analysisQuery(q)
	aq.TVID = q.int64("tvId")
	if q.err != nil {
		h.writeError(w, r, q.err)
		return
	}
	report, err := h.reports.AdAnalysis(r.Context(), adID, aq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r, h.loc)
	groupBy, err := stats.ParseGroupBy(q.str("groupBy"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sq := reports.StatsQuery{
		Period:           q.period(),
		AdID:             q.int64("adId"),
		TVID:             q.int64("tvId"),
		CompletionStatus: q.str("completionStatus"),
		GroupBy:          groupBy,
	}
	if q.err != nil {
		h.writeError(w, r, q.err)
		return
	}
	report, err := h.reports.Statistics(r.Context(), sq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, report)
}
