package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/infra/metrics"
)

const scheduleSelect = `SELECT s.id, s.ad_id, s.valid_from, s.valid_to, s.repeat_in_a_day, s.priority, s.is_active, s.created_at,
` + adColumns + `
FROM ad_schedules s
JOIN ads a ON a.id = s.ad_id`

// CreateSchedule stores the schedule together with its TV bindings in one transaction.
func (p *Postgres) CreateSchedule(ctx context.Context, sc domain.AdSchedule) (domain.AdSchedule, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
INSERT INTO ad_schedules (ad_id, valid_from, valid_to, repeat_in_a_day, priority, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at
`, sc.AdID, sc.ValidFrom, sc.ValidTo, sc.RepeatInADay, sc.Priority, sc.IsActive).Scan(&sc.ID, &sc.CreatedAt)
		if err != nil {
			return err
		}
		if len(sc.TVs) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, entry := range sc.TVs {
			times := entry.PlayTimes
			if times == nil {
				times = []string{}
			}
			batch.Queue(`INSERT INTO ad_schedule_tvs (schedule_id, tv_id, play_times) VALUES ($1, $2, $3)`, sc.ID, entry.TVID, times)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	metrics.ObserveNetworkRequest("postgres", "ad_schedules_insert", "ad_schedules", start, err)
	if isUniqueViolation(err, "") {
		return domain.AdSchedule{}, domain.Conflict("tvs", "a TV is listed twice")
	}
	return sc, storeErr("create schedule", err)
}

// ListActiveAt returns active schedules covering at, oldest first.
func (p *Postgres) ListActiveAt(ctx context.Context, at time.Time) ([]domain.AdSchedule, error) {
	return p.listSchedules(ctx, "ad_schedules_active_at", scheduleSelect+`
WHERE s.is_active AND s.valid_from <= $1 AND s.valid_to >= $1
ORDER BY s.created_at, s.id`, at)
}

// ListForTVBetween returns active schedules targeting the TV that overlap [from, to].
func (p *Postgres) ListForTVBetween(ctx context.Context, tvID int64, from, to time.Time) ([]domain.AdSchedule, error) {
	return p.listSchedules(ctx, "ad_schedules_for_tv", scheduleSelect+`
WHERE s.is_active AND s.valid_from <= $3 AND s.valid_to >= $2
  AND EXISTS (SELECT 1 FROM ad_schedule_tvs st WHERE st.schedule_id = s.id AND st.tv_id = $1)
ORDER BY s.created_at, s.id`, tvID, from, to)
}

// GetSchedule returns one schedule with its TV bindings.
func (p *Postgres) GetSchedule(ctx context.Context, id int64) (domain.AdSchedule, error) {
	schedules, err := p.listSchedules(ctx, "ad_schedules_get", scheduleSelect+`
WHERE s.id = $1`, id)
	if err != nil {
		return domain.AdSchedule{}, err
	}
	if len(schedules) == 0 {
		return domain.AdSchedule{}, domain.NotFound("schedule", id)
	}
	return schedules[0], nil
}

// SetScheduleActive switches a schedule on or off.
func (p *Postgres) SetScheduleActive(ctx context.Context, id int64, active bool) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE ad_schedules SET is_active=$2 WHERE id=$1`, id, active)
	metrics.ObserveNetworkRequest("postgres", "ad_schedules_set_active", "ad_schedules", start, err)
	if err != nil {
		return storeErr("set schedule active", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("schedule", id)
	}
	return nil
}

// ListSchedulesForAd returns all schedules of the ad, active or not.
func (p *Postgres) ListSchedulesForAd(ctx context.Context, adID int64) ([]domain.AdSchedule, error) {
	return p.listSchedules(ctx, "ad_schedules_for_ad", scheduleSelect+`
WHERE s.ad_id = $1
ORDER BY s.valid_from DESC, s.id DESC`, adID)
}

// HasActiveOverlap reports whether the ad has an active schedule overlapping [from, to].
func (p *Postgres) HasActiveOverlap(ctx context.Context, adID int64, from, to time.Time) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (
    SELECT 1 FROM ad_schedules
    WHERE ad_id=$1 AND is_active AND valid_from <= $3 AND valid_to >= $2
)`, adID, from, to).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "ad_schedules_overlap", "ad_schedules", start, err)
	return exists, storeErr("check schedule overlap", err)
}

func (p *Postgres) listSchedules(ctx context.Context, op, query string, args ...any) ([]domain.AdSchedule, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", op, "ad_schedules", start, err)
	if err != nil {
		return nil, storeErr(op, err)
	}

	var (
		schedules []domain.AdSchedule
		ids       []int64
	)
	for rows.Next() {
		var sc domain.AdSchedule
		dest := []any{&sc.ID, &sc.AdID, &sc.ValidFrom, &sc.ValidTo, &sc.RepeatInADay, &sc.Priority, &sc.IsActive, &sc.CreatedAt}
		if err := rows.Scan(append(dest, adDest(&sc.Ad)...)...); err != nil {
			rows.Close()
			return nil, storeErr("scan schedule", err)
		}
		schedules = append(schedules, sc)
		ids = append(ids, sc.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	if len(ids) == 0 {
		return schedules, nil
	}

	start = time.Now()
	rows, err = p.pool.Query(ctx, `
SELECT schedule_id, tv_id, play_times FROM ad_schedule_tvs
WHERE schedule_id = ANY($1)
ORDER BY schedule_id, tv_id`, ids)
	metrics.ObserveNetworkRequest("postgres", "ad_schedule_tvs_list", "ad_schedule_tvs", start, err)
	if err != nil {
		return nil, storeErr("list schedule tvs", err)
	}
	defer rows.Close()

	index := make(map[int64]int, len(schedules))
	for i, sc := range schedules {
		index[sc.ID] = i
	}
	for rows.Next() {
		var (
			scheduleID int64
			entry      domain.ScheduleTV
		)
		if err := rows.Scan(&scheduleID, &entry.TVID, &entry.PlayTimes); err != nil {
			return nil, storeErr("scan schedule tv", err)
		}
		if i, ok := index[scheduleID]; ok {
			schedules[i].TVs = append(schedules[i].TVs, entry)
		}
	}
	return schedules, storeErr("list schedule tvs", rows.Err())
}
