package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/infra/metrics"
)

const logColumns = `l.id, l.ad_id, l.ad_title, l.tv_id, l.start_time, l.end_time, l.play_times, l.play_time,
l.repeat_count, l.completed, l.remark, l.created_at, l.updated_at`

const logSelect = `SELECT ` + logColumns + `, ` + adColumns + `, ` + tvColumns + `
FROM ad_logs l
JOIN ads a ON a.id = l.ad_id
JOIN tvs t ON t.id = l.tv_id`

const playedInterval = `GREATEST(l.end_time - l.start_time, interval '0')`

// logSortColumns maps API sort keys to SQL expressions. Unknown keys fall back to created_at.
var logSortColumns = map[string]string{
	"createdAt":            "l.created_at",
	"updatedAt":            "l.updated_at",
	"startTime":            "l.start_time",
	"endTime":              "l.end_time",
	"repeatCount":          "l.repeat_count",
	"adTitle":              "l.ad_title",
	"actualDuration":       playedInterval,
	"playDuration":         playedInterval,
	"completionPercentage": "EXTRACT(EPOCH FROM " + playedInterval + ") / NULLIF(a.duration, 0)",
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// logQuery renders the WHERE clause of f and its arguments.
type logQuery struct {
	where []string
	args  []any
}

func (q *logQuery) add(cond string, arg any) {
	q.args = append(q.args, arg)
	q.where = append(q.where, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(q.args))))
}

func buildLogQuery(f domain.LogFilter) logQuery {
	var q logQuery
	if f.AdID != 0 {
		q.add("l.ad_id = ?", f.AdID)
	}
	if f.TVID != 0 {
		q.add("l.tv_id = ?", f.TVID)
	}
	if !f.From.IsZero() {
		q.add("l.start_time >= ?", f.From)
	}
	if !f.To.IsZero() {
		q.add("l.start_time <= ?", f.To)
	}
	if f.Completed != nil {
		q.add("l.completed = ?", *f.Completed)
	}
	if f.AdTitle != "" {
		q.add("l.ad_title ILIKE ?", escapeLike(f.AdTitle))
	}
	if f.Remark != "" {
		q.add("l.remark ILIKE ?", escapeLike(f.Remark))
	}
	if f.PlayTime != "" {
		q.add("l.play_time ILIKE ?", escapeLike(f.PlayTime))
	}
	if f.Search != "" {
		q.add("(l.ad_title ILIKE ? OR l.remark ILIKE ? OR l.play_time ILIKE ? OR t.name ILIKE ? OR t.code ILIKE ?)", escapeLike(f.Search))
	}
	return q
}

func (q logQuery) whereSQL() string {
	if len(q.where) == 0 {
		return ""
	}
	return "\nWHERE " + strings.Join(q.where, " AND ")
}

func orderSQL(f domain.LogFilter) string {
	col, ok := logSortColumns[f.SortBy]
	if !ok {
		col = "l.created_at"
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf("\nORDER BY %s %s, l.id %s", col, dir, dir)
}

func pageSQL(f domain.LogFilter) string {
	var b strings.Builder
	if f.Limit > 0 {
		fmt.Fprintf(&b, "\nLIMIT %d", f.Limit)
	}
	if f.Offset > 0 {
		fmt.Fprintf(&b, "\nOFFSET %d", f.Offset)
	}
	return b.String()
}

func scanLog(row pgx.Row) (domain.AdLog, error) {
	var (
		l  domain.AdLog
		ad domain.Ad
		tv domain.TV
	)
	ts := tvScan{tv: &tv}
	dest := []any{
		&l.ID, &l.AdID, &l.AdTitle, &l.TVID, &l.StartTime, &l.EndTime, &l.PlayTimes, &l.PlayTime,
		&l.RepeatCount, &l.Completed, &l.Remark, &l.CreatedAt, &l.UpdatedAt,
	}
	dest = append(dest, adDest(&ad)...)
	dest = append(dest, ts.dest()...)
	if err := row.Scan(dest...); err != nil {
		return domain.AdLog{}, err
	}
	ts.finish()
	l.Ad, l.TV = &ad, &tv
	return l, nil
}

// InsertLog stores the log unless the same playback was already recorded.
func (p *Postgres) InsertLog(ctx context.Context, log domain.AdLog) (domain.AdLog, bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if log.PlayTimes == nil {
		log.PlayTimes = []string{}
	}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO ad_logs (ad_id, ad_title, tv_id, start_time, end_time, play_times, play_time, repeat_count, completed, remark)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT ON CONSTRAINT ad_logs_playback_key DO NOTHING
RETURNING id, created_at, updated_at
`, log.AdID, log.AdTitle, log.TVID, log.StartTime, log.EndTime, log.PlayTimes, log.PlayTime,
		log.RepeatCount, log.Completed, log.Remark).Scan(&log.ID, &log.CreatedAt, &log.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "ad_logs_insert", "ad_logs", start, err)
	if err == nil {
		return log, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.AdLog{}, false, storeErr("insert log", err)
	}

	start = time.Now()
	existing, err := scanLog(p.pool.QueryRow(ctx, logSelect+`
WHERE l.ad_id=$1 AND l.tv_id=$2 AND l.start_time=$3 AND l.end_time=$4`,
		log.AdID, log.TVID, log.StartTime, log.EndTime))
	metrics.ObserveNetworkRequest("postgres", "ad_logs_get_duplicate", "ad_logs", start, err)
	if err != nil {
		return domain.AdLog{}, false, storeErr("load duplicate log", err)
	}
	return existing, false, nil
}

// ListLogs returns one page of matching logs with their ad and TV.
func (p *Postgres) ListLogs(ctx context.Context, f domain.LogFilter) ([]domain.AdLog, error) {
	var logs []domain.AdLog
	err := p.queryLogs(ctx, "ad_logs_list", queryTimeout, f, true, func(l domain.AdLog) error {
		logs = append(logs, l)
		return nil
	})
	return logs, err
}

// StreamLogs calls fn for every matching log, ignoring paging.
func (p *Postgres) StreamLogs(ctx context.Context, f domain.LogFilter, fn func(domain.AdLog) error) error {
	return p.queryLogs(ctx, "ad_logs_stream", streamTimeout, f, false, fn)
}

func (p *Postgres) queryLogs(ctx context.Context, op string, timeout time.Duration, f domain.LogFilter, paged bool, fn func(domain.AdLog) error) error {
	ctx, cancel := p.connCtxWithTimeout(ctx, timeout)
	defer cancel()

	q := buildLogQuery(f)
	sql := logSelect + q.whereSQL() + orderSQL(f)
	if paged {
		sql += pageSQL(f)
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, sql, q.args...)
	metrics.ObserveNetworkRequest("postgres", op, "ad_logs", start, err)
	if err != nil {
		return storeErr(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return storeErr("scan log", err)
		}
		if err := fn(l); err != nil {
			return err
		}
	}
	return storeErr(op, rows.Err())
}

// CountLogs counts the logs matching f, ignoring paging.
func (p *Postgres) CountLogs(ctx context.Context, f domain.LogFilter) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	q := buildLogQuery(f)
	var n int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*)
FROM ad_logs l
JOIN ads a ON a.id = l.ad_id
JOIN tvs t ON t.id = l.tv_id`+q.whereSQL(), q.args...).Scan(&n)
	metrics.ObserveNetworkRequest("postgres", "ad_logs_count", "ad_logs", start, err)
	return n, storeErr("count logs", err)
}
