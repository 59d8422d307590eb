package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/infra/metrics"
)

// Postgres implements the domain repositories on top of pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.AdRepo             = (*Postgres)(nil)
	_ domain.TVRepo             = (*Postgres)(nil)
	_ domain.ScheduleRepo       = (*Postgres)(nil)
	_ domain.AdLogRepo          = (*Postgres)(nil)
	_ domain.SequenceRepo       = (*Postgres)(nil)
	_ domain.BusinessMetricRepo = (*Postgres)(nil)
)

const (
	queryTimeout  = 5 * time.Second
	streamTimeout = 2 * time.Minute

	pgUniqueViolation = "23505"
)

// NewPostgres creates the adapter.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return p.connCtxWithTimeout(ctx, queryTimeout)
}

func (p *Postgres) connCtxWithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}

// storeErr marks unexpected driver failures as internal.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.Internal("postgres: "+op, err)
}

// NextSequence atomically increments and returns the named counter.
func (p *Postgres) NextSequence(ctx context.Context, name string) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var value int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO counters (name, value) VALUES ($1, 1)
ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
RETURNING value
`, name).Scan(&value)
	metrics.ObserveNetworkRequest("postgres", "counters_next", "counters", start, err)
	return value, storeErr("next sequence", err)
}

// RecordBusinessMetric stores a business event.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var adID, tvID sql.NullInt64
	if metric.AdID != nil {
		adID = sql.NullInt64{Int64: *metric.AdID, Valid: true}
	}
	if metric.TVID != nil {
		tvID = sql.NullInt64{Int64: *metric.TVID, Valid: true}
	}
	var payload []byte
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO business_metrics (event, ad_id, tv_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5)
`, metric.Event, adID, tvID, payload, metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return storeErr("record business metric", err)
}

const adColumns = `a.id, a.title, a.categories, a.advertiser_id, a.video_url, a.duration, a.is_active, a.created_at, a.updated_at`

func adDest(ad *domain.Ad) []any {
	return []any{&ad.ID, &ad.Title, &ad.Categories, &ad.AdvertiserID, &ad.VideoURL, &ad.Duration, &ad.IsActive, &ad.CreatedAt, &ad.UpdatedAt}
}

// CreateAd stores an ad under its pre-assigned id.
func (p *Postgres) CreateAd(ctx context.Context, ad domain.Ad) (domain.Ad, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if ad.Categories == nil {
		ad.Categories = []string{}
	}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO ads (id, title, categories, advertiser_id, video_url, duration, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at
`, ad.ID, ad.Title, ad.Categories, ad.AdvertiserID, ad.VideoURL, ad.Duration, ad.IsActive).Scan(&ad.CreatedAt, &ad.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "ads_insert", "ads", start, err)
	if isUniqueViolation(err, "") {
		return domain.Ad{}, domain.Conflict("id", "ad id already used")
	}
	return ad, storeErr("create ad", err)
}

// GetAd returns the ad by its sequential id.
func (p *Postgres) GetAd(ctx context.Context, id int64) (domain.Ad, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var ad domain.Ad
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT `+adColumns+` FROM ads a WHERE a.id=$1`, id).Scan(adDest(&ad)...)
	metrics.ObserveNetworkRequest("postgres", "ads_get", "ads", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ad{}, domain.NotFound("ad", id)
	}
	return ad, storeErr("get ad", err)
}

const tvColumns = `t.id, t.code, t.name, t.store_id, t.zone_id, t.city_id, t.state_id, t.country_id,
t.store_name, t.zone_name, t.city_name, t.state_name, t.country_name,
t.status, t.is_active, t.last_sync_time, t.last_synced_ad_id, t.created_at, t.updated_at`

// tvScan collects the nullable columns of a TV row.
type tvScan struct {
	tv       *domain.TV
	status   string
	lastSync sql.NullTime
	lastAd   sql.NullInt64
}

func (s *tvScan) dest() []any {
	tv := s.tv
	loc := &tv.Location
	return []any{
		&tv.ID, &tv.Code, &tv.Name, &loc.StoreID, &loc.ZoneID, &loc.CityID, &loc.StateID, &loc.CountryID,
		&loc.Store, &loc.Zone, &loc.City, &loc.State, &loc.Country,
		&s.status, &tv.IsActive, &s.lastSync, &s.lastAd, &tv.CreatedAt, &tv.UpdatedAt,
	}
}

func (s *tvScan) finish() {
	s.tv.Status = domain.TVStatus(s.status)
	if s.lastSync.Valid {
		ts := s.lastSync.Time
		s.tv.LastSyncTime = &ts
	}
	if s.lastAd.Valid {
		id := s.lastAd.Int64
		s.tv.LastSyncedAdID = &id
	}
}

// CreateTV stores a TV under its pre-assigned id.
func (p *Postgres) CreateTV(ctx context.Context, tv domain.TV) (domain.TV, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	loc := tv.Location
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO tvs (id, code, name, store_id, zone_id, city_id, state_id, country_id,
                 store_name, zone_name, city_name, state_name, country_name, status, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING created_at, updated_at
`, tv.ID, tv.Code, tv.Name, loc.StoreID, loc.ZoneID, loc.CityID, loc.StateID, loc.CountryID,
		loc.Store, loc.Zone, loc.City, loc.State, loc.Country, string(tv.Status), tv.IsActive).Scan(&tv.CreatedAt, &tv.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "tvs_insert", "tvs", start, err)
	if isUniqueViolation(err, "tvs_code_key") {
		return domain.TV{}, domain.Conflict("code", "device code "+tv.Code+" is already registered")
	}
	return tv, storeErr("create tv", err)
}

func (p *Postgres) getTV(ctx context.Context, op, where string, key any) (domain.TV, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var tv domain.TV
	s := tvScan{tv: &tv}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT `+tvColumns+` FROM tvs t WHERE `+where, key).Scan(s.dest()...)
	metrics.ObserveNetworkRequest("postgres", op, "tvs", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TV{}, domain.NotFound("tv", key)
	}
	if err != nil {
		return domain.TV{}, storeErr(op, err)
	}
	s.finish()
	return tv, nil
}

// GetTV returns the TV by its sequential id.
func (p *Postgres) GetTV(ctx context.Context, id int64) (domain.TV, error) {
	return p.getTV(ctx, "tvs_get", "t.id=$1", id)
}

// GetTVByCode returns the TV by its device code.
func (p *Postgres) GetTVByCode(ctx context.Context, code string) (domain.TV, error) {
	return p.getTV(ctx, "tvs_get_by_code", "t.code=$1", code)
}

// ListMonitoredTVs returns online, active TVs ordered by id.
func (p *Postgres) ListMonitoredTVs(ctx context.Context) ([]domain.TV, error) {
	return p.listTVs(ctx, "tvs_list_monitored", `t.status='online' AND t.is_active`)
}

// ListTVsInLocations returns active TVs in any of the selected locations.
func (p *Postgres) ListTVsInLocations(ctx context.Context, sel domain.LocationSelector) ([]domain.TV, error) {
	if sel.Empty() {
		return nil, nil
	}
	return p.listTVs(ctx, "tvs_list_in_locations", `t.is_active AND (
    t.store_id = ANY($1) OR t.zone_id = ANY($2) OR t.city_id = ANY($3)
    OR t.state_id = ANY($4) OR t.country_id = ANY($5))`,
		nonNil(sel.Stores), nonNil(sel.Zones), nonNil(sel.Cities), nonNil(sel.States), nonNil(sel.Countries))
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func (p *Postgres) listTVs(ctx context.Context, op, where string, args ...any) ([]domain.TV, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+tvColumns+` FROM tvs t WHERE `+where+` ORDER BY t.id`, args...)
	metrics.ObserveNetworkRequest("postgres", op, "tvs", start, err)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var tvs []domain.TV
	for rows.Next() {
		var tv domain.TV
		s := tvScan{tv: &tv}
		if err := rows.Scan(s.dest()...); err != nil {
			return nil, storeErr("scan tv", err)
		}
		s.finish()
		tvs = append(tvs, tv)
	}
	return tvs, storeErr(op, rows.Err())
}

// UpdateTVStatus changes the status of a TV.
func (p *Postgres) UpdateTVStatus(ctx context.Context, id int64, status domain.TVStatus) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE tvs SET status=$2, updated_at=now() WHERE id=$1`, id, string(status))
	metrics.ObserveNetworkRequest("postgres", "tvs_update_status", "tvs", start, err)
	if err != nil {
		return storeErr("update tv status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("tv", id)
	}
	return nil
}

// MarkSynced records the last playback report of a TV.
func (p *Postgres) MarkSynced(ctx context.Context, tvID, adID int64, at time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE tvs SET last_sync_time=$2, last_synced_ad_id=$3, updated_at=now()
WHERE id=$1
`, tvID, at, adID)
	metrics.ObserveNetworkRequest("postgres", "tvs_mark_synced", "tvs", start, err)
	return storeErr("mark tv synced", err)
}
