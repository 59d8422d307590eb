package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"signage-analytics/internal/domain"
	"signage-analytics/internal/infra/validation"
	"signage-analytics/internal/usecase/reports"
	"signage-analytics/internal/usecase/window"
)

// decode reads a JSON body into v and validates it.
func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Invalid("body", "invalid request body")
	}
	return validation.Struct(v)
}

// query wraps url.Values with typed getters. The first parse failure is kept
// in err and later getters become no-ops.
type query struct {
	values url.Values
	loc    *time.Location
	err    error
}

func newQuery(r *http.Request, loc *time.Location) *query {
	return &query{values: r.URL.Query(), loc: loc}
}

func (q *query) str(name string) string {
	return strings.TrimSpace(q.values.Get(name))
}

func (q *query) int64(name string) int64 {
	raw := q.str(name)
	if raw == "" || q.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		q.err = domain.Invalid(name, "must be a non-negative integer")
		return 0
	}
	return n
}

func (q *query) int(name string, def int) int {
	raw := q.str(name)
	if raw == "" || q.err != nil {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.err = domain.Invalid(name, "must be an integer")
		return def
	}
	return n
}

// ids parses a comma-separated list of positive ids.
func (q *query) ids(name string) []int64 {
	raw := q.str(name)
	if raw == "" || q.err != nil {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || n <= 0 {
			q.err = domain.Invalid(name, "must be a comma-separated list of positive ids")
			return nil
		}
		out = append(out, n)
	}
	return out
}

// flag parses an optional boolean; missing means def.
func (q *query) flag(name string, def bool) bool {
	raw := q.str(name)
	if raw == "" || q.err != nil {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.err = domain.Invalid(name, "must be true or false")
		return def
	}
	return b
}

// optionalBool returns nil when the parameter is absent.
func (q *query) optionalBool(name string) *bool {
	if q.str(name) == "" {
		return nil
	}
	b := q.flag(name, false)
	if q.err != nil {
		return nil
	}
	return &b
}

// limit reads the page size: "all" or 0 returns everything, missing means the default.
func (q *query) limit() int {
	raw := q.str("limit")
	switch {
	case raw == "":
		return reports.DefaultLimit
	case strings.EqualFold(raw, "all"):
		return 0
	}
	n := q.int("limit", reports.DefaultLimit)
	if n < 0 {
		q.err = domain.Invalid("limit", "must not be negative")
	}
	return n
}

// date parses YYYY-MM-DD in the operating zone or an RFC 3339 instant.
// Bare dates resolve to the start of the day, or its end when endOfDay is set.
func (q *query) date(name string, endOfDay bool) *time.Time {
	raw := q.str(name)
	if raw == "" || q.err != nil {
		return nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, q.loc); err == nil {
		if endOfDay {
			t = window.EndOfDay(t, q.loc)
		}
		return &t
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		q.err = domain.Invalid(name, "must be YYYY-MM-DD or an RFC 3339 timestamp")
		return nil
	}
	return &t
}

// period reads the period selection; the default period is "daily".
func (q *query) period() window.Request {
	p := window.Period(q.str("period"))
	if p == "" {
		p = window.PeriodDaily
	}
	return window.Request{
		Period:       p,
		StartDate:    q.date("startDate", false),
		EndDate:      q.date("endDate", true),
		SpecificDate: q.date("specificDate", false),
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Invalid("id", "must be a positive integer")
	}
	return id, nil
}
