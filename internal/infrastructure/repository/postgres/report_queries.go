package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

var eventYear = goqu.L("EXTRACT(YEAR FROM ?)", goqu.C("date"))

func dimensionColumn(dim domain.Dimension) (string, bool) {
	switch dim {
	case domain.DimensionDomain:
		return "domain", true
	case domain.DimensionVenue:
		return "venue", true
	case domain.DimensionMode:
		return "mode", true
	default:
		return "", false
	}
}

func (s *EventStore) EventsInYear(ctx context.Context, year int) domain.QueryResult {
	query, args, err := s.dialect.From("events").Prepared(true).
		Select("date", "name", "domain", "venue", "time").
		Where(eventYear.Eq(year)).
		Order(goqu.C("date").Asc(), goqu.C("name").Asc()).
		ToSQL()
	if err != nil {
		return buildFailure(err)
	}
	return s.ExecuteSQL(ctx, query, args...)
}

// CountByDimension groups one year's events by a whitelisted column, largest
// buckets first.
func (s *EventStore) CountByDimension(ctx context.Context, year int, dim domain.Dimension) domain.QueryResult {
	query, args, err := s.countQuery(dim, 0, eventYear.Eq(year))
	if err != nil {
		return buildFailure(err)
	}
	return s.ExecuteSQL(ctx, query, args...)
}

func (s *EventStore) RunStructured(ctx context.Context, q domain.StructuredQuery) domain.QueryResult {
	query, args, err := s.buildStructured(q)
	if err != nil {
		return buildFailure(err)
	}
	return s.ExecuteSQL(ctx, query, args...)
}

func (s *EventStore) buildStructured(q domain.StructuredQuery) (string, []any, error) {
	if !q.Normalize() {
		return "", nil, fmt.Errorf("unknown structured report %q", q.Report)
	}

	filters := structuredFilters(q)
	switch q.Report {
	case domain.ReportList:
		return s.dialect.From("events").Prepared(true).
			Select("date", "name", "domain", "venue", "mode").
			Where(filters...).
			Order(goqu.C("date").Asc().NullsLast(), goqu.C("name").Asc()).
			Limit(uint(q.Limit)).
			ToSQL()
	case domain.ReportCountByDomain:
		return s.countQuery(domain.DimensionDomain, q.Limit, filters...)
	case domain.ReportCountByVenue:
		return s.countQuery(domain.DimensionVenue, q.Limit, filters...)
	default:
		return s.countQuery(domain.DimensionMode, q.Limit, filters...)
	}
}

func structuredFilters(q domain.StructuredQuery) []exp.Expression {
	var filters []exp.Expression
	if q.Year != nil {
		filters = append(filters, eventYear.Eq(*q.Year))
	}
	if q.Domain != "" {
		filters = append(filters, goqu.C("domain").ILike(escapeLike(q.Domain)))
	}
	if q.Venue != "" {
		filters = append(filters, goqu.C("venue").ILike(escapeLike(q.Venue)))
	}
	if q.Mode != "" {
		filters = append(filters, goqu.C("mode").ILike(escapeLike(q.Mode)))
	}
	if q.NameContains != "" {
		filters = append(filters, goqu.C("name").ILike("%"+escapeLike(q.NameContains)+"%"))
	}
	return filters
}

func (s *EventStore) countQuery(dim domain.Dimension, limit int, where ...exp.Expression) (string, []any, error) {
	column, ok := dimensionColumn(dim)
	if !ok {
		return "", nil, fmt.Errorf("unknown dimension %q", dim)
	}
	ds := s.dialect.From("events").Prepared(true).
		Select(goqu.C(column), goqu.COUNT(goqu.Star()).As("count")).
		Where(where...).
		GroupBy(goqu.C(column)).
		Order(goqu.COUNT(goqu.Star()).Desc(), goqu.C(column).Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	return ds.ToSQL()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(v string) string {
	return likeEscaper.Replace(v)
}

func buildFailure(err error) domain.QueryResult {
	return domain.QueryResult{Status: domain.QueryFailed, Detail: "build query: " + err.Error()}
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.DateOnly)
	default:
		return fmt.Sprint(x)
	}
}

func toInt(v any) int {
	switch x := v.(type) {
	case int64:
		return int(x)
	case int32:
		return int(x)
	case int:
		return x
	case float64:
		return int(x)
	case string:
		n, _ := strconv.Atoi(x)
		return n
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	default:
		return 0
	}
}
