package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
	"github.com/kirillkom/club-events-assistant/internal/core/ports"
)

// ReportService assembles deterministic reports from the relational store.
type ReportService struct {
	queries ports.ReportQueries
	logger  *slog.Logger
}

func NewReportService(queries ports.ReportQueries, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{queries: queries, logger: logger}
}

// AnnualReport fails only when the event list itself cannot be read. The
// distribution sections degrade to empty on their own failures.
func (s *ReportService) AnnualReport(ctx context.Context, year int) (domain.AnnualReport, error) {
	report := domain.AnnualReport{Year: year}

	res := s.queries.EventsInYear(ctx, year)
	if err := res.Err(); err != nil {
		s.logger.Error("report_events_failed", "year", year, "status", string(res.Status), "detail", res.Detail)
		return report, domain.WrapError(err, "load events for year", fmt.Errorf("status %s", res.Status))
	}
	if !res.HasRows() {
		return report, nil
	}

	for _, row := range res.Rows {
		if len(row) < 5 {
			continue
		}
		ev := domain.ReportEvent{
			Date:   asTime(row[0]),
			Name:   asString(row[1]),
			Domain: asString(row[2]),
			Venue:  asString(row[3]),
			Time:   asString(row[4]),
		}
		report.Events = append(report.Events, ev)
		if ev.Date == nil {
			continue
		}
		if report.Earliest == nil || ev.Date.Before(*report.Earliest) {
			report.Earliest = ev.Date
		}
		if report.Latest == nil || ev.Date.After(*report.Latest) {
			report.Latest = ev.Date
		}
	}

	report.Domains = s.countRows(ctx, year, domain.DimensionDomain)
	report.Venues = s.countRows(ctx, year, domain.DimensionVenue)
	return report, nil
}

func (s *ReportService) countRows(ctx context.Context, year int, dim domain.Dimension) []domain.CountRow {
	res := s.queries.CountByDimension(ctx, year, dim)
	if err := res.Err(); err != nil {
		s.logger.Warn("report_section_failed", "year", year, "dimension", string(dim), "status", string(res.Status), "detail", res.Detail)
		return nil
	}
	return toCountRows(res)
}

func toCountRows(res domain.QueryResult) []domain.CountRow {
	if !res.HasRows() {
		return nil
	}
	out := make([]domain.CountRow, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) < 2 {
			continue
		}
		out = append(out, domain.CountRow{Label: asString(row[0]), Count: asInt(row[1])})
	}
	return out
}

// RenderAnnualReport renders the markdown report shown to users.
func RenderAnnualReport(r domain.AnnualReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# CLUB EVENTS ANNUAL ACTIVITY REPORT (%d)\n\n", r.Year)

	b.WriteString("## 0. Executive Summary\n\n")
	fmt.Fprintf(&b, "Total Events: %d\n", r.Total())
	if r.Earliest != nil && r.Latest != nil {
		fmt.Fprintf(&b, "Period: %s to %s\n\n", r.Earliest.Format(time.DateOnly), r.Latest.Format(time.DateOnly))
	} else {
		fmt.Fprintf(&b, "Period: %d\n\n", r.Year)
	}

	if r.Total() == 0 {
		fmt.Fprintf(&b, "No events found for %d.\n", r.Year)
		return b.String()
	}

	b.WriteString("## 1. Chronological Event Overview\n\n")
	rows := make([][]string, 0, len(r.Events))
	for _, ev := range r.Events {
		rows = append(rows, []string{formatDate(ev.Date), ev.Name, ev.Domain, ev.Venue, ev.Time})
	}
	writeTable(&b, []string{"Date", "Event", "Domain", "Venue", "Time"}, rows)
	b.WriteString("\n")

	writeCountSection(&b, "## 2. Domain Distribution", "Domain", r.Domains)
	writeCountSection(&b, "## 3. Venue Breakdown", "Venue", r.Venues)
	return b.String()
}

func writeCountSection(b *strings.Builder, title, label string, rows []domain.CountRow) {
	b.WriteString(title + "\n\n")
	if len(rows) == 0 {
		writeTable(b, []string{label, "Count"}, [][]string{{"", "0"}})
	} else {
		writeTable(b, []string{label, "Count"}, countCells(rows))
	}
	b.WriteString("\n")
}

func renderAnalytics(year int, rows []domain.CountRow) string {
	if len(rows) == 0 {
		return fmt.Sprintf("No events found for %d.", year)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Analytics for %d:\n\n", year)
	writeTable(&b, []string{"Domain", "Count"}, countCells(rows))
	return b.String()
}

func renderTable(res domain.QueryResult) string {
	rows := make([][]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if t := asTime(v); t != nil {
				cells[i] = t.Format(time.DateOnly)
				continue
			}
			cells[i] = asString(v)
		}
		rows = append(rows, cells)
	}
	var b strings.Builder
	writeTable(&b, res.Columns, rows)
	return b.String()
}

func countCells(rows []domain.CountRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, []string{row.Label, strconv.Itoa(row.Count)})
	}
	return out
}

// writeTable renders a GitHub-flavoured markdown table. Every header and
// cell goes through cell, and short rows are padded so the column count
// never drifts from the header.
func writeTable(b *strings.Builder, header []string, rows [][]string) {
	b.WriteString("|")
	for _, h := range header {
		b.WriteString(" " + cell(h) + " |")
	}
	b.WriteString("\n|")
	for _, h := range header {
		b.WriteString(strings.Repeat("-", utf8.RuneCountInString(cell(h))+2) + "|")
	}
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString("|")
		for i := range header {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			b.WriteString(" " + cell(v) + " |")
		}
		b.WriteString("\n")
	}
}

// cell keeps a value on one table row. Pipes are escaped so they render
// literally instead of splitting the column.
func cell(v string) string {
	v = strings.Join(strings.Fields(v), " ")
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, "|", `\|`)
	if v == "" {
		return domain.NotAvailable
	}
	return v
}

func formatDate(t *time.Time) string {
	if t == nil {
		return domain.NotAvailable
	}
	return t.Format(time.DateOnly)
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.DateOnly)
	case *time.Time:
		if x == nil {
			return ""
		}
		return x.Format(time.DateOnly)
	default:
		return fmt.Sprint(x)
	}
}

func asTime(v any) *time.Time {
	switch x := v.(type) {
	case time.Time:
		return &x
	case *time.Time:
		return x
	default:
		return nil
	}
}

func asInt(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float64:
		return int(x)
	case []byte:
		n, _ := strconv.Atoi(string(x))
		return n
	case string:
		n, _ := strconv.Atoi(x)
		return n
	default:
		return 0
	}
}
