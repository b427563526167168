// Package xlsx exports the annual activity report as a spreadsheet.
package xlsx

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

const (
	summarySheet = "Summary"
	eventsSheet  = "Events"
	domainsSheet = "Domains"
	venuesSheet  = "Venues"
)

// WriteAnnualReport writes one workbook with a summary sheet followed by the
// chronological overview and the distribution tables.
func WriteAnnualReport(w io.Writer, report domain.AnnualReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	period := fmt.Sprintf("%d", report.Year)
	if report.Earliest != nil && report.Latest != nil {
		period = formatDate(report.Earliest) + " to " + formatDate(report.Latest)
	}
	summary := [][]any{
		{"Club Events Annual Activity Report", report.Year},
		{"Total Events", report.Total()},
		{"Period", period},
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return err
	}

	events := [][]any{{"Date", "Event", "Domain", "Venue", "Time"}}
	for _, ev := range report.Events {
		events = append(events, []any{formatDate(ev.Date), ev.Name, ev.Domain, ev.Venue, ev.Time})
	}
	if err := writeTable(f, eventsSheet, events, header); err != nil {
		return err
	}
	if err := writeTable(f, domainsSheet, countTable("Domain", report.Domains), header); err != nil {
		return err
	}
	if err := writeTable(f, venuesSheet, countTable("Venue", report.Venues), header); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func countTable(label string, rows []domain.CountRow) [][]any {
	out := [][]any{{label, "Count"}}
	for _, r := range rows {
		out = append(out, []any{r.Label, r.Count})
	}
	return out
}

func writeTable(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style header of %s: %w", sheet, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return domain.NotAvailable
	}
	return t.Format(time.DateOnly)
}
