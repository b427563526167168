package xlsx

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

func TestWriteAnnualReportSheets(t *testing.T) {
	d1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	report := domain.AnnualReport{
		Year: 2024,
		Events: []domain.ReportEvent{
			{Date: &d1, Name: "Robotics Workshop", Domain: "Engineering", Venue: "Hall A", Time: "10:00"},
			{Date: &d2, Name: "Poetry Night", Domain: "Literature", Venue: "Lab", Time: "18:00"},
		},
		Earliest: &d1,
		Latest:   &d2,
		Domains:  []domain.CountRow{{Label: "Engineering", Count: 1}, {Label: "Literature", Count: 1}},
	}

	var buf bytes.Buffer
	if err := WriteAnnualReport(&buf, report); err != nil {
		t.Fatalf("WriteAnnualReport() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(eventsSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 || rows[1][1] != "Robotics Workshop" || rows[1][0] != "2024-02-01" {
		t.Fatalf("unexpected events sheet %v", rows)
	}

	period, err := f.GetCellValue(summarySheet, "B3")
	if err != nil || period != "2024-02-01 to 2024-09-01" {
		t.Fatalf("unexpected period %q, %v", period, err)
	}

	venues, err := f.GetRows(venuesSheet)
	if err != nil || len(venues) != 1 {
		t.Fatalf("expected header-only venues sheet, got %v, %v", venues, err)
	}
}
