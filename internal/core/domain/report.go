package domain

import "time"

// ReportEvent is one row of the chronological overview.
type ReportEvent struct {
	Date   *time.Time
	Name   string
	Domain string
	Venue  string
	Time   string
}

// CountRow is one bucket of a distribution table.
type CountRow struct {
	Label string
	Count int
}

// AnnualReport is the assembled content of the yearly activity report.
// Section failures leave the section empty rather than failing the report.
type AnnualReport struct {
	Year     int
	Events   []ReportEvent
	Earliest *time.Time
	Latest   *time.Time
	Domains  []CountRow
	Venues   []CountRow
}

func (r AnnualReport) Total() int {
	return len(r.Events)
}
