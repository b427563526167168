package domain

import (
	"errors"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// NotAvailable is stored for optional free-text fields left blank.
	NotAvailable = "N/A"

	maxEventIDRunes = 150
)

// Event is one club event row.
type Event struct {
	EventID             string     `json:"event_id"`
	Name                string     `json:"name"`
	Domain              string     `json:"domain"`
	Date                *time.Time `json:"date,omitempty"`
	Time                string     `json:"time"`
	FacultyCoordinators string     `json:"faculty_coordinators"`
	StudentCoordinators string     `json:"student_coordinators"`
	Venue               string     `json:"venue"`
	Mode                string     `json:"mode"`
	RegistrationFee     string     `json:"registration_fee"`
	Speakers            string     `json:"speakers"`
	Perks               string     `json:"perks"`
	Description         string     `json:"description"`
	SearchText          string     `json:"search_text"`
	Embedding           []float32  `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
}

// DisplayName falls back to the event id when no separate title was given.
func (e Event) DisplayName() string {
	if strings.TrimSpace(e.Name) != "" {
		return e.Name
	}
	return e.EventID
}

// Chunk is a retrieval-sized slice of an event description.
type Chunk struct {
	EventID   string    `json:"event_id"`
	ChunkID   int       `json:"chunk_id"`
	Text      string    `json:"text_chunk"`
	Embedding []float32 `json:"-"`
}

// BuildSearchText derives the embedded text of an event. It must stay a pure
// function of the stored fields: the stored embedding is computed from it.
func BuildSearchText(e Event) string {
	var b strings.Builder
	b.WriteString("Event: ")
	b.WriteString(e.DisplayName())
	b.WriteString("\nDomain: ")
	b.WriteString(e.Domain)
	b.WriteString("\nDescription: ")
	b.WriteString(strings.TrimSpace(e.Description))
	b.WriteString("\nPerks: ")
	b.WriteString(e.Perks)
	return b.String()
}

// EventForm is the raw submission produced by the ingestion collaborator.
type EventForm struct {
	EventID             string `json:"event_id"`
	Title               string `json:"title"`
	Domain              string `json:"domain"`
	Date                string `json:"date"`
	Time                string `json:"time"`
	FacultyCoordinators string `json:"faculty_coordinators"`
	StudentCoordinators string `json:"student_coordinators"`
	Venue               string `json:"venue"`
	Mode                string `json:"mode"`
	RegistrationFee     string `json:"registration_fee"`
	Speakers            string `json:"speakers"`
	Perks               string `json:"perks"`
	Description         string `json:"description"`
}

// Validate rejects forms missing the description or both id and title.
func (f EventForm) Validate() error {
	if strings.TrimSpace(f.Description) == "" {
		return WrapError(ErrValidation, "validate event form", errors.New("description is required"))
	}
	return f.ValidateIdentity()
}

// ValidateIdentity checks everything but the description, which a brochure
// may still supply.
func (f EventForm) ValidateIdentity() error {
	if strings.TrimSpace(f.EventID) == "" && strings.TrimSpace(f.Title) == "" {
		return WrapError(ErrValidation, "validate event form", errors.New("event id or title is required"))
	}
	if strings.TrimSpace(f.Date) != "" {
		if _, err := time.Parse(time.DateOnly, strings.TrimSpace(f.Date)); err != nil {
			return WrapError(ErrValidation, "validate event form", errors.New("date must be YYYY-MM-DD"))
		}
	}
	return nil
}

// ToEvent normalizes a validated form into an Event without search text or
// embedding.
func (f EventForm) ToEvent() Event {
	title := strings.TrimSpace(f.Title)
	id := strings.TrimSpace(f.EventID)
	if id == "" {
		id = title
	}
	name := title
	if name == "" {
		name = id
	}

	ev := Event{
		EventID:             NormalizeEventID(id),
		Name:                name,
		Domain:              strings.TrimSpace(f.Domain),
		Time:                orNotAvailable(f.Time),
		FacultyCoordinators: orNotAvailable(f.FacultyCoordinators),
		StudentCoordinators: orNotAvailable(f.StudentCoordinators),
		Venue:               orNotAvailable(f.Venue),
		Mode:                orNotAvailable(f.Mode),
		RegistrationFee:     strings.TrimSpace(f.RegistrationFee),
		Speakers:            orNotAvailable(f.Speakers),
		Perks:               strings.TrimSpace(f.Perks),
		Description:         strings.TrimSpace(f.Description),
	}
	if ev.RegistrationFee == "" {
		ev.RegistrationFee = "0"
	}
	if d, err := time.Parse(time.DateOnly, strings.TrimSpace(f.Date)); err == nil {
		ev.Date = &d
	}
	return ev
}

// NormalizeEventID replaces spaces with underscores and caps the length.
func NormalizeEventID(raw string) string {
	id := strings.ReplaceAll(strings.TrimSpace(raw), " ", "_")
	if utf8.RuneCountInString(id) > maxEventIDRunes {
		id = string([]rune(id)[:maxEventIDRunes])
	}
	return id
}

func orNotAvailable(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return NotAvailable
	}
	return v
}

type IngestStatus string

const (
	IngestSuccess IngestStatus = "success"
	IngestBusy    IngestStatus = "busy"
	IngestError   IngestStatus = "error"
)

// IngestResult is the outcome of one ingestion attempt. Busy is not an error.
type IngestResult struct {
	Status  IngestStatus `json:"status"`
	Message string       `json:"message"`
	EventID string       `json:"event_id,omitempty"`
	// Invalid marks an error caused by the submitted form itself.
	Invalid bool `json:"-"`
}

// Brochure is an optional file submitted with an event form.
type Brochure struct {
	Filename string
	MimeType string
	Body     io.Reader
}
