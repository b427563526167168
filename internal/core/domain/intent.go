package domain

type IntentKind string

const (
	IntentMulti      IntentKind = "MULTI"
	IntentSingle     IntentKind = "SINGLE"
	IntentAnalytics  IntentKind = "ANALYTICS"
	IntentFilter     IntentKind = "FILTER"
	IntentDescribe   IntentKind = "DESCRIBE"
	IntentRecommend  IntentKind = "RECOMMEND"
	IntentStructured IntentKind = "STRUCTURED"
	IntentSemantic   IntentKind = "SEMANTIC"
)

// UsesReport reports whether the intent is answered from relational rows
// rather than retrieved passages.
func (k IntentKind) UsesReport() bool {
	switch k {
	case IntentMulti, IntentAnalytics, IntentStructured:
		return true
	default:
		return false
	}
}

type Attribute string

const (
	AttrName    Attribute = "name"
	AttrDomain  Attribute = "domain"
	AttrDate    Attribute = "date"
	AttrTime    Attribute = "time"
	AttrVenue   Attribute = "venue"
	AttrDetails Attribute = "details"
	AttrAll     Attribute = "all"
)

func ParseAttribute(raw string) (Attribute, bool) {
	switch a := Attribute(raw); a {
	case AttrName, AttrDomain, AttrDate, AttrTime, AttrVenue, AttrDetails, AttrAll:
		return a, true
	default:
		return "", false
	}
}

// ParsedIntent is produced once per question by the router.
type ParsedIntent struct {
	Kind         IntentKind       `json:"kind"`
	Year         int              `json:"year"`
	YearExplicit bool             `json:"year_explicit"`
	Attributes   []Attribute      `json:"attributes,omitempty"`
	Structured   *StructuredQuery `json:"structured,omitempty"`
	SearchText   string           `json:"search_text,omitempty"`
}

// WantsAll is true when no specific attribute subset was requested.
func (p ParsedIntent) WantsAll() bool {
	if len(p.Attributes) == 0 {
		return true
	}
	for _, a := range p.Attributes {
		if a == AttrAll {
			return true
		}
	}
	return false
}

type StructuredReport string

const (
	ReportList          StructuredReport = "list"
	ReportCountByDomain StructuredReport = "count_by_domain"
	ReportCountByVenue  StructuredReport = "count_by_venue"
	ReportCountByMode   StructuredReport = "count_by_mode"
)

const (
	DefaultStructuredLimit = 50
	MaxStructuredLimit     = 100
)

// StructuredQuery replaces oracle-written SQL: the oracle may only choose a
// report shape and filter values, which the store binds as parameters.
type StructuredQuery struct {
	Report       StructuredReport `json:"report"`
	Year         *int             `json:"year,omitempty"`
	Domain       string           `json:"domain,omitempty"`
	Venue        string           `json:"venue,omitempty"`
	Mode         string           `json:"mode,omitempty"`
	NameContains string           `json:"name_contains,omitempty"`
	Limit        int              `json:"limit,omitempty"`
}

// Normalize clamps the limit and reports whether the report shape is known.
func (q *StructuredQuery) Normalize() bool {
	switch q.Report {
	case ReportList, ReportCountByDomain, ReportCountByVenue, ReportCountByMode:
	default:
		return false
	}
	if q.Limit <= 0 {
		q.Limit = DefaultStructuredLimit
	}
	if q.Limit > MaxStructuredLimit {
		q.Limit = MaxStructuredLimit
	}
	return true
}
