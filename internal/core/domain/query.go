package domain

type QueryStatus string

const (
	QueryOK                    QueryStatus = "ok"
	QueryEmpty                 QueryStatus = "empty"
	QueryConnectionUnavailable QueryStatus = "connection_unavailable"
	QueryFailed                QueryStatus = "query_error"
)

// QueryResult is the tagged outcome of one relational statement. Detail
// carries driver text for logs only and must not reach end users.
type QueryResult struct {
	Status  QueryStatus `json:"status"`
	Columns []string    `json:"columns,omitempty"`
	Rows    [][]any     `json:"rows,omitempty"`
	Detail  string      `json:"-"`
}

func (r QueryResult) HasRows() bool {
	return r.Status == QueryOK && len(r.Rows) > 0
}

// Err converts failure statuses into typed errors; ok and empty yield nil.
func (r QueryResult) Err() error {
	switch r.Status {
	case QueryConnectionUnavailable:
		return ErrConnectionUnavailable
	case QueryFailed:
		return ErrQuery
	default:
		return nil
	}
}

type Dimension string

const (
	DimensionDomain Dimension = "domain"
	DimensionVenue  Dimension = "venue"
	DimensionMode   Dimension = "mode"
)
