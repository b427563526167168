package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

const schemaLockID int64 = 2026101601

// EventStore keeps events and chunks in PostgreSQL with pgvector. Each
// operation checks out its own connection from the pool and returns it on
// every exit path.
type EventStore struct {
	db      *sql.DB
	timeout time.Duration
	dialect goqu.DialectWrapper
}

func NewEventStore(db *sql.DB, timeout time.Duration) *EventStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EventStore{
		db:      db,
		timeout: timeout,
		dialect: goqu.Dialect("postgres"),
	}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *EventStore) EnsureSchema(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("ensure schema: embedding dimensions must be positive, got %d", dimensions)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	query := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS events (
	event_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	domain TEXT NOT NULL DEFAULT '',
	date DATE,
	time TEXT,
	faculty_coordinators TEXT,
	student_coordinators TEXT,
	venue TEXT,
	mode TEXT,
	registration_fee TEXT NOT NULL DEFAULT '0',
	speakers TEXT,
	perks TEXT,
	description TEXT NOT NULL,
	search_text TEXT NOT NULL,
	embedding vector(%[1]d),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chunks (
	event_id TEXT NOT NULL REFERENCES events(event_id) ON DELETE CASCADE,
	chunk_id INTEGER NOT NULL,
	text_chunk TEXT NOT NULL,
	embedding vector(%[1]d),
	PRIMARY KEY (event_id, chunk_id)
);

CREATE INDEX IF NOT EXISTS idx_events_date ON events(date);
CREATE INDEX IF NOT EXISTS idx_events_search_tsv ON events USING GIN (to_tsvector('english', search_text));
CREATE INDEX IF NOT EXISTS idx_chunks_text_tsv ON chunks USING GIN (to_tsvector('english', text_chunk));
CREATE INDEX IF NOT EXISTS idx_events_embedding ON events USING hnsw (embedding vector_cosine_ops);
CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops);
`, dimensions)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// ExecuteSQL runs one statement and reports the outcome as a tagged result.
// It never returns a Go error.
func (s *EventStore) ExecuteSQL(ctx context.Context, query string, args ...any) domain.QueryResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return domain.QueryResult{Status: domain.QueryConnectionUnavailable, Detail: err.Error()}
	}
	defer func() {
		_ = conn.Close()
	}()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.QueryResult{Status: classifyError(err), Detail: err.Error()}
	}
	defer func() {
		_ = rows.Close()
	}()

	columns, err := rows.Columns()
	if err != nil {
		return domain.QueryResult{Status: classifyError(err), Detail: err.Error()}
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return domain.QueryResult{Status: classifyError(err), Columns: columns, Detail: err.Error()}
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return domain.QueryResult{Status: classifyError(err), Columns: columns, Detail: err.Error()}
	}

	if len(out) == 0 {
		return domain.QueryResult{Status: domain.QueryEmpty, Columns: columns}
	}
	return domain.QueryResult{Status: domain.QueryOK, Columns: columns, Rows: out}
}

const vectorSearchQuery = `
SELECT event_id, chunk_id, text, distance FROM (
	SELECT event_id, -1 AS chunk_id, search_text AS text, embedding <=> $1 AS distance
	FROM events WHERE embedding IS NOT NULL
	UNION ALL
	SELECT event_id, chunk_id, text_chunk AS text, embedding <=> $1 AS distance
	FROM chunks WHERE embedding IS NOT NULL
) candidates
ORDER BY distance ASC
LIMIT $2
`

const keywordSearchQuery = `
SELECT event_id, chunk_id, text, rank FROM (
	SELECT event_id, -1 AS chunk_id, search_text AS text,
		ts_rank(to_tsvector('english', search_text), websearch_to_tsquery('english', $1)) AS rank
	FROM events
	WHERE to_tsvector('english', search_text) @@ websearch_to_tsquery('english', $1)
	UNION ALL
	SELECT event_id, chunk_id, text_chunk AS text,
		ts_rank(to_tsvector('english', text_chunk), websearch_to_tsquery('english', $1)) AS rank
	FROM chunks
	WHERE to_tsvector('english', text_chunk) @@ websearch_to_tsquery('english', $1)
) candidates
ORDER BY rank DESC
LIMIT $2
`

// VectorSearch orders passages by ascending cosine distance.
func (s *EventStore) VectorSearch(ctx context.Context, vector []float32, limit int) ([]domain.Passage, error) {
	if len(vector) == 0 {
		return nil, domain.WrapError(domain.ErrQuery, "vector search", errors.New("empty query vector"))
	}
	res := s.ExecuteSQL(ctx, vectorSearchQuery, pgvector.NewVector(vector), limit)
	return passagesFromResult("vector search", res, domain.SourceVector)
}

// KeywordSearch orders passages by descending full-text rank.
func (s *EventStore) KeywordSearch(ctx context.Context, text string, limit int) ([]domain.Passage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	res := s.ExecuteSQL(ctx, keywordSearchQuery, text, limit)
	return passagesFromResult("keyword search", res, domain.SourceKeyword)
}

func passagesFromResult(op string, res domain.QueryResult, source domain.PassageSource) ([]domain.Passage, error) {
	if err := res.Err(); err != nil {
		return nil, domain.WrapError(err, op, errors.New(res.Detail))
	}
	out := make([]domain.Passage, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) < 4 {
			continue
		}
		out = append(out, domain.Passage{
			EventID: toString(row[0]),
			ChunkID: toInt(row[1]),
			Text:    toString(row[2]),
			Score:   toFloat(row[3]),
			Source:  source,
		})
	}
	return out, nil
}

// InsertEvent writes the event and its chunks in one transaction.
func (s *EventStore) InsertEvent(ctx context.Context, event *domain.Event, chunks []domain.Chunk) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	var date any
	if event.Date != nil {
		date = *event.Date
	}

	eventSQL, eventArgs, err := s.dialect.Insert("events").Prepared(true).Rows(goqu.Record{
		"event_id":             event.EventID,
		"name":                 event.Name,
		"domain":               event.Domain,
		"date":                 date,
		"time":                 event.Time,
		"faculty_coordinators": event.FacultyCoordinators,
		"student_coordinators": event.StudentCoordinators,
		"venue":                event.Venue,
		"mode":                 event.Mode,
		"registration_fee":     event.RegistrationFee,
		"speakers":             event.Speakers,
		"perks":                event.Perks,
		"description":          event.Description,
		"search_text":          event.SearchText,
		"embedding":            pgvector.NewVector(event.Embedding),
		"created_at":           event.CreatedAt,
	}).ToSQL()
	if err != nil {
		return domain.WrapError(domain.ErrQuery, "build insert event", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStoreError("begin insert event tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, eventSQL, eventArgs...); err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrValidation, "insert event", errors.New("event already exists"))
		}
		return wrapStoreError("insert event", err)
	}

	if len(chunks) > 0 {
		rows := make([]any, 0, len(chunks))
		for _, c := range chunks {
			rows = append(rows, goqu.Record{
				"event_id":   event.EventID,
				"chunk_id":   c.ChunkID,
				"text_chunk": c.Text,
				"embedding":  pgvector.NewVector(c.Embedding),
			})
		}
		chunkSQL, chunkArgs, err := s.dialect.Insert("chunks").Prepared(true).Rows(rows...).ToSQL()
		if err != nil {
			return domain.WrapError(domain.ErrQuery, "build insert chunks", err)
		}
		if _, err := tx.ExecContext(ctx, chunkSQL, chunkArgs...); err != nil {
			return wrapStoreError("insert chunks", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreError("commit insert event", err)
	}
	return nil
}

func (s *EventStore) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
SELECT event_id, name, domain, date, COALESCE(time, ''), COALESCE(faculty_coordinators, ''),
	COALESCE(student_coordinators, ''), COALESCE(venue, ''), COALESCE(mode, ''), registration_fee,
	COALESCE(speakers, ''), COALESCE(perks, ''), description, search_text, embedding::text, created_at
FROM events
WHERE event_id = $1
`, eventID)

	var (
		ev        domain.Event
		date      sql.NullTime
		embedding sql.NullString
	)
	err := row.Scan(
		&ev.EventID, &ev.Name, &ev.Domain, &date, &ev.Time, &ev.FacultyCoordinators,
		&ev.StudentCoordinators, &ev.Venue, &ev.Mode, &ev.RegistrationFee,
		&ev.Speakers, &ev.Perks, &ev.Description, &ev.SearchText, &embedding, &ev.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrEventNotFound, "get event", fmt.Errorf("event_id=%s", eventID))
		}
		return nil, wrapStoreError("scan event", err)
	}

	if date.Valid {
		d := date.Time
		ev.Date = &d
	}
	if ev.Embedding, err = parseVector(embedding); err != nil {
		return nil, domain.WrapError(domain.ErrQuery, "parse event embedding", err)
	}
	return &ev, nil
}

func (s *EventStore) ListChunks(ctx context.Context, eventID string) ([]domain.Chunk, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, chunk_id, text_chunk, embedding::text
FROM chunks
WHERE event_id = $1
ORDER BY chunk_id
`, eventID)
	if err != nil {
		return nil, wrapStoreError("list chunks", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []domain.Chunk
	for rows.Next() {
		var (
			c         domain.Chunk
			embedding sql.NullString
		)
		if err := rows.Scan(&c.EventID, &c.ChunkID, &c.Text, &embedding); err != nil {
			return nil, wrapStoreError("scan chunk", err)
		}
		if c.Embedding, err = parseVector(embedding); err != nil {
			return nil, domain.WrapError(domain.ErrQuery, "parse chunk embedding", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("iterate chunks", err)
	}
	return out, nil
}

func parseVector(raw sql.NullString) ([]float32, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var v pgvector.Vector
	if err := v.Scan(raw.String); err != nil {
		return nil, err
	}
	return v.Slice(), nil
}
