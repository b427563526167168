package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "lexical"
)

// pointNamespace seeds deterministic point ids so re-indexing an event
// overwrites its points instead of duplicating them.
var pointNamespace = uuid.MustParse("6f1c2b7e-3f0a-4c5d-9e21-7a8b9c0d1e2f")

// Client mirrors events and chunks into a qdrant collection with a dense
// vector for semantic search and a sparse vector for keyword search.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  map[string]any `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func pointID(eventID string, chunkID int) string {
	return uuid.NewSHA1(pointNamespace, []byte(eventID+"#"+strconv.Itoa(chunkID))).String()
}

// UpsertEvent writes the whole-event passage (chunk id -1) and every chunk.
func (c *Client) UpsertEvent(ctx context.Context, event *domain.Event, chunks []domain.Chunk) error {
	if event == nil || len(event.Embedding) == 0 {
		return fmt.Errorf("qdrant upsert: event embedding is required")
	}
	if err := c.ensureCollection(ctx, len(event.Embedding)); err != nil {
		return err
	}

	points := make([]point, 0, len(chunks)+1)
	points = append(points, newPoint(event.EventID, -1, event.SearchText, event.Name, event.Embedding))
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("qdrant upsert: chunk %d of %s has no embedding", chunk.ChunkID, event.EventID)
		}
		points = append(points, newPoint(event.EventID, chunk.ChunkID, chunk.Text, event.Name, chunk.Embedding))
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	if err := c.doJSON(ctx, http.MethodPut, url, map[string]any{"points": points}, nil, "upsert"); err != nil {
		return err
	}
	return nil
}

func newPoint(eventID string, chunkID int, text, eventName string, dense []float32) point {
	return point{
		ID: pointID(eventID, chunkID),
		Vector: map[string]any{
			denseVectorName:  dense,
			sparseVectorName: encodeSparseDocument(text, eventName),
		},
		Payload: map[string]any{
			"event_id": eventID,
			"chunk_id": chunkID,
			"text":     text,
		},
	}
}

func (c *Client) VectorSearch(ctx context.Context, queryVector []float32, limit int) ([]domain.Passage, error) {
	return c.search(ctx, map[string]any{
		"name":   denseVectorName,
		"vector": queryVector,
	}, limit, domain.SourceVector)
}

func (c *Client) KeywordSearch(ctx context.Context, text string, limit int) ([]domain.Passage, error) {
	sparse := encodeSparseQuery(text)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}
	return c.search(ctx, map[string]any{
		"name":   sparseVectorName,
		"vector": sparse,
	}, limit, domain.SourceKeyword)
}

func (c *Client) search(ctx context.Context, vector map[string]any, limit int, source domain.PassageSource) ([]domain.Passage, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.doJSON(ctx, http.MethodPost, url, reqBody, &searchResp, "search"); err != nil {
		// The worker creates the collection on its first upsert; until then
		// the index is simply empty.
		var statusErr *statusError
		if errors.As(err, &statusErr) && statusErr.code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	out := make([]domain.Passage, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.Passage{
			EventID: getStringPayload(r.Payload, "event_id"),
			ChunkID: getIntPayload(r.Payload, "chunk_id"),
			Text:    getStringPayload(r.Payload, "text"),
			Source:  source,
			Score:   r.Score,
		})
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.doJSON(ctx, http.MethodPut, url, reqBody, nil, "ensure collection")
	var statusErr *statusError
	// 409 means the collection already exists.
	if err != nil && !(errors.As(err, &statusErr) && statusErr.code == http.StatusConflict) {
		return err
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{operation: operation, code: resp.StatusCode, status: resp.Status, body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}
