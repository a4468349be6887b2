package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// QdrantConfig holds settings for the Qdrant REST client.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimensions int
	Timeout    time.Duration
}

// QdrantStore is a minimal REST client to Qdrant. It assumes cosine distance.
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	dimensions int
	client     *http.Client
}

// NewQdrantStore creates a Qdrant-backed store. The collection is created
// lazily via CreateCollection.
func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:6333"
	}
	if cfg.Collection == "" {
		cfg.Collection = "document_chunks"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &QdrantStore{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

// CreateCollection creates the collection if missing. Qdrant returns 200 for
// an existing collection with the same schema.
func (s *QdrantStore) CreateCollection(ctx context.Context) error {
	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     s.dimensions,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
}

// DeleteCollection drops the collection and all its points.
func (s *QdrantStore) DeleteCollection(ctx context.Context) error {
	return s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
}

// Upsert writes points and waits for the operation to be applied.
func (s *QdrantStore) Upsert(ctx context.Context, points []*Point) error {
	if len(points) == 0 {
		return nil
	}
	ps := make([]map[string]interface{}, len(points))
	for i, p := range points {
		if len(p.Vector) != s.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(p.Vector), s.dimensions)
		}
		ps[i] = map[string]interface{}{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}
	return s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]interface{}{"points": ps}, nil)
}

// Search runs nearest-neighbor search with an optional payload filter.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]*ScoredPoint, error) {
	req := map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if f := encodeFilter(filter); f != nil {
		req["filter"] = f
	}
	var resp struct {
		Result []struct {
			ID      string                 `json:"id"`
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	out := make([]*ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, &ScoredPoint{
			Point: Point{ID: r.ID, Payload: r.Payload},
			Score: r.Score,
		})
	}
	return out, nil
}

// Retrieve fetches a single point with its vector, or (nil, nil) when absent.
func (s *QdrantStore) Retrieve(ctx context.Context, id string) (*Point, error) {
	req := map[string]interface{}{
		"ids":          []string{id},
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []struct {
			ID      string                 `json:"id"`
			Vector  []float32              `json:"vector"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points"), req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, nil
	}
	r := resp.Result[0]
	return &Point{ID: r.ID, Vector: r.Vector, Payload: r.Payload}, nil
}

// Scroll pages through the collection; the cursor is Qdrant's next_page_offset
// (a point ID for string-keyed collections).
func (s *QdrantStore) Scroll(ctx context.Context, limit int, cursor string) ([]*Point, string, error) {
	req := map[string]interface{}{
		"limit":        limit,
		"with_payload": true,
	}
	if cursor != "" {
		req["offset"] = cursor
	}
	var resp struct {
		Result struct {
			Points []struct {
				ID      string                 `json:"id"`
				Payload map[string]interface{} `json:"payload"`
			} `json:"points"`
			NextPageOffset *string `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/scroll"), req, &resp); err != nil {
		return nil, "", err
	}
	out := make([]*Point, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		out = append(out, &Point{ID: p.ID, Payload: p.Payload})
	}
	next := ""
	if resp.Result.NextPageOffset != nil {
		next = *resp.Result.NextPageOffset
	}
	return out, next, nil
}

// Count returns the exact number of points matching the filter.
func (s *QdrantStore) Count(ctx context.Context, filter *Filter) (int64, error) {
	req := map[string]interface{}{"exact": true}
	if f := encodeFilter(filter); f != nil {
		req["filter"] = f
	}
	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), req, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Dimensions returns the configured vector dimension.
func (s *QdrantStore) Dimensions() int {
	return s.dimensions
}

// Distance returns the similarity metric name.
func (s *QdrantStore) Distance() string {
	return "Cosine"
}

// Close is a no-op; the HTTP client holds no persistent connection state.
func (s *QdrantStore) Close() error {
	return nil
}

func (s *QdrantStore) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

// encodeFilter converts a Filter to Qdrant's JSON filter format.
func encodeFilter(f *Filter) map[string]interface{} {
	if f == nil || len(f.Must) == 0 {
		return nil
	}
	must := make([]map[string]interface{}, 0, len(f.Must))
	for _, cond := range f.Must {
		var match map[string]interface{}
		if cond.AnyOf != nil {
			match = map[string]interface{}{"any": cond.AnyOf}
		} else {
			match = map[string]interface{}{"value": cond.Equals}
		}
		must = append(must, map[string]interface{}{"key": cond.Key, "match": match})
	}
	return map[string]interface{}{"must": must}
}

func (s *QdrantStore) do(ctx context.Context, method, url string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
