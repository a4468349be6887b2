package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory vector store using brute-force cosine search.
// Suitable for tests and small corpora when no Qdrant server is available.
type MemoryStore struct {
	dimensions int
	ids        []string // insertion order, drives Scroll
	points     map[string]*Point
	mu         sync.RWMutex
}

// NewMemoryStore creates an in-memory store with the given dimension.
func NewMemoryStore(dimensions int) (*MemoryStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryStore{
		dimensions: dimensions,
		points:     make(map[string]*Point),
	}, nil
}

// CreateCollection is a no-op beyond resetting nothing; the store is its collection.
func (m *MemoryStore) CreateCollection(ctx context.Context) error {
	return nil
}

// DeleteCollection drops all points.
func (m *MemoryStore) DeleteCollection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = nil
	m.points = make(map[string]*Point)
	return nil
}

// Upsert stores points, replacing any with the same ID.
func (m *MemoryStore) Upsert(ctx context.Context, points []*Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		if len(p.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(p.Vector), m.dimensions)
		}
		cp := &Point{
			ID:      p.ID,
			Vector:  append([]float32(nil), p.Vector...),
			Payload: p.Payload,
		}
		if _, exists := m.points[p.ID]; !exists {
			m.ids = append(m.ids, p.ID)
		}
		m.points[p.ID] = cp
	}
	return nil
}

// Search returns the top-limit points by inner product (cosine similarity for
// normalized vectors), optionally filtered by payload.
func (m *MemoryStore) Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]*ScoredPoint, error) {
	if len(vector) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vector), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	scored := make([]*ScoredPoint, 0, len(m.ids))
	for _, id := range m.ids {
		p := m.points[id]
		if !filter.matches(p.Payload) {
			continue
		}
		var dot float64
		for i := 0; i < m.dimensions; i++ {
			dot += float64(vector[i] * p.Vector[i])
		}
		scored = append(scored, &ScoredPoint{Point: *p, Score: dot})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > len(scored) {
		limit = len(scored)
	}
	return scored[:limit], nil
}

// Retrieve returns the point with the given ID, or (nil, nil) when absent.
func (m *MemoryStore) Retrieve(ctx context.Context, id string) (*Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.points[id]
	if !ok {
		return nil, nil
	}
	return p, nil
}

// Scroll pages through points in insertion order. The cursor is the ID of the
// next point to return.
func (m *MemoryStore) Scroll(ctx context.Context, limit int, cursor string) ([]*Point, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		return nil, "", nil
	}
	start := 0
	if cursor != "" {
		for i, id := range m.ids {
			if id == cursor {
				start = i
				break
			}
		}
	}
	end := start + limit
	if end > len(m.ids) {
		end = len(m.ids)
	}
	out := make([]*Point, 0, end-start)
	for _, id := range m.ids[start:end] {
		out = append(out, m.points[id])
	}
	next := ""
	if end < len(m.ids) {
		next = m.ids[end]
	}
	return out, next, nil
}

// Count returns the number of points matching the filter.
func (m *MemoryStore) Count(ctx context.Context, filter *Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if filter == nil {
		return int64(len(m.ids)), nil
	}
	var n int64
	for _, p := range m.points {
		if filter.matches(p.Payload) {
			n++
		}
	}
	return n, nil
}

// Dimensions returns the configured vector dimension.
func (m *MemoryStore) Dimensions() int {
	return m.dimensions
}

// Distance returns the similarity metric name.
func (m *MemoryStore) Distance() string {
	return "Cosine"
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}
