// Package vectorstore provides vector point storage and similarity search.
package vectorstore

import (
	"context"
	"fmt"
)

// Point is a stored vector with its payload (chunk text plus document metadata).
type Point struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector,omitempty"`
	Payload map[string]interface{} `json:"payload"`
}

// ScoredPoint is a search hit with its cosine similarity score.
type ScoredPoint struct {
	Point
	Score float64 `json:"score"`
}

// Condition matches a payload field either by equality (Equals) or by
// membership (AnyOf). Exactly one of the two should be set.
type Condition struct {
	Key    string
	Equals interface{}
	AnyOf  []interface{}
}

// Filter is a conjunction of payload conditions.
type Filter struct {
	Must []Condition
}

// Eq returns a filter requiring payload[key] == value.
func Eq(key string, value interface{}) *Filter {
	return &Filter{Must: []Condition{{Key: key, Equals: value}}}
}

// Store defines vector point storage and nearest-neighbor search.
// Implementations hold a single named collection; the collection is a derived,
// disposable projection of the chunk data and can always be rebuilt.
type Store interface {
	CreateCollection(ctx context.Context) error
	DeleteCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []*Point) error
	// Search returns up to limit points ordered by descending similarity.
	Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]*ScoredPoint, error)
	// Retrieve returns the point with the given ID, or (nil, nil) when absent.
	Retrieve(ctx context.Context, id string) (*Point, error)
	// Scroll pages through the collection. An empty cursor starts from the
	// beginning; the returned cursor is empty when iteration is done.
	Scroll(ctx context.Context, limit int, cursor string) ([]*Point, string, error)
	Count(ctx context.Context, filter *Filter) (int64, error)
	Dimensions() int
	Distance() string
	Close() error
}

// Backend identifiers accepted by New.
const (
	BackendMemory = "memory"
	BackendQdrant = "qdrant"
)

// Options configures New.
type Options struct {
	Backend    string
	URL        string
	APIKey     string
	Collection string
	Dimensions int
}

// New creates a vector store of the configured backend.
func New(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryStore(opts.Dimensions)
	case BackendQdrant, "":
		return NewQdrantStore(QdrantConfig{
			URL:        opts.URL,
			APIKey:     opts.APIKey,
			Collection: opts.Collection,
			Dimensions: opts.Dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (supported: memory, qdrant)", opts.Backend)
	}
}

// matches reports whether payload satisfies the filter. Shared by the memory
// store and tests; the Qdrant backend filters server-side.
func (f *Filter) matches(payload map[string]interface{}) bool {
	if f == nil {
		return true
	}
	for _, cond := range f.Must {
		v, ok := payload[cond.Key]
		if !ok {
			return false
		}
		if cond.Equals != nil {
			if v != cond.Equals {
				return false
			}
			continue
		}
		found := false
		for _, want := range cond.AnyOf {
			if v == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
