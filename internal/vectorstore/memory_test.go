package vectorstore

import (
	"context"
	"testing"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s, err := NewMemoryStore(3)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestMemoryStore_UpsertSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	points := []*Point{
		{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]interface{}{"doc_id": "d1", "category": "go"}},
		{ID: "b", Vector: []float32{0, 1, 0}, Payload: map[string]interface{}{"doc_id": "d2", "category": "rust"}},
		{ID: "c", Vector: []float32{0.9, 0.1, 0}, Payload: map[string]interface{}{"doc_id": "d1", "category": "go"}},
	}
	if err := s.Upsert(ctx, points); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, []float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("closest should be a, got %s", results[0].ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("results should be ordered by descending score")
	}
}

func TestMemoryStore_SearchFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.Upsert(ctx, []*Point{
		{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]interface{}{"category": "go"}},
		{ID: "b", Vector: []float32{1, 0, 0}, Payload: map[string]interface{}{"category": "rust"}},
	})
	results, err := s.Search(ctx, []float32{1, 0, 0}, 10, Eq("category", "rust"))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "b" {
		t.Errorf("filter should match only b, got %v", results)
	}

	anyOf := &Filter{Must: []Condition{{Key: "category", AnyOf: []interface{}{"go", "rust"}}}}
	results, _ = s.Search(ctx, []float32{1, 0, 0}, 10, anyOf)
	if len(results) != 2 {
		t.Errorf("any-of filter should match both, got %d", len(results))
	}
}

func TestMemoryStore_RetrieveNotFound(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Retrieve(context.Background(), "missing")
	if err != nil {
		t.Fatalf("missing point should not be an error: %v", err)
	}
	if p != nil {
		t.Error("missing point should be nil")
	}
}

func TestMemoryStore_UpsertReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.Upsert(ctx, []*Point{{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]interface{}{"text": "old"}}})
	_ = s.Upsert(ctx, []*Point{{ID: "a", Vector: []float32{0, 1, 0}, Payload: map[string]interface{}{"text": "new"}}})
	n, _ := s.Count(ctx, nil)
	if n != 1 {
		t.Errorf("upsert should replace, count=%d", n)
	}
	p, _ := s.Retrieve(ctx, "a")
	if p.Payload["text"] != "new" {
		t.Errorf("payload should be replaced, got %v", p.Payload)
	}
}

func TestMemoryStore_Scroll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_ = s.Upsert(ctx, []*Point{{ID: id, Vector: []float32{1, 0, 0}}})
	}
	var seen []string
	cursor := ""
	for {
		points, next, err := s.Scroll(ctx, 2, cursor)
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range points {
			seen = append(seen, p.ID)
		}
		if next == "" {
			break
		}
		cursor = next
	}
	if len(seen) != 5 {
		t.Errorf("scroll should visit all 5 points, got %v", seen)
	}
}

func TestMemoryStore_CountFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.Upsert(ctx, []*Point{
		{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]interface{}{"doc_id": "d1"}},
		{ID: "b", Vector: []float32{0, 1, 0}, Payload: map[string]interface{}{"doc_id": "d2"}},
	})
	n, err := s.Count(ctx, Eq("doc_id", "d1"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1, got %d", n)
	}
}
