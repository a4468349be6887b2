package search

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/tsunagu/internal/config"
	"github.com/hyperjump/tsunagu/internal/graph"
	"github.com/hyperjump/tsunagu/internal/models"
	"github.com/hyperjump/tsunagu/internal/vectorstore"
)

// fixedEmbedder returns the same vector for every text, letting tests control
// similarity scores through the seeded point vectors alone.
type fixedEmbedder struct {
	vec []float32
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fixedEmbedder) Dimensions() int { return len(f.vec) }
func (f *fixedEmbedder) Close() error    { return nil }

func testConfig() config.SearchConfig {
	return config.SearchConfig{
		DefaultLimit:   5,
		MaxLimit:       100,
		SemanticWeight: 0.7,
		GraphScore:     0.5,
		RelatedLimit:   3,
		ContextWindow:  2,
	}
}

type fixture struct {
	engine  *Engine
	graph   *graph.MemoryStore
	vectors *vectorstore.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g := graph.NewMemoryStore()
	v, err := vectorstore.NewMemoryStore(3)
	if err != nil {
		t.Fatal(err)
	}
	e := New(g, v, &fixedEmbedder{vec: []float32{1, 0, 0}}, testConfig(), zap.NewNop())
	return &fixture{engine: e, graph: g, vectors: v}
}

// addDoc seeds a document with chunks in both stores. Vectors, one per chunk,
// may be nil to keep a chunk out of the vector store.
func (f *fixture) addDoc(t *testing.T, docID, category string, texts []string, vectors [][]float32) {
	t.Helper()
	ctx := context.Background()
	if err := f.graph.MergeDocument(ctx, &models.Document{ID: docID, Title: docID, Category: category}); err != nil {
		t.Fatal(err)
	}
	chunks := make([]*models.Chunk, len(texts))
	var points []*vectorstore.Point
	for i, text := range texts {
		id := docID + "-c" + string(rune('0'+i))
		chunks[i] = &models.Chunk{ID: id, DocumentID: docID, Position: i, Text: text}
		if vectors != nil && vectors[i] != nil {
			points = append(points, &vectorstore.Point{
				ID:     id,
				Vector: vectors[i],
				Payload: map[string]interface{}{
					"text":     text,
					"doc_id":   docID,
					"position": i,
					"category": category,
				},
			})
		}
	}
	if err := f.graph.MergeChunks(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	if len(points) > 0 {
		if err := f.vectors.Upsert(ctx, points); err != nil {
			t.Fatal(err)
		}
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSearch_HybridRanking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "a", "guides", []string{"alpha text"}, [][]float32{{1, 0, 0}})
	f.addDoc(t, "b", "guides", []string{"beta text"}, [][]float32{{0.8, 0.6, 0}})
	f.addDoc(t, "c", "guides", []string{"gamma intro", "gamma more"}, nil)
	if err := f.graph.Relate(ctx, "a", "c", models.RelRelatedTo); err != nil {
		t.Fatal(err)
	}

	results, err := f.engine.Search(ctx, Request{Query: "q"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ChunkID != "a-c0" || !approx(results[0].FinalScore, 0.7) {
		t.Errorf("top hit should be a-c0 at 0.7, got %s %v", results[0].ChunkID, results[0].FinalScore)
	}
	if results[1].ChunkID != "b-c0" || !approx(results[1].FinalScore, 0.8*0.7) {
		t.Errorf("second hit should be b-c0 at 0.56, got %s %v", results[1].ChunkID, results[1].FinalScore)
	}
	last := results[2]
	if last.ChunkID != "c-c0" {
		t.Fatalf("graph expansion should contribute the opening chunk of c, got %s", last.ChunkID)
	}
	if !approx(last.GraphScore, 0.5) || !approx(last.FinalScore, 0.5*0.3) {
		t.Errorf("graph hit scores wrong: %+v", last)
	}
	if last.SemanticScore != 0 {
		t.Errorf("graph-only hit should have no semantic score, got %v", last.SemanticScore)
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].FinalScore < results[i].FinalScore {
			t.Error("results must be ordered by descending final score")
		}
	}
}

func TestSearch_SemanticHitKeepsPriority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "a", "guides", []string{"alpha text"}, [][]float32{{1, 0, 0}})
	f.addDoc(t, "b", "guides", []string{"beta text"}, [][]float32{{0.9, 0, 0}})
	// b relates back to a, so a's opening chunk is also a graph candidate.
	if err := f.graph.Relate(ctx, "b", "a", models.RelRelatedTo); err != nil {
		t.Fatal(err)
	}

	results, err := f.engine.Search(ctx, Request{Query: "q"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	top := results[0]
	if top.ChunkID != "a-c0" || top.SemanticScore == 0 || top.GraphScore != 0 {
		t.Errorf("semantic entry must win the ID collision: %+v", top)
	}
	if !approx(top.FinalScore, 0.7) {
		t.Errorf("collision must not rescore the semantic hit, got %v", top.FinalScore)
	}
}

func TestSearch_LimitBound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "a", "", []string{"alpha"}, [][]float32{{1, 0, 0}})
	f.addDoc(t, "b", "", []string{"beta"}, [][]float32{{0.9, 0, 0}})
	f.addDoc(t, "c", "", []string{"gamma"}, [][]float32{{0.8, 0, 0}})

	results, err := f.engine.Search(ctx, Request{Query: "q", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ChunkID != "a-c0" {
		t.Fatalf("limit 1 should keep only the top hit, got %v", results)
	}
}

func TestSearch_EmptySemanticShortCircuits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Graph content exists but nothing is in the vector store.
	f.addDoc(t, "a", "guides", []string{"alpha"}, nil)
	f.addDoc(t, "b", "guides", []string{"beta"}, nil)
	_ = f.graph.RelateByCategory(ctx)

	results, err := f.engine.Search(ctx, Request{Query: "q"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("no semantic hits means no results at all, got %v", results)
	}
}

func TestSearch_NilEmbedder(t *testing.T) {
	f := newFixture(t)
	f.engine = New(f.graph, f.vectors, nil, testConfig(), zap.NewNop())
	f.addDoc(t, "a", "", []string{"alpha"}, [][]float32{{1, 0, 0}})

	results, err := f.engine.Search(context.Background(), Request{Query: "q"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("nil embedder should disable search, got %v", results)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, "a", "", []string{"alpha"}, [][]float32{{1, 0, 0}})
	results, err := f.engine.Search(context.Background(), Request{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("empty query should return nothing, got %v", results)
	}
}

func TestSearch_CategoryFiltersSemanticPassOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "a", "guides", []string{"alpha"}, [][]float32{{1, 0, 0}})
	f.addDoc(t, "b", "api", []string{"beta"}, [][]float32{{0.9, 0, 0}})
	f.addDoc(t, "c", "api", []string{"gamma"}, nil)
	if err := f.graph.Relate(ctx, "a", "c", models.RelRelatedTo); err != nil {
		t.Fatal(err)
	}

	results, err := f.engine.Search(ctx, Request{Query: "q", Category: "guides"})
	if err != nil {
		t.Fatal(err)
	}
	// b is excluded by the semantic filter, but a's related document c still
	// contributes its opening chunk even though it sits in another category.
	if len(results) != 2 {
		t.Fatalf("expected semantic hit plus cross-category expansion, got %v", results)
	}
	if results[0].ChunkID != "a-c0" || results[0].SemanticScore == 0 {
		t.Errorf("top hit should be the filtered semantic match, got %+v", results[0])
	}
	if results[1].ChunkID != "c-c0" || results[1].GraphScore == 0 {
		t.Errorf("expansion should surface the related doc regardless of category, got %+v", results[1])
	}
	for _, r := range results {
		if r.ChunkID == "b-c0" {
			t.Error("semantic pass must honor the category filter")
		}
	}
}

func TestSearch_NoDuplicateChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "a", "guides", []string{"alpha"}, [][]float32{{1, 0, 0}})
	f.addDoc(t, "b", "guides", []string{"beta"}, [][]float32{{0.9, 0, 0}})
	f.addDoc(t, "c", "guides", []string{"gamma"}, [][]float32{{0.8, 0, 0}})
	_ = f.graph.RelateByCategory(ctx)

	results, err := f.engine.Search(ctx, Request{Query: "q", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]bool)
	for _, r := range results {
		if seen[r.ChunkID] {
			t.Fatalf("duplicate chunk in results: %s", r.ChunkID)
		}
		seen[r.ChunkID] = true
	}
}

func TestSearch_IncludeContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "a", "", []string{"one", "two", "three", "four"},
		[][]float32{nil, {1, 0, 0}, nil, nil})

	results, err := f.engine.Search(ctx, Request{Query: "q", IncludeContext: true, ContextWindow: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	c := results[0].Context
	if c == nil {
		t.Fatal("context should be attached")
	}
	if len(c.Previous) != 1 || c.Previous[0] != "one" {
		t.Errorf("previous context wrong: %v", c.Previous)
	}
	if len(c.Next) != 1 || c.Next[0] != "three" {
		t.Errorf("next context wrong: %v", c.Next)
	}
	if results[0].Document == nil || results[0].Document.ID != "a" {
		t.Errorf("document should be attached, got %+v", results[0].Document)
	}
}

func TestExpandContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "a", "guides", []string{"one", "two", "three", "four", "five"}, nil)

	cc, err := f.engine.ExpandContext(ctx, "a-c2", 2)
	if err != nil {
		t.Fatal(err)
	}
	if cc == nil || cc.Center.Text != "three" {
		t.Fatalf("unexpected center: %+v", cc)
	}
	if len(cc.Previous) != 2 || cc.Previous[0].Text != "two" || cc.Previous[1].Text != "one" {
		t.Errorf("previous should be closest-first, got %v", cc.Previous)
	}
	if len(cc.Next) != 2 || cc.Next[0].Text != "four" || cc.Next[1].Text != "five" {
		t.Errorf("next should be closest-first, got %v", cc.Next)
	}
	if cc.Document == nil || cc.Document.ID != "a" {
		t.Errorf("document should be attached, got %+v", cc.Document)
	}
}

func TestExpandContext_Edges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "a", "", []string{"one", "two"}, nil)

	cc, err := f.engine.ExpandContext(ctx, "a-c0", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(cc.Previous) != 0 {
		t.Errorf("window must clamp at the document start, got %v", cc.Previous)
	}
	if len(cc.Next) != 1 {
		t.Errorf("window must clamp at the document end, got %v", cc.Next)
	}

	missing, err := f.engine.ExpandContext(ctx, "nope", 2)
	if err != nil || missing != nil {
		t.Errorf("unknown chunk should yield (nil, nil), got %v, %v", missing, err)
	}
}

func TestExpandContext_ZeroWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "a", "", []string{"one", "two", "three"}, nil)

	cc, err := f.engine.ExpandContext(ctx, "a-c1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if cc == nil || cc.Center == nil || cc.Center.Text != "two" {
		t.Fatalf("zero window must still populate the center, got %+v", cc)
	}
	if len(cc.Previous) != 0 || len(cc.Next) != 0 {
		t.Errorf("zero window must have empty sides, got %+v", cc)
	}

	// Negative means the configured default (2 here).
	cc, err = f.engine.ExpandContext(ctx, "a-c1", -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(cc.Previous) != 1 || len(cc.Next) != 1 {
		t.Errorf("default window should fetch neighbors, got %+v", cc)
	}
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "a", "guides", []string{"one", "two"}, [][]float32{{1, 0, 0}, {0, 1, 0}})
	f.addDoc(t, "b", "api", []string{"three"}, [][]float32{{0, 0, 1}})

	stats, err := f.engine.Statistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Graph.Documents != 2 || stats.Graph.Chunks != 3 || stats.Graph.Categories != 2 {
		t.Errorf("unexpected graph stats: %+v", stats.Graph)
	}
	if stats.Vector.Vectors != 3 {
		t.Errorf("expected 3 vectors, got %d", stats.Vector.Vectors)
	}
	if stats.Vector.EstimatedDocuments != 2 {
		t.Errorf("sample covers everything, estimate should be exact: %d", stats.Vector.EstimatedDocuments)
	}
	if stats.Vector.SizeBytes != 3*3*4 {
		t.Errorf("size should be dims*count*4, got %d", stats.Vector.SizeBytes)
	}
	if stats.Vector.Distance != "Cosine" {
		t.Errorf("unexpected distance: %s", stats.Vector.Distance)
	}
}

func TestSemanticSearch_NoExpansion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "a", "guides", []string{"alpha"}, [][]float32{{1, 0, 0}})
	f.addDoc(t, "c", "guides", []string{"gamma"}, nil)
	_ = f.graph.Relate(ctx, "a", "c", models.RelRelatedTo)

	results, err := f.engine.SemanticSearch(ctx, "q", 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ChunkID != "a-c0" {
		t.Fatalf("semantic-only search must not expand over the graph, got %v", results)
	}
	if !approx(results[0].FinalScore, results[0].SemanticScore) {
		t.Errorf("semantic-only scores are unweighted, got %+v", results[0])
	}
}

func TestSemanticSearch_EnrichesResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addDoc(t, "a", "guides", []string{"one", "two", "three"},
		[][]float32{nil, {1, 0, 0}, nil})

	results, err := f.engine.SemanticSearch(ctx, "q", 5, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Document == nil || r.Document.ID != "a" {
		t.Fatalf("semantic result must carry the owning document, got %+v", r.Document)
	}
	if r.Context == nil {
		t.Fatal("semantic result must carry neighbor context")
	}
	if len(r.Context.Previous) != 1 || r.Context.Previous[0] != "one" {
		t.Errorf("context should hold the one-hop previous text, got %v", r.Context.Previous)
	}
	if len(r.Context.Next) != 1 || r.Context.Next[0] != "three" {
		t.Errorf("context should hold the one-hop next text, got %v", r.Context.Next)
	}
}
