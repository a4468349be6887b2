// Package search implements hybrid retrieval: vector similarity blended with
// graph expansion over document relationships.
package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/tsunagu/internal/config"
	"github.com/hyperjump/tsunagu/internal/embedding"
	"github.com/hyperjump/tsunagu/internal/graph"
	"github.com/hyperjump/tsunagu/internal/models"
	"github.com/hyperjump/tsunagu/internal/vectorstore"
)

// sampleLimit bounds how many points the statistics sampler scrolls through.
const sampleLimit = 1000

// Engine answers retrieval queries against the graph and vector stores.
// Query methods degrade to empty results on store failures rather than
// propagating errors; failures are logged.
type Engine struct {
	graph    graph.Store
	vectors  vectorstore.Store
	embedder embedding.Embedder // nil disables semantic search
	cfg      config.SearchConfig
	log      *zap.Logger
}

// New creates a search engine. embedder may be nil, in which case every
// semantic query returns no results.
func New(g graph.Store, v vectorstore.Store, e embedding.Embedder, cfg config.SearchConfig, log *zap.Logger) *Engine {
	return &Engine{graph: g, vectors: v, embedder: e, cfg: cfg, log: log}
}

// Request describes a search query.
type Request struct {
	Query string
	// Limit caps the result count; 0 means the configured default.
	Limit int
	// Category restricts hits to documents in the given category.
	Category string
	// IncludeContext attaches surrounding chunk texts to each hit.
	IncludeContext bool
	// ContextWindow overrides the configured window when > 0.
	ContextWindow int
}

func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if e.cfg.MaxLimit > 0 && limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}
	return limit
}

// Search runs hybrid retrieval: a semantic pass over the vector store seeds
// the result set, then each hit document's RELATED_TO neighbors contribute
// their opening chunk at a fixed graph score. Semantic hits keep priority on
// ID collisions. Results are ranked by the weighted final score.
func (e *Engine) Search(ctx context.Context, req Request) ([]*models.ScoredChunk, error) {
	limit := e.clampLimit(req.Limit)
	weight := e.cfg.SemanticWeight

	// Oversized semantic pool so graph expansion has hits to branch from and
	// ranking has candidates beyond the final cut.
	hits := e.semantic(ctx, req.Query, limit*2, req.Category)
	if len(hits) == 0 {
		return []*models.ScoredChunk{}, nil
	}

	rs := newResultSet()
	var docOrder []string
	seenDocs := make(map[string]bool)
	for _, h := range hits {
		sc := &models.ScoredChunk{
			ChunkID:       h.ID,
			DocumentID:    payloadString(h.Payload, "doc_id"),
			Text:          payloadString(h.Payload, "text"),
			SemanticScore: h.Score,
			FinalScore:    h.Score * weight,
		}
		rs.add(sc)
		if sc.DocumentID != "" && !seenDocs[sc.DocumentID] {
			seenDocs[sc.DocumentID] = true
			docOrder = append(docOrder, sc.DocumentID)
		}
	}

	for _, docID := range docOrder {
		related, err := e.graph.RelatedDocuments(ctx, docID, e.cfg.RelatedLimit)
		if err != nil {
			e.log.Warn("graph expansion failed", zap.String("doc_id", docID), zap.Error(err))
			continue
		}
		// The category filter applies only to the semantic pass; expansion
		// deliberately surfaces related documents from other categories.
		for _, rd := range related {
			chunks, err := e.graph.DocumentChunks(ctx, rd.ID)
			if err != nil || len(chunks) == 0 {
				continue
			}
			first := chunks[0]
			if rs.contains(first.ID) {
				continue
			}
			rs.add(&models.ScoredChunk{
				ChunkID:    first.ID,
				DocumentID: rd.ID,
				Text:       first.Text,
				GraphScore: e.cfg.GraphScore,
				FinalScore: e.cfg.GraphScore * (1 - weight),
				Document:   rd,
			})
		}
	}

	results := rs.ranked(limit)
	e.enrich(ctx, results, req)
	return results, nil
}

// SemanticSearch runs a similarity-only query with no graph expansion and no
// score weighting. Every hit carries its owning document and the immediate
// neighbor texts.
func (e *Engine) SemanticSearch(ctx context.Context, query string, limit int, category string) ([]*models.ScoredChunk, error) {
	limit = e.clampLimit(limit)
	hits := e.semantic(ctx, query, limit, category)
	out := make([]*models.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, &models.ScoredChunk{
			ChunkID:       h.ID,
			DocumentID:    payloadString(h.Payload, "doc_id"),
			Text:          payloadString(h.Payload, "text"),
			SemanticScore: h.Score,
			FinalScore:    h.Score,
		})
	}
	e.enrich(ctx, out, Request{IncludeContext: true, ContextWindow: 1})
	return out, nil
}

// semantic embeds the query and searches the vector store. Any failure yields
// an empty slice.
func (e *Engine) semantic(ctx context.Context, query string, limit int, category string) []*vectorstore.ScoredPoint {
	if e.embedder == nil {
		e.log.Debug("semantic search skipped: no embedder configured")
		return nil
	}
	if query == "" {
		return nil
	}
	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		e.log.Warn("query embedding failed", zap.Error(err))
		return nil
	}
	var filter *vectorstore.Filter
	if category != "" {
		filter = vectorstore.Eq("category", category)
	}
	hits, err := e.vectors.Search(ctx, vector, limit, filter)
	if err != nil {
		e.log.Warn("vector search failed", zap.Error(err))
		return nil
	}
	return hits
}

// enrich attaches documents and, when requested, neighbor context to results.
func (e *Engine) enrich(ctx context.Context, results []*models.ScoredChunk, req Request) {
	window := req.ContextWindow
	if window <= 0 {
		window = e.cfg.ContextWindow
	}
	for _, sc := range results {
		if sc.Document == nil {
			doc, err := e.graph.DocumentByChunk(ctx, sc.ChunkID)
			if err != nil {
				e.log.Warn("document lookup failed", zap.String("chunk_id", sc.ChunkID), zap.Error(err))
			} else {
				sc.Document = doc
			}
		}
		if !req.IncludeContext {
			continue
		}
		prev, err := e.graph.Walk(ctx, sc.ChunkID, graph.Backward, window)
		if err != nil {
			continue
		}
		next, err := e.graph.Walk(ctx, sc.ChunkID, graph.Forward, window)
		if err != nil {
			continue
		}
		if len(prev) == 0 && len(next) == 0 {
			continue
		}
		nt := &models.NeighborText{}
		for _, ch := range prev {
			nt.Previous = append(nt.Previous, ch.Text)
		}
		for _, ch := range next {
			nt.Next = append(nt.Next, ch.Text)
		}
		sc.Context = nt
	}
}

// ExpandContext returns the chunk window around chunkID: up to window chunks
// on each side along the NEXT chain, closest-first. A negative window means
// the configured default; zero returns just the center. Returns (nil, nil)
// when the chunk does not exist.
func (e *Engine) ExpandContext(ctx context.Context, chunkID string, window int) (*models.ChunkContext, error) {
	if window < 0 {
		window = e.cfg.ContextWindow
	}
	center, err := e.graph.ChunkByID(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	if center == nil {
		return nil, nil
	}
	prev, err := e.graph.Walk(ctx, chunkID, graph.Backward, window)
	if err != nil {
		return nil, err
	}
	next, err := e.graph.Walk(ctx, chunkID, graph.Forward, window)
	if err != nil {
		return nil, err
	}
	doc, err := e.graph.DocumentByChunk(ctx, chunkID)
	if err != nil {
		e.log.Warn("document lookup failed", zap.String("chunk_id", chunkID), zap.Error(err))
	}
	return &models.ChunkContext{
		Center:   center,
		Previous: prev,
		Next:     next,
		Document: doc,
	}, nil
}

// Categories lists the distinct document categories.
func (e *Engine) Categories(ctx context.Context) ([]string, error) {
	return e.graph.Categories(ctx)
}

// DocumentsByCategory lists documents in a category.
func (e *Engine) DocumentsByCategory(ctx context.Context, category string, limit int) ([]*models.Document, error) {
	return e.graph.DocumentsByCategory(ctx, category, e.clampLimit(limit))
}

// Document returns a document with its chunks, or (nil, nil, nil) when absent.
func (e *Engine) Document(ctx context.Context, docID string) (*models.Document, []*models.Chunk, error) {
	doc, err := e.graph.DocumentByID(ctx, docID)
	if err != nil || doc == nil {
		return nil, nil, err
	}
	chunks, err := e.graph.DocumentChunks(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	return doc, chunks, nil
}

// Statistics reports node counts from the graph store and collection stats
// from the vector store. The vector-side document count extrapolates distinct
// document IDs from a bounded sample.
func (e *Engine) Statistics(ctx context.Context) (*models.Stats, error) {
	gs, err := e.graph.Stats(ctx)
	if err != nil {
		return nil, err
	}
	stats := &models.Stats{Graph: *gs}

	total, err := e.vectors.Count(ctx, nil)
	if err != nil {
		e.log.Warn("vector count failed", zap.Error(err))
		return stats, nil
	}
	stats.Vector = models.VectorStats{
		Vectors:   total,
		SizeBytes: int64(e.vectors.Dimensions()) * total * 4,
		Distance:  e.vectors.Distance(),
	}

	distinct := make(map[string]bool)
	sampled := int64(0)
	cursor := ""
	for sampled < sampleLimit {
		points, next, err := e.vectors.Scroll(ctx, 200, cursor)
		if err != nil {
			e.log.Warn("vector scroll failed", zap.Error(err))
			break
		}
		for _, p := range points {
			if id := payloadString(p.Payload, "doc_id"); id != "" {
				distinct[id] = true
			}
		}
		sampled += int64(len(points))
		if next == "" {
			break
		}
		cursor = next
	}
	est := int64(len(distinct))
	if sampled > 0 && total > sampled {
		est = est * total / sampled
	}
	stats.Vector.EstimatedDocuments = est
	return stats, nil
}

func payloadString(p map[string]interface{}, key string) string {
	if p == nil {
		return ""
	}
	v, _ := p[key].(string)
	return v
}
