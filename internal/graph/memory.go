package graph

import (
	"context"
	"sort"
	"sync"

	"github.com/hyperjump/tsunagu/internal/models"
)

type edgeKey struct {
	from, to string
	rel      models.RelType
}

// MemoryStore is an in-memory graph store for tests and small corpora.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]*models.Document
	chunks   map[string]*models.Chunk
	byDoc    map[string][]*models.Chunk // ordered by position
	edges    map[edgeKey]struct{}
	edgeList []edgeKey // insertion order, keeps RelatedDocuments deterministic
	topics   map[string][]string
}

// NewMemoryStore creates an empty in-memory graph store.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{}
	m.reset()
	return m
}

func (m *MemoryStore) reset() {
	m.docs = make(map[string]*models.Document)
	m.chunks = make(map[string]*models.Chunk)
	m.byDoc = make(map[string][]*models.Chunk)
	m.edges = make(map[edgeKey]struct{})
	m.edgeList = nil
	m.topics = make(map[string][]string)
}

// Setup is a no-op for MemoryStore.
func (m *MemoryStore) Setup(ctx context.Context) error {
	return nil
}

// MergeDocument stores or replaces a document by ID.
func (m *MemoryStore) MergeDocument(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

// MergeChunks stores chunks; the NEXT chain is derived from positions.
func (m *MemoryStore) MergeChunks(ctx context.Context, chunks []*models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	touched := make(map[string]bool)
	for _, ch := range chunks {
		cp := *ch
		if old, ok := m.chunks[ch.ID]; ok {
			// Drop the stale entry from its document's ordered list.
			list := m.byDoc[old.DocumentID]
			for i, c := range list {
				if c.ID == ch.ID {
					m.byDoc[old.DocumentID] = append(list[:i], list[i+1:]...)
					break
				}
			}
		}
		m.chunks[ch.ID] = &cp
		m.byDoc[ch.DocumentID] = append(m.byDoc[ch.DocumentID], &cp)
		touched[ch.DocumentID] = true
	}
	for docID := range touched {
		list := m.byDoc[docID]
		sort.Slice(list, func(i, j int) bool { return list[i].Position < list[j].Position })
	}
	return nil
}

// Relate merges a document-to-document edge.
func (m *MemoryStore) Relate(ctx context.Context, fromDocID, toDocID string, rel models.RelType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addEdgeLocked(fromDocID, toDocID, rel)
	return nil
}

func (m *MemoryStore) addEdgeLocked(from, to string, rel models.RelType) {
	k := edgeKey{from: from, to: to, rel: rel}
	if _, ok := m.edges[k]; ok {
		return
	}
	m.edges[k] = struct{}{}
	m.edgeList = append(m.edgeList, k)
}

// RelateByCategory links every pair of documents sharing a non-empty category.
func (m *MemoryStore) RelateByCategory(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, a := range ids {
		for _, b := range ids {
			if a == b {
				continue
			}
			da, db := m.docs[a], m.docs[b]
			if da.Category != "" && da.Category == db.Category {
				m.addEdgeLocked(a, b, models.RelRelatedTo)
			}
		}
	}
	return nil
}

// AddTopics records HAS_TOPIC edges from a document to topic tokens.
func (m *MemoryStore) AddTopics(ctx context.Context, docID string, topics []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := make(map[string]bool, len(m.topics[docID]))
	for _, t := range m.topics[docID] {
		existing[t] = true
	}
	for _, t := range topics {
		if !existing[t] {
			m.topics[docID] = append(m.topics[docID], t)
			existing[t] = true
		}
	}
	return nil
}

// DocumentByID returns the document or (nil, nil) when absent.
func (m *MemoryStore) DocumentByID(ctx context.Context, id string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	return doc, nil
}

// DocumentByChunk returns the owning document of a chunk, or (nil, nil).
func (m *MemoryStore) DocumentByChunk(ctx context.Context, chunkID string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.chunks[chunkID]
	if !ok {
		return nil, nil
	}
	doc, ok := m.docs[ch.DocumentID]
	if !ok {
		return nil, nil
	}
	return doc, nil
}

// ChunkByID returns the chunk or (nil, nil) when absent.
func (m *MemoryStore) ChunkByID(ctx context.Context, id string) (*models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.chunks[id]
	if !ok {
		return nil, nil
	}
	return ch, nil
}

// DocumentChunks returns a document's chunks ordered by position.
func (m *MemoryStore) DocumentChunks(ctx context.Context, docID string) ([]*models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*models.Chunk(nil), m.byDoc[docID]...), nil
}

// RelatedDocuments returns up to limit documents linked by RELATED_TO.
func (m *MemoryStore) RelatedDocuments(ctx context.Context, docID string, limit int) ([]*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Document
	for _, k := range m.edgeList {
		if k.from != docID || k.rel != models.RelRelatedTo {
			continue
		}
		if doc, ok := m.docs[k.to]; ok {
			out = append(out, doc)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// DocumentsByCategory returns up to limit documents with the given category.
func (m *MemoryStore) DocumentsByCategory(ctx context.Context, category string, limit int) ([]*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []*models.Document
	for _, id := range ids {
		if m.docs[id].Category == category {
			out = append(out, m.docs[id])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Walk follows the position-derived NEXT chain, closest chunk first.
func (m *MemoryStore) Walk(ctx context.Context, chunkID string, dir Direction, maxDepth int) ([]*models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	center, ok := m.chunks[chunkID]
	if !ok || maxDepth <= 0 {
		return nil, nil
	}
	list := m.byDoc[center.DocumentID]
	var out []*models.Chunk
	for _, ch := range list {
		delta := ch.Position - center.Position
		if dir == Backward {
			delta = -delta
		}
		if delta >= 1 && delta <= maxDepth {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di := out[i].Position - center.Position
		dj := out[j].Position - center.Position
		if di < 0 {
			di = -di
		}
		if dj < 0 {
			dj = -dj
		}
		return di < dj
	})
	return out, nil
}

// Categories returns the distinct non-empty category values.
func (m *MemoryStore) Categories(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, doc := range m.docs {
		if doc.Category != "" && !seen[doc.Category] {
			seen[doc.Category] = true
			out = append(out, doc.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Stats returns node counts.
func (m *MemoryStore) Stats(ctx context.Context) (*models.GraphStats, error) {
	cats, _ := m.Categories(ctx)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &models.GraphStats{
		Documents:  int64(len(m.docs)),
		Chunks:     int64(len(m.chunks)),
		Categories: int64(len(cats)),
	}, nil
}

// Clear removes everything.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}
