package search

import (
	"sort"

	"github.com/hyperjump/tsunagu/internal/models"
)

// resultSet accumulates scored chunks keyed by chunk ID. The first entry for a
// chunk wins; later writers for the same ID are ignored, so semantic hits are
// never overwritten by graph expansions. Insertion order is preserved and used
// as the tie-break when final scores are equal.
type resultSet struct {
	byID  map[string]*models.ScoredChunk
	order []*models.ScoredChunk
}

func newResultSet() *resultSet {
	return &resultSet{byID: make(map[string]*models.ScoredChunk)}
}

// add records the chunk unless one with the same ID is already present.
// Reports whether the chunk was inserted.
func (r *resultSet) add(sc *models.ScoredChunk) bool {
	if _, ok := r.byID[sc.ChunkID]; ok {
		return false
	}
	r.byID[sc.ChunkID] = sc
	r.order = append(r.order, sc)
	return true
}

func (r *resultSet) contains(chunkID string) bool {
	_, ok := r.byID[chunkID]
	return ok
}

// ranked returns the chunks sorted by final score descending, truncated to
// limit. The sort is stable so equal scores keep insertion order.
func (r *resultSet) ranked(limit int) []*models.ScoredChunk {
	out := append([]*models.ScoredChunk(nil), r.order...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinalScore > out[j].FinalScore
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
