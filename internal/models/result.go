package models

// ScoredChunk is a single retrieval hit. A chunk reaches the result list either
// through vector similarity (SemanticScore > 0) or through graph expansion
// (GraphScore > 0); FinalScore is the weighted blend used for ranking.
type ScoredChunk struct {
	ChunkID       string        `json:"id"`
	DocumentID    string        `json:"doc_id"`
	Text          string        `json:"text"`
	SemanticScore float64       `json:"semantic_score"`
	GraphScore    float64       `json:"graph_score"`
	FinalScore    float64       `json:"final_score"`
	Document      *Document     `json:"document,omitempty"`
	Context       *NeighborText `json:"context,omitempty"`
}

// NeighborText holds the immediately surrounding chunk texts for a hit,
// closest chunk first in both directions.
type NeighborText struct {
	Previous []string `json:"previous"`
	Next     []string `json:"next"`
}

// ChunkContext is an expanded window around a chunk. Previous and Next are
// ordered closest-first: Previous[0] is the chunk immediately before the
// center, Next[0] the one immediately after.
type ChunkContext struct {
	Center   *Chunk    `json:"center"`
	Previous []*Chunk  `json:"previous"`
	Next     []*Chunk  `json:"next"`
	Document *Document `json:"document,omitempty"`
}

// GraphStats holds node counts from the graph store.
type GraphStats struct {
	Documents  int64 `json:"document_count"`
	Chunks     int64 `json:"chunk_count"`
	Categories int64 `json:"category_count"`
}

// VectorStats holds collection statistics from the vector store.
// EstimatedDocuments is a sampling approximation: distinct document IDs are
// counted in a bounded sample and extrapolated to the full collection, so the
// value is intentionally approximate.
type VectorStats struct {
	Vectors            int64  `json:"vector_count"`
	EstimatedDocuments int64  `json:"estimated_document_count"`
	SizeBytes          int64  `json:"size_bytes"`
	Distance           string `json:"distance"`
}

// Stats combines statistics from both stores.
type Stats struct {
	Graph  GraphStats  `json:"graph"`
	Vector VectorStats `json:"vector"`
}
