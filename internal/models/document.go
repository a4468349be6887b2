// Package models defines core data structures for documents, chunks, and search results.
package models

// Document represents an imported source document with its front matter metadata.
// Documents are created during import and never mutated in place; re-import merges
// by ID, and deletion only happens through a full clear.
type Document struct {
	ID       string                 `json:"id"`
	Title    string                 `json:"title"`
	Category string                 `json:"category"`
	Path     string                 `json:"path"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Chunk is a contiguous slice of a document's text. Positions are zero-based and
// contiguous within a document; position p links to p+1 via a NEXT edge.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"doc_id"`
	Position   int    `json:"position"`
	Text       string `json:"text"`
}
