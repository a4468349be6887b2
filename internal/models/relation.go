package models

// RelType enumerates the relationship types in the document graph. Graph backends
// map these to their native edge names; free-form relationship strings are never
// accepted at the store interface.
type RelType int

const (
	// RelHasChunk links a document to one of its chunks.
	RelHasChunk RelType = iota
	// RelNext links a chunk to the following chunk of the same document.
	RelNext
	// RelRelatedTo links two documents that share a category or are
	// cross-referenced in front matter.
	RelRelatedTo
	// RelHasTopic links a document to a topic token from its front matter tags.
	RelHasTopic
)

// String returns the canonical edge name for the relationship type.
func (r RelType) String() string {
	switch r {
	case RelHasChunk:
		return "HAS_CHUNK"
	case RelNext:
		return "NEXT"
	case RelRelatedTo:
		return "RELATED_TO"
	case RelHasTopic:
		return "HAS_TOPIC"
	default:
		return "UNKNOWN"
	}
}
