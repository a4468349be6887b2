// Package graph provides the document relationship store: documents, chunks,
// and the typed edges between them.
package graph

import (
	"context"
	"fmt"

	"github.com/hyperjump/tsunagu/internal/models"
)

// Direction selects which way Walk follows the NEXT chain.
type Direction int

const (
	// Backward walks against NEXT edges (preceding chunks).
	Backward Direction = iota
	// Forward walks along NEXT edges (following chunks).
	Forward
)

// Store defines typed graph operations over documents and chunks. Relationship
// types are always the models.RelType enum and traversal depth is always an
// explicit bound; implementations never accept free-form relationship strings.
//
// Lookups return (nil, nil) when the requested node is absent; errors are
// reserved for store failures.
type Store interface {
	// Setup creates schema constraints or tables. Idempotent.
	Setup(ctx context.Context) error

	MergeDocument(ctx context.Context, doc *models.Document) error
	// MergeChunks merges chunk nodes and their HAS_CHUNK and NEXT edges.
	// Chunks must carry contiguous positions per document.
	MergeChunks(ctx context.Context, chunks []*models.Chunk) error
	// Relate merges a document-to-document edge of the given type.
	Relate(ctx context.Context, fromDocID, toDocID string, rel models.RelType) error
	// RelateByCategory merges RELATED_TO edges between every pair of
	// documents sharing a non-empty category.
	RelateByCategory(ctx context.Context) error
	// AddTopics merges HAS_TOPIC edges from a document to topic tokens.
	AddTopics(ctx context.Context, docID string, topics []string) error

	DocumentByID(ctx context.Context, id string) (*models.Document, error)
	DocumentByChunk(ctx context.Context, chunkID string) (*models.Document, error)
	ChunkByID(ctx context.Context, id string) (*models.Chunk, error)
	// DocumentChunks returns a document's chunks ordered by position.
	DocumentChunks(ctx context.Context, docID string) ([]*models.Chunk, error)
	RelatedDocuments(ctx context.Context, docID string, limit int) ([]*models.Document, error)
	DocumentsByCategory(ctx context.Context, category string, limit int) ([]*models.Document, error)
	// Walk follows the NEXT chain from chunkID up to maxDepth hops in the
	// given direction, returning chunks ordered closest-first.
	Walk(ctx context.Context, chunkID string, dir Direction, maxDepth int) ([]*models.Chunk, error)

	Categories(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*models.GraphStats, error)
	// Clear removes all nodes and edges.
	Clear(ctx context.Context) error
	Close() error
}

// Backend identifiers accepted by New.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
)

// Options configures New.
type Options struct {
	Backend  string
	Path     string // sqlite
	URI      string // neo4j
	Username string
	Password string
	Database string
}

// New creates a graph store of the configured backend.
func New(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite, "":
		return NewSQLiteStore(opts.Path)
	case BackendNeo4j:
		return NewNeo4jStore(ctx, Neo4jConfig{
			URI:      opts.URI,
			Username: opts.Username,
			Password: opts.Password,
			Database: opts.Database,
		})
	default:
		return nil, fmt.Errorf("unknown graph backend: %s (supported: memory, sqlite, neo4j)", opts.Backend)
	}
}
