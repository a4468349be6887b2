package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/hyperjump/tsunagu/internal/models"
)

// Neo4jConfig holds connection settings for the Neo4j backend.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// Neo4jStore implements Store against a Neo4j instance. Unlike the SQLite
// backend it materializes NEXT edges between consecutive chunks, so Walk is a
// variable-length path match.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore connects to Neo4j and verifies connectivity.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	if cfg.URI == "" {
		cfg.URI = "bolt://localhost:7687"
	}
	if cfg.Database == "" {
		cfg.Database = "neo4j"
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", cfg.URI, err)
	}
	s := &Neo4jStore{driver: driver, database: cfg.Database}
	if err := s.Setup(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Neo4jStore) run(ctx context.Context, query string, params map[string]interface{}) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, s.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
}

// Setup creates uniqueness constraints. Idempotent.
func (s *Neo4jStore) Setup(ctx context.Context) error {
	constraints := []string{
		"CREATE CONSTRAINT doc_id IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE",
		"CREATE CONSTRAINT chunk_id IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE",
		"CREATE CONSTRAINT topic_name IF NOT EXISTS FOR (t:Topic) REQUIRE t.name IS UNIQUE",
	}
	for _, q := range constraints {
		if _, err := s.run(ctx, q, nil); err != nil {
			return fmt.Errorf("failed to create constraint: %w", err)
		}
	}
	return nil
}

// MergeDocument merges a Document node by ID.
func (s *Neo4jStore) MergeDocument(ctx context.Context, doc *models.Document) error {
	_, err := s.run(ctx, `
		MERGE (d:Document {id: $id})
		SET d.title = $title, d.category = $category, d.path = $path`,
		map[string]interface{}{
			"id":       doc.ID,
			"title":    doc.Title,
			"category": doc.Category,
			"path":     doc.Path,
		})
	return err
}

// MergeChunks merges chunk nodes with HAS_CHUNK edges and links consecutive
// positions with NEXT.
func (s *Neo4jStore) MergeChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, len(chunks))
	for i, ch := range chunks {
		rows[i] = map[string]interface{}{
			"id":       ch.ID,
			"doc_id":   ch.DocumentID,
			"position": ch.Position,
			"text":     ch.Text,
		}
	}
	_, err := s.run(ctx, `
		UNWIND $rows AS row
		MATCH (d:Document {id: row.doc_id})
		MERGE (c:Chunk {id: row.id})
		SET c.position = row.position, c.text = row.text, c.doc_id = row.doc_id
		MERGE (d)-[:HAS_CHUNK]->(c)`,
		map[string]interface{}{"rows": rows})
	if err != nil {
		return err
	}
	_, err = s.run(ctx, `
		UNWIND $rows AS row
		MATCH (c:Chunk {id: row.id})
		MATCH (n:Chunk {doc_id: row.doc_id, position: row.position + 1})
		MERGE (c)-[:NEXT]->(n)`,
		map[string]interface{}{"rows": rows})
	return err
}

// Relate merges a typed document-to-document edge. The relationship type comes
// from the closed RelType enum, never from caller strings.
func (s *Neo4jStore) Relate(ctx context.Context, fromDocID, toDocID string, rel models.RelType) error {
	q := fmt.Sprintf(`
		MATCH (a:Document {id: $from})
		MATCH (b:Document {id: $to})
		MERGE (a)-[:%s]->(b)`, rel.String())
	_, err := s.run(ctx, q, map[string]interface{}{"from": fromDocID, "to": toDocID})
	return err
}

// RelateByCategory links every pair of documents sharing a non-empty category.
func (s *Neo4jStore) RelateByCategory(ctx context.Context) error {
	_, err := s.run(ctx, `
		MATCH (a:Document), (b:Document)
		WHERE a.id <> b.id AND a.category = b.category AND a.category <> ''
		MERGE (a)-[:RELATED_TO]->(b)`, nil)
	return err
}

// AddTopics merges Topic nodes and HAS_TOPIC edges.
func (s *Neo4jStore) AddTopics(ctx context.Context, docID string, topics []string) error {
	if len(topics) == 0 {
		return nil
	}
	_, err := s.run(ctx, `
		MATCH (d:Document {id: $id})
		UNWIND $topics AS topic
		MERGE (t:Topic {name: topic})
		MERGE (d)-[:HAS_TOPIC]->(t)`,
		map[string]interface{}{"id": docID, "topics": topics})
	return err
}

func nodeToDocument(node dbtype.Node) *models.Document {
	doc := &models.Document{}
	if v, ok := node.Props["id"].(string); ok {
		doc.ID = v
	}
	if v, ok := node.Props["title"].(string); ok {
		doc.Title = v
	}
	if v, ok := node.Props["category"].(string); ok {
		doc.Category = v
	}
	if v, ok := node.Props["path"].(string); ok {
		doc.Path = v
	}
	return doc
}

func nodeToChunk(node dbtype.Node) *models.Chunk {
	ch := &models.Chunk{}
	if v, ok := node.Props["id"].(string); ok {
		ch.ID = v
	}
	if v, ok := node.Props["doc_id"].(string); ok {
		ch.DocumentID = v
	}
	if v, ok := node.Props["position"].(int64); ok {
		ch.Position = int(v)
	}
	if v, ok := node.Props["text"].(string); ok {
		ch.Text = v
	}
	return ch
}

func (s *Neo4jStore) queryDocuments(ctx context.Context, query string, params map[string]interface{}) ([]*models.Document, error) {
	result, err := s.run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	var out []*models.Document
	for _, rec := range result.Records {
		if node, ok := rec.Values[0].(dbtype.Node); ok {
			out = append(out, nodeToDocument(node))
		}
	}
	return out, nil
}

func (s *Neo4jStore) queryChunks(ctx context.Context, query string, params map[string]interface{}) ([]*models.Chunk, error) {
	result, err := s.run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	var out []*models.Chunk
	for _, rec := range result.Records {
		if node, ok := rec.Values[0].(dbtype.Node); ok {
			out = append(out, nodeToChunk(node))
		}
	}
	return out, nil
}

// DocumentByID returns the document or (nil, nil) when absent.
func (s *Neo4jStore) DocumentByID(ctx context.Context, id string) (*models.Document, error) {
	docs, err := s.queryDocuments(ctx,
		`MATCH (d:Document {id: $id}) RETURN d LIMIT 1`,
		map[string]interface{}{"id": id})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// DocumentByChunk returns the owning document of a chunk, or (nil, nil).
func (s *Neo4jStore) DocumentByChunk(ctx context.Context, chunkID string) (*models.Document, error) {
	docs, err := s.queryDocuments(ctx,
		`MATCH (d:Document)-[:HAS_CHUNK]->(c:Chunk {id: $id}) RETURN d LIMIT 1`,
		map[string]interface{}{"id": chunkID})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// ChunkByID returns the chunk or (nil, nil) when absent.
func (s *Neo4jStore) ChunkByID(ctx context.Context, id string) (*models.Chunk, error) {
	chunks, err := s.queryChunks(ctx,
		`MATCH (c:Chunk {id: $id}) RETURN c LIMIT 1`,
		map[string]interface{}{"id": id})
	if err != nil || len(chunks) == 0 {
		return nil, err
	}
	return chunks[0], nil
}

// DocumentChunks returns a document's chunks ordered by position.
func (s *Neo4jStore) DocumentChunks(ctx context.Context, docID string) ([]*models.Chunk, error) {
	return s.queryChunks(ctx, `
		MATCH (d:Document {id: $id})-[:HAS_CHUNK]->(c:Chunk)
		RETURN c ORDER BY c.position`,
		map[string]interface{}{"id": docID})
}

// RelatedDocuments returns up to limit documents linked by RELATED_TO.
func (s *Neo4jStore) RelatedDocuments(ctx context.Context, docID string, limit int) ([]*models.Document, error) {
	return s.queryDocuments(ctx, `
		MATCH (d:Document {id: $id})-[:RELATED_TO]->(r:Document)
		RETURN r ORDER BY r.id LIMIT $limit`,
		map[string]interface{}{"id": docID, "limit": limit})
}

// DocumentsByCategory returns up to limit documents with the given category.
func (s *Neo4jStore) DocumentsByCategory(ctx context.Context, category string, limit int) ([]*models.Document, error) {
	return s.queryDocuments(ctx, `
		MATCH (d:Document {category: $category})
		RETURN d ORDER BY d.id LIMIT $limit`,
		map[string]interface{}{"category": category, "limit": limit})
}

// Walk follows the NEXT chain up to maxDepth hops, closest chunk first. The
// depth bound is formatted into the pattern from a checked int because Cypher
// does not parameterize variable-length bounds.
func (s *Neo4jStore) Walk(ctx context.Context, chunkID string, dir Direction, maxDepth int) ([]*models.Chunk, error) {
	if maxDepth <= 0 {
		return nil, nil
	}
	if maxDepth > 100 {
		maxDepth = 100
	}
	var pattern string
	if dir == Forward {
		pattern = fmt.Sprintf("(c:Chunk {id: $id})-[:NEXT*1..%d]->(n:Chunk)", maxDepth)
	} else {
		pattern = fmt.Sprintf("(c:Chunk {id: $id})<-[:NEXT*1..%d]-(n:Chunk)", maxDepth)
	}
	return s.queryChunks(ctx,
		fmt.Sprintf(`MATCH path = %s RETURN n ORDER BY length(path)`, pattern),
		map[string]interface{}{"id": chunkID})
}

// Categories returns the distinct non-empty category values.
func (s *Neo4jStore) Categories(ctx context.Context) ([]string, error) {
	result, err := s.run(ctx, `
		MATCH (d:Document)
		WHERE d.category <> ''
		RETURN DISTINCT d.category AS category ORDER BY category`, nil)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rec := range result.Records {
		if v, ok := rec.Values[0].(string); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// Stats returns node counts.
func (s *Neo4jStore) Stats(ctx context.Context) (*models.GraphStats, error) {
	result, err := s.run(ctx, `
		OPTIONAL MATCH (d:Document)
		WITH count(d) AS docs, count(DISTINCT CASE WHEN d.category <> '' THEN d.category END) AS cats
		OPTIONAL MATCH (c:Chunk)
		RETURN docs, cats, count(c) AS chunks`, nil)
	if err != nil {
		return nil, err
	}
	stats := &models.GraphStats{}
	if len(result.Records) > 0 {
		rec := result.Records[0]
		if v, ok := rec.Values[0].(int64); ok {
			stats.Documents = v
		}
		if v, ok := rec.Values[1].(int64); ok {
			stats.Categories = v
		}
		if v, ok := rec.Values[2].(int64); ok {
			stats.Chunks = v
		}
	}
	return stats, nil
}

// Clear removes all nodes and edges.
func (s *Neo4jStore) Clear(ctx context.Context) error {
	_, err := s.run(ctx, `MATCH (n) DETACH DELETE n`, nil)
	return err
}

// Close shuts down the driver.
func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}
