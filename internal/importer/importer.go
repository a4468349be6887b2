// Package importer ingests markdown documents into the graph and vector
// stores.
package importer

import (
	"context"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/tsunagu/internal/chunker"
	"github.com/hyperjump/tsunagu/internal/embedding"
	"github.com/hyperjump/tsunagu/internal/graph"
	"github.com/hyperjump/tsunagu/internal/models"
	"github.com/hyperjump/tsunagu/internal/vectorstore"
)

// defaultCategory is assigned to files sitting directly in an import root.
const defaultCategory = "general"

// Importer chunks markdown files, embeds the chunks, and writes both stores.
type Importer struct {
	graph     graph.Store
	vectors   vectorstore.Store
	embedder  embedding.Embedder // nil skips the vector store entirely
	chunker   *chunker.Chunker
	batchSize int
	log       *zap.Logger
}

// Options configures New.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// New creates an importer.
func New(g graph.Store, v vectorstore.Store, e embedding.Embedder, opts Options, log *zap.Logger) *Importer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 8
	}
	return &Importer{
		graph:     g,
		vectors:   v,
		embedder:  e,
		chunker:   chunker.New(opts.ChunkSize, opts.ChunkOverlap),
		batchSize: opts.BatchSize,
		log:       log,
	}
}

// FileError records a single file that failed to import.
type FileError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Summary reports the outcome of an import run. A failed file is counted in
// Files but not in Documents.
type Summary struct {
	Files     int         `json:"files"`
	Documents int         `json:"documents"`
	Chunks    int         `json:"chunks"`
	Failures  []FileError `json:"failures,omitempty"`
}

// DocumentID derives the stable document ID for a file path.
func DocumentID(path string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(filepath.Clean(path)))
	return fmt.Sprintf("doc_%08x", h.Sum32())
}

// chunkID derives a stable UUID for a chunk so re-importing a file overwrites
// its points instead of accumulating duplicates.
func chunkID(docID string, position int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", docID, position))).String()
}

func isMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

// ImportDirectory imports every markdown file under root, then links documents
// that share a category. A file that fails is recorded in the summary and does
// not abort the run.
func (im *Importer) ImportDirectory(ctx context.Context, root string, recursive bool) (*Summary, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if isMarkdown(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	summary := &Summary{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Files++
		chunks, err := im.importFile(ctx, root, path)
		if err != nil {
			im.log.Warn("file import failed", zap.String("path", path), zap.Error(err))
			summary.Failures = append(summary.Failures, FileError{Path: path, Err: err.Error()})
			continue
		}
		summary.Documents++
		summary.Chunks += chunks
	}

	if err := im.graph.RelateByCategory(ctx); err != nil {
		return summary, fmt.Errorf("failed to relate documents by category: %w", err)
	}
	im.log.Info("import finished",
		zap.String("root", root),
		zap.Int("files", summary.Files),
		zap.Int("documents", summary.Documents),
		zap.Int("chunks", summary.Chunks),
		zap.Int("failures", len(summary.Failures)))
	return summary, nil
}

// ImportFile imports a single markdown file and refreshes category links.
// root determines the document's category the same way ImportDirectory does.
func (im *Importer) ImportFile(ctx context.Context, root, path string) error {
	if !isMarkdown(path) {
		return fmt.Errorf("not a markdown file: %s", path)
	}
	if _, err := im.importFile(ctx, root, path); err != nil {
		return err
	}
	return im.graph.RelateByCategory(ctx)
}

// importFile ingests one file and returns the number of chunks written.
func (im *Importer) importFile(ctx context.Context, root, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}
	fm, body := parseFrontMatter(string(data))

	title := fm.Title
	if title == "" {
		title = extractTitle(body)
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	category := fm.Category
	if category == "" {
		category = categoryFromPath(root, path)
	}

	docID := DocumentID(path)
	doc := &models.Document{
		ID:       docID,
		Title:    title,
		Category: category,
		Path:     path,
	}
	if err := im.graph.MergeDocument(ctx, doc); err != nil {
		return 0, fmt.Errorf("failed to merge document: %w", err)
	}

	texts := im.chunker.Chunk(body)
	chunks := make([]*models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &models.Chunk{
			ID:         chunkID(docID, i),
			DocumentID: docID,
			Position:   i,
			Text:       text,
		}
	}
	if err := im.graph.MergeChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to merge chunks: %w", err)
	}

	if len(fm.Tags) > 0 {
		if err := im.graph.AddTopics(ctx, docID, fm.Tags); err != nil {
			return 0, fmt.Errorf("failed to add topics: %w", err)
		}
	}
	for _, ref := range fm.Related {
		target := ref
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), ref)
		}
		if err := im.graph.Relate(ctx, docID, DocumentID(target), models.RelRelatedTo); err != nil {
			return 0, fmt.Errorf("failed to relate %s: %w", ref, err)
		}
	}

	if err := im.embedChunks(ctx, doc, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// embedChunks embeds chunk texts in batches and upserts the points. A failed
// batch falls back to zero vectors so the chunks stay retrievable through the
// graph even when the embedding provider is down.
func (im *Importer) embedChunks(ctx context.Context, doc *models.Document, chunks []*models.Chunk) error {
	if im.embedder == nil || len(chunks) == 0 {
		return nil
	}
	dims := im.embedder.Dimensions()
	points := make([]*vectorstore.Point, 0, len(chunks))
	for i := 0; i < len(chunks); i += im.batchSize {
		end := i + im.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]
		texts := make([]string, len(batch))
		for j, ch := range batch {
			texts[j] = ch.Text
		}
		vectors, err := im.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			im.log.Warn("embedding batch failed, storing zero vectors",
				zap.String("doc_id", doc.ID), zap.Error(err))
			vectors = make([][]float32, len(batch))
			for j := range vectors {
				vectors[j] = make([]float32, dims)
			}
		}
		for j, ch := range batch {
			points = append(points, &vectorstore.Point{
				ID:     ch.ID,
				Vector: vectors[j],
				Payload: map[string]interface{}{
					"text":     ch.Text,
					"doc_id":   doc.ID,
					"position": ch.Position,
					"title":    doc.Title,
					"category": doc.Category,
					"path":     doc.Path,
				},
			})
		}
	}
	if err := im.vectors.Upsert(ctx, points); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return nil
}

// categoryFromPath derives a category from the file's parent directory
// relative to the import root. Files directly in the root get the default.
func categoryFromPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = path
	}
	dir := filepath.Dir(rel)
	if dir == "." || dir == string(filepath.Separator) {
		return defaultCategory
	}
	return filepath.Base(dir)
}
