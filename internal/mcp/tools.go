package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hyperjump/tsunagu/internal/models"
	"github.com/hyperjump/tsunagu/internal/search"
)

// SearchInput is the input schema for the search_documents tool.
type SearchInput struct {
	Query    string `json:"query" jsonschema:"the search query"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of results to return"`
	Category string `json:"category,omitempty" jsonschema:"restrict results to one category"`
}

// SearchResult is a single hit in SearchOutput.
type SearchResult struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	Title         string  `json:"title,omitempty"`
	Category      string  `json:"category,omitempty"`
	Text          string  `json:"text"`
	SemanticScore float64 `json:"semantic_score"`
	GraphScore    float64 `json:"graph_score"`
	FinalScore    float64 `json:"final_score"`
}

// SearchOutput is the output schema for the search_documents tool.
type SearchOutput struct {
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// GetDocumentInput is the input schema for the get_document tool.
type GetDocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document ID"`
}

// GetDocumentOutput is the output schema for the get_document tool.
type GetDocumentOutput struct {
	Document *models.Document `json:"document"`
	Chunks   []*models.Chunk  `json:"chunks"`
}

// ExpandContextInput is the input schema for the expand_context tool. Window
// is a pointer so an explicit 0 (center chunk only) is distinguishable from
// an omitted field, which means the server default.
type ExpandContextInput struct {
	ChunkID string `json:"chunk_id" jsonschema:"the chunk to expand around"`
	Window  *int   `json:"window,omitempty" jsonschema:"chunks to fetch on each side; 0 returns only the chunk itself"`
}

// ExpandContextOutput is the output schema for the expand_context tool.
type ExpandContextOutput struct {
	Center   *models.Chunk    `json:"center"`
	Previous []*models.Chunk  `json:"previous"`
	Next     []*models.Chunk  `json:"next"`
	Document *models.Document `json:"document,omitempty"`
}

// ListCategoriesOutput is the output schema for the list_categories tool.
type ListCategoriesOutput struct {
	Categories []string `json:"categories"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Search the document corpus with hybrid semantic and graph retrieval",
	}, s.handleSearch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_document",
		Description: "Fetch a document and its chunks by document ID",
	}, s.handleGetDocument)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "expand_context",
		Description: "Fetch the chunks surrounding a chunk in its document",
	}, s.handleExpandContext)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_categories",
		Description: "List the document categories",
	}, s.handleListCategories)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_statistics",
		Description: "Report graph and vector store statistics",
	}, s.handleStatistics)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	results, err := s.engine.Search(ctx, search.Request{
		Query:    input.Query,
		Limit:    input.Limit,
		Category: input.Category,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}
	out := SearchOutput{Results: make([]SearchResult, len(results)), Count: len(results)}
	for i, r := range results {
		sr := SearchResult{
			ChunkID:       r.ChunkID,
			DocumentID:    r.DocumentID,
			Text:          r.Text,
			SemanticScore: r.SemanticScore,
			GraphScore:    r.GraphScore,
			FinalScore:    r.FinalScore,
		}
		if r.Document != nil {
			sr.Title = r.Document.Title
			sr.Category = r.Document.Category
		}
		out.Results[i] = sr
	}
	return nil, out, nil
}

func (s *Server) handleGetDocument(ctx context.Context, _ *mcp.CallToolRequest, input GetDocumentInput) (*mcp.CallToolResult, GetDocumentOutput, error) {
	doc, chunks, err := s.engine.Document(ctx, input.DocumentID)
	if err != nil {
		return nil, GetDocumentOutput{}, err
	}
	if doc == nil {
		return nil, GetDocumentOutput{}, fmt.Errorf("document not found: %s", input.DocumentID)
	}
	return nil, GetDocumentOutput{Document: doc, Chunks: chunks}, nil
}

func (s *Server) handleExpandContext(ctx context.Context, _ *mcp.CallToolRequest, input ExpandContextInput) (*mcp.CallToolResult, ExpandContextOutput, error) {
	window := -1
	if input.Window != nil {
		window = *input.Window
	}
	cc, err := s.engine.ExpandContext(ctx, input.ChunkID, window)
	if err != nil {
		return nil, ExpandContextOutput{}, err
	}
	if cc == nil {
		return nil, ExpandContextOutput{}, fmt.Errorf("chunk not found: %s", input.ChunkID)
	}
	return nil, ExpandContextOutput{
		Center:   cc.Center,
		Previous: cc.Previous,
		Next:     cc.Next,
		Document: cc.Document,
	}, nil
}

func (s *Server) handleListCategories(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, ListCategoriesOutput, error) {
	cats, err := s.engine.Categories(ctx)
	if err != nil {
		return nil, ListCategoriesOutput{}, err
	}
	if cats == nil {
		cats = []string{}
	}
	return nil, ListCategoriesOutput{Categories: cats}, nil
}

func (s *Server) handleStatistics(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, models.Stats, error) {
	stats, err := s.engine.Statistics(ctx)
	if err != nil {
		return nil, models.Stats{}, err
	}
	return nil, *stats, nil
}
