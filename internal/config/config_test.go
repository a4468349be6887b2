package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if cfg.Server.Port != 8080 {
		t.Errorf("default port should be 8080, got %d", cfg.Server.Port)
	}
	if cfg.Chunking.ChunkSize != 600 || cfg.Chunking.ChunkOverlap != 100 {
		t.Errorf("unexpected chunking defaults: %+v", cfg.Chunking)
	}
	if cfg.Search.SemanticWeight != 0.7 {
		t.Errorf("default semantic weight should be 0.7, got %f", cfg.Search.SemanticWeight)
	}
	if cfg.Search.GraphScore != 0.5 {
		t.Errorf("default graph score should be 0.5, got %f", cfg.Search.GraphScore)
	}
	if cfg.Vector.Collection != "document_chunks" {
		t.Errorf("unexpected default collection %q", cfg.Vector.Collection)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("default dimensions should be 384, got %d", cfg.Embedding.Dimensions)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
debug: true
graph:
  backend: memory
vector:
  backend: memory
embedding:
  provider: mock
search:
  default_limit: 7
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug should be true")
	}
	if cfg.Graph.Backend != "memory" || cfg.Vector.Backend != "memory" {
		t.Errorf("backends not loaded: %+v %+v", cfg.Graph, cfg.Vector)
	}
	if cfg.Search.DefaultLimit != 7 {
		t.Errorf("default_limit should be 7, got %d", cfg.Search.DefaultLimit)
	}
	// Defaults still fill the rest.
	if cfg.Search.MaxLimit != 100 {
		t.Errorf("max_limit default missing, got %d", cfg.Search.MaxLimit)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
