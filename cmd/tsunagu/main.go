// Package main is the tsunagu CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/tsunagu/internal/config"
	"github.com/hyperjump/tsunagu/internal/embedding"
	"github.com/hyperjump/tsunagu/internal/graph"
	"github.com/hyperjump/tsunagu/internal/importer"
	"github.com/hyperjump/tsunagu/internal/mcp"
	"github.com/hyperjump/tsunagu/internal/models"
	"github.com/hyperjump/tsunagu/internal/search"
	"github.com/hyperjump/tsunagu/internal/server"
	"github.com/hyperjump/tsunagu/internal/vectorstore"
	"github.com/hyperjump/tsunagu/internal/watcher"
	"github.com/hyperjump/tsunagu/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tsunagu/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so running from the project dir
// picks up the local config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// Store credentials may live in a .env next to the binary or project.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "serve":
		runServe()
	case "mcp":
		runMCP()
	case "import":
		runImport()
	case "query":
		runQuery()
	case "context":
		runContext()
	case "categories":
		runCategories()
	case "stats":
		runStats()
	case "clear":
		runClear()
	case "version", "--version", "-v":
		fmt.Printf("tsunagu version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`tsunagu - hybrid graph and vector document retrieval

Usage: tsunagu <command> [flags]

Commands:
  serve       start the HTTP API server
  mcp         start the MCP server on stdio
  import      import markdown documents from a directory
  query       run a search from the command line
  context     expand the window around a chunk
  categories  list document categories
  stats       show store statistics
  clear       remove all documents from both stores
  version     print version
`)
}

// components bundles the wired stores and engine for a command run.
type components struct {
	Graph    graph.Store
	Vectors  vectorstore.Store
	Embedder embedding.Embedder
	Engine   *search.Engine
	Importer *importer.Importer
}

func (c *components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Vectors != nil {
		_ = c.Vectors.Close()
	}
	if c.Graph != nil {
		_ = c.Graph.Close()
	}
}

func initComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	g, err := graph.New(ctx, graph.Options{
		Backend:  cfg.Graph.Backend,
		Path:     cfg.Graph.Path,
		URI:      cfg.Graph.URI,
		Username: cfg.Graph.Username,
		Password: cfg.Graph.Password,
		Database: cfg.Graph.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("graph store: %w", err)
	}
	v, err := vectorstore.New(vectorstore.Options{
		Backend:    cfg.Vector.Backend,
		URL:        cfg.Vector.URL,
		APIKey:     cfg.Vector.APIKey,
		Collection: cfg.Vector.Collection,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		g.Close()
		return nil, fmt.Errorf("vector store: %w", err)
	}
	if err := v.CreateCollection(ctx); err != nil {
		logger.Warn("vector collection setup failed", zap.Error(err))
	}
	e, err := embedding.New(embedding.Options{
		Provider:   cfg.Embedding.Provider,
		URL:        cfg.Embedding.URL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		CacheSize:  cfg.Embedding.CacheSize,
	})
	if err != nil {
		v.Close()
		g.Close()
		return nil, fmt.Errorf("embedder: %w", err)
	}
	if e == nil {
		logger.Info("embedding disabled, semantic search will return no results")
	}
	engine := search.New(g, v, e, cfg.Search, logger)
	imp := importer.New(g, v, e, importer.Options{
		ChunkSize:    cfg.Chunking.ChunkSize,
		ChunkOverlap: cfg.Chunking.ChunkOverlap,
		BatchSize:    cfg.Embedding.BatchSize,
	}, logger)
	return &components{Graph: g, Vectors: v, Embedder: e, Engine: engine, Importer: imp}, nil
}

// setup parses common flags, loads config, and wires components. Exits on
// failure.
func setup(name string, args []string, register func(fs *flag.FlagSet)) (*components, *config.Config, *zap.Logger, []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	if register != nil {
		register(fs)
	}
	_ = fs.Parse(args)

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolvedPath))

	comps, err := initComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return comps, cfg, logger, fs.Args()
}

func runServe() {
	comps, cfg, logger, _ := setup("serve", os.Args[2:], nil)
	defer comps.Close()
	defer logger.Sync()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Import.Watch && len(cfg.Import.Directories) > 0 {
		w := watcher.NewWatcher(cfg.Import.Directories, cfg.Import.RecursiveOrDefault(),
			func(root, path string) {
				if err := comps.Importer.ImportFile(context.Background(), root, path); err != nil {
					logger.Warn("watch import failed", zap.String("path", path), zap.Error(err))
				}
			}, logger)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(comps.Engine, comps.Importer, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runMCP() {
	comps, _, logger, _ := setup("mcp", os.Args[2:], nil)
	defer comps.Close()
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := mcp.NewServer(comps.Engine, logger)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("MCP server failed", zap.Error(err))
	}
}

func runImport() {
	var recursive bool
	comps, cfg, logger, args := setup("import", os.Args[2:], func(fs *flag.FlagSet) {
		fs.BoolVar(&recursive, "recursive", true, "walk subdirectories")
	})
	defer comps.Close()
	defer logger.Sync()

	dirs := args
	if len(dirs) == 0 {
		dirs = cfg.Import.Directories
	}
	if len(dirs) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: tsunagu import [flags] <directory> [directory...]")
		os.Exit(1)
	}
	ctx := context.Background()
	for _, dir := range dirs {
		summary, err := comps.Importer.ImportDirectory(ctx, dir, recursive)
		if err != nil {
			logger.Fatal("Import failed", zap.String("dir", dir), zap.Error(err))
		}
		fmt.Printf("%s: %d documents, %d chunks", dir, summary.Documents, summary.Chunks)
		if len(summary.Failures) > 0 {
			fmt.Printf(", %d failed", len(summary.Failures))
			for _, f := range summary.Failures {
				fmt.Printf("\n  %s: %s", f.Path, f.Err)
			}
		}
		fmt.Println()
	}
}

func runQuery() {
	var limit int
	var category string
	var mode string
	var withContext bool
	var asJSON bool
	comps, _, logger, args := setup("query", os.Args[2:], func(fs *flag.FlagSet) {
		fs.IntVar(&limit, "limit", 0, "maximum number of results")
		fs.StringVar(&category, "category", "", "restrict to one category")
		fs.StringVar(&mode, "mode", "hybrid", "search mode: hybrid, semantic, or category")
		fs.BoolVar(&withContext, "context", false, "include surrounding chunk texts")
		fs.BoolVar(&asJSON, "json", false, "JSON output")
	})
	defer comps.Close()
	defer logger.Sync()

	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "Usage: tsunagu query [flags] <query>")
		os.Exit(1)
	}
	ctx := context.Background()

	var results []*models.ScoredChunk
	var err error
	switch mode {
	case "hybrid":
		results, err = comps.Engine.Search(ctx, search.Request{
			Query:          query,
			Limit:          limit,
			Category:       category,
			IncludeContext: withContext,
		})
	case "semantic":
		results, err = comps.Engine.SemanticSearch(ctx, query, limit, category)
	case "category":
		// The query arguments name the category to list.
		docs, listErr := comps.Engine.DocumentsByCategory(ctx, query, limit)
		if listErr != nil {
			logger.Fatal("Category listing failed", zap.Error(listErr))
		}
		if asJSON {
			printJSON(docs)
			return
		}
		if len(docs) == 0 {
			fmt.Println("No documents.")
			return
		}
		for i, d := range docs {
			fmt.Printf("%d. %s (%s)\n", i+1, d.Title, d.ID)
		}
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown mode: %s (want hybrid, semantic, or category)\n", mode)
		os.Exit(1)
	}
	if err != nil {
		logger.Fatal("Search failed", zap.Error(err))
	}
	if asJSON {
		printJSON(results)
		return
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, r := range results {
		title := r.DocumentID
		if r.Document != nil && r.Document.Title != "" {
			title = r.Document.Title
		}
		fmt.Printf("%d. %s (score %.3f", i+1, title, r.FinalScore)
		if r.GraphScore > 0 {
			fmt.Print(", via graph")
		}
		fmt.Printf(")\n   %s\n", utils.Truncate(r.Text, 200))
	}
}

func runContext() {
	var window int
	var asJSON bool
	comps, _, logger, args := setup("context", os.Args[2:], func(fs *flag.FlagSet) {
		fs.IntVar(&window, "window", -1, "chunks on each side (0 for just the chunk)")
		fs.BoolVar(&asJSON, "json", false, "JSON output")
	})
	defer comps.Close()
	defer logger.Sync()

	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: tsunagu context [flags] <chunk-id>")
		os.Exit(1)
	}
	cc, err := comps.Engine.ExpandContext(context.Background(), args[0], window)
	if err != nil {
		logger.Fatal("Context expansion failed", zap.Error(err))
	}
	if cc == nil {
		fmt.Fprintf(os.Stderr, "Chunk not found: %s\n", args[0])
		os.Exit(1)
	}
	if asJSON {
		printJSON(cc)
		return
	}
	// Reverse previous so the output reads in document order.
	for i := len(cc.Previous) - 1; i >= 0; i-- {
		fmt.Printf("  %s\n", cc.Previous[i].Text)
	}
	fmt.Printf("> %s\n", cc.Center.Text)
	for _, ch := range cc.Next {
		fmt.Printf("  %s\n", ch.Text)
	}
}

func runCategories() {
	comps, _, logger, _ := setup("categories", os.Args[2:], nil)
	defer comps.Close()
	defer logger.Sync()

	cats, err := comps.Engine.Categories(context.Background())
	if err != nil {
		logger.Fatal("Category listing failed", zap.Error(err))
	}
	for _, c := range cats {
		fmt.Println(c)
	}
}

func runStats() {
	comps, _, logger, _ := setup("stats", os.Args[2:], nil)
	defer comps.Close()
	defer logger.Sync()

	stats, err := comps.Engine.Statistics(context.Background())
	if err != nil {
		logger.Fatal("Stats failed", zap.Error(err))
	}
	printJSON(stats)
}

func runClear() {
	var yes bool
	comps, _, logger, _ := setup("clear", os.Args[2:], func(fs *flag.FlagSet) {
		fs.BoolVar(&yes, "yes", false, "skip confirmation")
	})
	defer comps.Close()
	defer logger.Sync()

	if !yes {
		fmt.Print("Remove all documents from both stores? [y/N] ")
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}
	ctx := context.Background()
	if err := comps.Graph.Clear(ctx); err != nil {
		logger.Fatal("Graph clear failed", zap.Error(err))
	}
	if err := comps.Vectors.DeleteCollection(ctx); err != nil {
		logger.Fatal("Vector clear failed", zap.Error(err))
	}
	if err := comps.Vectors.CreateCollection(ctx); err != nil {
		logger.Warn("vector collection recreate failed", zap.Error(err))
	}
	fmt.Println("Cleared.")
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
