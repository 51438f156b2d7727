// Command rbac-chat serves the role-scoped chat engine over HTTP or as an
// MCP stdio server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/finsolve/rbac-chat/cache"
	"github.com/finsolve/rbac-chat/classifier"
	"github.com/finsolve/rbac-chat/common/logger"
	"github.com/finsolve/rbac-chat/config"
	"github.com/finsolve/rbac-chat/embedding"
	"github.com/finsolve/rbac-chat/ingest"
	"github.com/finsolve/rbac-chat/mcpserver"
	"github.com/finsolve/rbac-chat/metrics"
	"github.com/finsolve/rbac-chat/orchestrator"
	"github.com/finsolve/rbac-chat/rbac"
	"github.com/finsolve/rbac-chat/rerank"
	"github.com/finsolve/rbac-chat/retrieval"
	"github.com/finsolve/rbac-chat/retriever"
	"github.com/finsolve/rbac-chat/server"
	"github.com/finsolve/rbac-chat/structured"
	"github.com/finsolve/rbac-chat/synthesis"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "rbac-chat",
		Short:        "Role-scoped chat over department data and documents",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults apply when omitted)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP gateway",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "mcp",
			Short: "Run as an MCP stdio server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMCP(cmd.Context())
			},
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// engine bundles everything both entry points need.
type engine struct {
	cfg     *config.Config
	store   *rbac.Store
	catalog *structured.Catalog
	orch    *orchestrator.Orchestrator
	tracker *metrics.Tracker
	cache   *cache.Retrieval
}

func buildEngine(ctx context.Context) (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store := rbac.NewStore(cfg.Roles)

	catalog, err := structured.NewCatalog(cfg.Data.Root)
	if err != nil {
		return nil, fmt.Errorf("load structured catalog: %w", err)
	}

	corpus, err := ingest.LoadDepartments(cfg.Data.Root, ingest.Options{
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("load department documents: %w", err)
	}
	logger.Infof("ingest: loaded %d document chunks", len(corpus))

	var searcher retriever.Searcher
	switch cfg.VectorDB.Provider {
	case "", "local":
		searcher = retriever.NewLocal(corpus)
	case "milvus":
		embed, err := embedding.NewProvider(cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("embedding provider: %w", err)
		}
		searcher, err = retriever.NewMilvus(ctx, cfg.VectorDB, embed)
		if err != nil {
			return nil, fmt.Errorf("milvus searcher: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported vectordb provider: %q", cfg.VectorDB.Provider)
	}

	retrievalCache := cache.NewRetrieval(cfg.RAG.CacheCapacity, time.Duration(cfg.RAG.CacheTTLSeconds)*time.Second)

	reranker, err := rerank.New(cfg.Rerank, cfg.HTTP)
	if err != nil {
		return nil, fmt.Errorf("reranker: %w", err)
	}

	synthesizer, err := synthesis.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("synthesis provider: %w", err)
	}

	tracker := metrics.NewTracker()
	metrics.MustRegister()

	retrievalExec := retrieval.NewExecutor(searcher, retrievalCache, reranker, synthesizer, cfg.Rerank.TopN)
	structuredExec := structured.NewExecutor(catalog)

	orch := orchestrator.New(store, catalog, classifier.NewRuleBased(), structuredExec, retrievalExec, tracker)

	return &engine{cfg: cfg, store: store, catalog: catalog, orch: orch, tracker: tracker, cache: retrievalCache}, nil
}

func runServe(ctx context.Context) error {
	logger.Development()
	defer logger.Sync()

	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}

	return server.New(eng.cfg, eng.store, eng.catalog, eng.orch, eng.tracker, eng.cache).Run()
}

func runMCP(ctx context.Context) error {
	// stdout carries the MCP protocol; zap development logs go to stderr.
	logger.Development()
	defer logger.Sync()

	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}

	return mcpserver.New(eng.store, eng.orch, eng.tracker).ServeStdio()
}
