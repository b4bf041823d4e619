package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ziadkadry99/localsort-core/internal/analyzer"
	"github.com/ziadkadry99/localsort-core/internal/cache"
	"github.com/ziadkadry99/localsort-core/internal/clock"
	"github.com/ziadkadry99/localsort-core/internal/config"
	"github.com/ziadkadry99/localsort-core/internal/core"
	"github.com/ziadkadry99/localsort-core/internal/embeddings"
	"github.com/ziadkadry99/localsort-core/internal/extractor"
	"github.com/ziadkadry99/localsort-core/internal/fileref"
	"github.com/ziadkadry99/localsort-core/internal/foldermatcher"
	"github.com/ziadkadry99/localsort-core/internal/modelruntime"
	"github.com/ziadkadry99/localsort-core/internal/pathcoord"
	"github.com/ziadkadry99/localsort-core/internal/queue"
	"github.com/ziadkadry99/localsort-core/internal/relationship"
	"github.com/ziadkadry99/localsort-core/internal/vectorstore"
)

// docCacheSize and imgCacheSize are the Analysis Cache capacities.
const (
	docCacheSize = 500
	imgCacheSize = 300
	cacheTTL     = 30 * time.Minute
)

// app bundles every long-lived collaborator the CLI commands need,
// assembled once from a loaded Config: the model backend, the circuit
// breaker registry, the embedder, the vector store, the fileref
// registry, the relationship index, both embedding queues, the folder
// matcher, and finally the Analyzer and Coordinator.
type app struct {
	Core          *core.CoreContext
	Config        *config.Config
	Clock         clock.Clock
	Queues        *queue.Manager
	Store         *vectorstore.ChromemStore
	Refs          *fileref.Registry
	Relationships *relationship.Index
	Analyzer      *analyzer.Analyzer
	PathCoord     *pathcoord.Coordinator
}

func buildApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	clk := clock.New()

	cc, err := core.New(cfg, clk, nil, verbose)
	if err != nil {
		return nil, fmt.Errorf("building core context: %w", err)
	}

	stateDir := cfg.StateDir
	if stateDir == "" {
		stateDir = ".localsort"
	}

	embedder, err := embeddings.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("building embedder: %w", err)
	}
	store, err := vectorstore.NewChromemStore(embedder, clk)
	if err != nil {
		return nil, fmt.Errorf("building vector store: %w", err)
	}
	if err := store.Load(context.Background(), stateDir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: loading persisted vector store: %v\n", err)
	}

	refs, err := fileref.Open(filepath.Join(stateDir, "fileref.db"))
	if err != nil {
		return nil, fmt.Errorf("opening fileref registry: %w", err)
	}

	relIdx, err := relationship.Open(filepath.Join(stateDir, "knowledge-relationships.json"), clk)
	if err != nil {
		return nil, fmt.Errorf("opening relationship index: %w", err)
	}

	sink := vectorstore.NewQueueSink(store)
	analysisQ, err := queue.New(queue.StageAnalysis, filepath.Join(stateDir, "queue-analysis.json"), sink, clk,
		queue.WithBatchSize(cfg.BatchSize), queue.WithFlushDelay(time.Duration(cfg.FlushDelayMs)*time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("building analysis queue: %w", err)
	}
	organizeQ, err := queue.New(queue.StageOrganize, filepath.Join(stateDir, "queue-organize.json"), sink, clk,
		queue.WithBatchSize(cfg.BatchSize), queue.WithFlushDelay(time.Duration(cfg.FlushDelayMs)*time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("building organize queue: %w", err)
	}
	queues := queue.NewManager(analysisQ, organizeQ)

	backend, err := modelruntime.NewBackend(cfg.Backend, cfg.OllamaHost)
	if err != nil {
		return nil, fmt.Errorf("building model backend: %w", err)
	}
	runtime := modelruntime.New(backend, cfg.VisionModel, cc.Breakers, nil, clk)

	matcher := foldermatcher.New(store, runtime, clk, cfg.FolderMatchConfidence)

	docCache := cache.New(docCacheSize, cacheTTL, clk)
	imgCache := cache.New(imgCacheSize, cacheTTL, clk)

	a := analyzer.New(runtime, extractor.NewNative(), docCache, imgCache, matcher, queues, cfg, clk)
	pc := pathcoord.New(refs, docCache, imgCache, queues, store, clk)

	return &app{
		Core:          cc,
		Config:        cfg,
		Clock:         clk,
		Queues:        queues,
		Store:         store,
		Refs:          refs,
		Relationships: relIdx,
		Analyzer:      a,
		PathCoord:     pc,
	}, nil
}

func (a *app) StateDir() string {
	if a.Config.StateDir != "" {
		return a.Config.StateDir
	}
	return ".localsort"
}
