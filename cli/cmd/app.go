package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/Dagger77/tabdoc/agents/classifier"
	"github.com/Dagger77/tabdoc/agents/ragagent"
	"github.com/Dagger77/tabdoc/agents/sqlagent"
	"github.com/Dagger77/tabdoc/agents/summary"
	"github.com/Dagger77/tabdoc/config"
	"github.com/Dagger77/tabdoc/engine/graph"
	"github.com/Dagger77/tabdoc/engine/stream"
	"github.com/Dagger77/tabdoc/ingest"
	"github.com/Dagger77/tabdoc/knowledge"
	"github.com/Dagger77/tabdoc/orchestrator"
	"github.com/Dagger77/tabdoc/storage/adapters/sqlite"
)

// app holds everything a command needs: the config, the shared SQLite
// store, the document index, the event broker, and the compiled router.
type app struct {
	cfg    *config.Config
	store  *sqlite.Store
	kb     *knowledge.BleveIndex
	broker *stream.Broker
	router *orchestrator.Router
}

// buildApp wires the full stack from the YAML config.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}

	provider, err := cfg.BuildProvider()
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.Data.DBPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	kb, err := knowledge.NewBleveIndex(cfg.Data.IndexPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open index: %w", err)
	}

	broker := stream.NewBroker()
	router, err := orchestrator.New(
		classifier.New(provider),
		sqlagent.New(provider, store.DB(), sqlagent.WithMaxRetries(cfg.Router.SQLMaxRetries)),
		ragagent.New(provider, kb, ragagent.WithTopK(cfg.Router.RAGTopK)),
		summary.New(provider),
		orchestrator.WithNodeTimeout(cfg.NodeTimeout()),
		orchestrator.WithEventFunc(func(evt graph.Event) {
			broker.Publish(stream.Event{Type: string(evt.Type), Data: evt.NodeID})
		}),
	)
	if err != nil {
		kb.Close()
		store.Close()
		return nil, err
	}

	return &app{cfg: cfg, store: store, kb: kb, broker: broker, router: router}, nil
}

func (a *app) Close() {
	a.kb.Close()
	a.store.Close()
}

// ready reports whether both the tables and the document index hold data.
func (a *app) ready(ctx context.Context) (bool, error) {
	ok, err := ingest.TablesReady(ctx, a.store.DB())
	if err != nil || !ok {
		return false, err
	}
	n, err := a.kb.DocCount()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ingestAll runs both ingestion pipelines.
func (a *app) ingestAll(ctx context.Context) error {
	log.Printf("Loading CSV tables from %s", a.cfg.Data.Dir)
	if err := ingest.LoadTables(ctx, a.store.DB(), a.cfg.Data.Dir); err != nil {
		return err
	}
	log.Printf("Tables loaded into %s", a.cfg.Data.DBPath)

	log.Printf("Indexing RTF documents from %s", a.cfg.Data.DocsDir)
	n, err := ingest.LoadDocs(ctx, a.kb, a.cfg.Data.DocsDir)
	if err != nil {
		return err
	}
	log.Printf("%d documents indexed", n)
	return nil
}

// warnIfNotReady logs a hint when the data stores look empty.
func (a *app) warnIfNotReady(ctx context.Context) {
	ok, err := a.ready(ctx)
	if err != nil {
		log.Printf("readiness check failed: %v", err)
		return
	}
	if !ok {
		log.Printf("data stores look empty; run 'tabdoc ingest' first")
	}
}
