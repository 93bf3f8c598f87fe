// Package cmd provides the tabdoc CLI command tree.
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Dagger77/tabdoc/cli/repl"
	"github.com/Dagger77/tabdoc/ingest"
	"github.com/Dagger77/tabdoc/server"
)

// Execute runs the root CLI command.
func Execute() error {
	if len(os.Args) < 2 {
		return printUsage()
	}
	switch os.Args[1] {
	case "repl", "interactive":
		return runREPL()
	case "ask":
		return runAsk()
	case "serve":
		return runServe()
	case "ingest":
		return runIngest()
	case "db":
		return runDB()
	case "version":
		fmt.Println("tabdoc v0.1.0")
		return nil
	case "help", "--help", "-h":
		return printUsage()
	default:
		return fmt.Errorf("unknown command: %s\nRun 'tabdoc help' for usage.", os.Args[1])
	}
}

func printUsage() error {
	fmt.Println(`tabdoc — question router over tabular data and documents

Usage:
  tabdoc <command> [options]

Commands:
  repl              Start an interactive question session
  ask <question>    Answer a single question and exit
  serve [addr]      Start the HTTP API server (default :8080)
  ingest            Load the CSV tables and index the RTF documents
  db status         Show database and index readiness
  version           Print version
  help              Show this help

Environment:
  TABDOC_CONFIG     Path to YAML config file (default: tabdoc.yaml)
  OPENAI_API_KEY    API key referenced as ${OPENAI_API_KEY} in config`)
	return nil
}

func configPath() string {
	return os.Getenv("TABDOC_CONFIG")
}

func runREPL() error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.warnIfNotReady(ctx)

	return repl.New(a.router, a.store).Start(ctx)
}

func runAsk() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: tabdoc ask <question>")
	}
	question := strings.Join(os.Args[2:], " ")

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.warnIfNotReady(ctx)

	result, err := a.router.RunStream(ctx, question, func(frag string) {
		fmt.Print(frag)
	})
	if err != nil {
		return err
	}
	fmt.Println()
	log.Printf("intent=%s nodes=%v took=%s", result.Intent, result.Visited, result.Duration.Round(time.Millisecond))
	return nil
}

func runServe() error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Populate empty stores before accepting traffic.
	if ok, err := a.ready(ctx); err == nil && !ok {
		log.Printf("data stores empty, running ingestion")
		if err := a.ingestAll(ctx); err != nil {
			log.Printf("ingestion failed: %v (serving anyway, /healthz will report not_ready)", err)
		}
	}

	addr := a.cfg.Server.Addr
	if len(os.Args) > 2 {
		addr = os.Args[2]
	}

	srv := server.New(a.router, a.store, a.broker, a.ready)
	log.Printf("Starting tabdoc server on %s", addr)
	return srv.Run(addr)
}

func runIngest() error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.ingestAll(ctx)
}

func runDB() error {
	if len(os.Args) < 3 || os.Args[2] != "status" {
		return fmt.Errorf("usage: tabdoc db status")
	}

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	tablesOK, err := ingest.TablesReady(ctx, a.store.DB())
	if err != nil {
		return err
	}
	docs, err := a.kb.DocCount()
	if err != nil {
		return err
	}

	fmt.Printf("database:  %s\n", a.cfg.Data.DBPath)
	fmt.Printf("tables:    %s\n", statusWord(tablesOK))
	fmt.Printf("index:     %s\n", a.cfg.Data.IndexPath)
	fmt.Printf("documents: %d\n", docs)
	return nil
}

func statusWord(ok bool) string {
	if ok {
		return "ready"
	}
	return "empty"
}
