// ABOUTME: Entry point for the nichescout server.
// ABOUTME: Wires config, providers, the memory store, and the HTTP server with signal handling.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/2389-research/nichescout/browser"
	"github.com/2389-research/nichescout/config"
	"github.com/2389-research/nichescout/llm"
	"github.com/2389-research/nichescout/memory"
	"github.com/2389-research/nichescout/pipeline"
	"github.com/2389-research/nichescout/scrape"
	"github.com/2389-research/nichescout/web"
)

var version = "dev"

func main() {
	loadEnv()
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "nichescout.yaml", "Path to YAML config file")
		addr        = flag.String("addr", "", "HTTP listen address (overrides config)")
		dataDir     = flag.String("data-dir", "", "Data directory (overrides config)")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("nichescout", version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error: creating data directory: %v\n", err)
		return 1
	}

	store, err := memory.Open(filepath.Join(cfg.DataDir, "nichescout.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: opening memory store: %v\n", err)
		return 1
	}
	defer store.Close()

	// A missing reasoning key is not a startup failure; runs fail fast with a
	// configuration error instead, so the server can still serve past reports.
	if cfg.Reasoning.APIKey == "" {
		log.Printf("warning: OPENAI_API_KEY not set, runs will fail preflight")
	}

	searcher := scrape.NewClient(scrape.Config{
		BaseURL: cfg.Scrape.BaseURL,
		APIKey:  cfg.Scrape.APIKey,
		Delay:   cfg.ScrapeDelay(),
		Timeout: cfg.CallTimeout(),
	})

	reasoner := llm.NewClient(cfg.Reasoning.APIKey, cfg.Reasoning.Model, cfg.Reasoning.BaseURL)

	executor := browser.NewExecutor(browser.ExecutorConfig{
		Headless:      cfg.Browser.Headless,
		NavTimeout:    cfg.NavTimeout(),
		ScreenshotDir: filepath.Join(cfg.DataDir, "screenshots"),
		Bin:           cfg.Browser.Bin,
	})
	defer executor.Close()

	checker := &browser.Checker{
		Manuals:  browser.NewManualClient(cfg.Manual.BaseURL, cfg.Manual.APIKey, cfg.CallTimeout()),
		Executor: executor,
	}

	var competitors []pipeline.CompetitorTarget
	for _, c := range cfg.Pipeline.Competitors {
		competitors = append(competitors, pipeline.CompetitorTarget{Name: c.Name, URLs: c.URLs})
	}

	registry := pipeline.NewRegistry(cfg.RegistryTTL())
	defer registry.Close()

	orch := pipeline.NewOrchestrator(pipeline.Config{
		Searcher:         searcher,
		Reasoner:         reasoner,
		Checker:          checker,
		Memory:           store,
		Competitors:      competitors,
		MaxCompetitors:   cfg.Pipeline.MaxCompetitors,
		CheckConcurrency: cfg.Pipeline.CheckConcurrency,
		CallTimeout:      cfg.CallTimeout(),
		RunTimeout:       cfg.RunTimeout(),
		ScrapeDelay:      cfg.ScrapeDelay(),
	}, registry)

	server, err := web.NewServer(web.ServerConfig{
		Addr:     cfg.Addr,
		Orch:     orch,
		Registry: registry,
		Store:    store,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	// Set up context with signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	log.Printf("nichescout listening addr=%s data_dir=%s", cfg.Addr, cfg.DataDir)
	if err := server.Start(ctx); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
