package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/agrismart/assistant/internal/agent"
	"github.com/agrismart/assistant/internal/audit"
	"github.com/agrismart/assistant/internal/config"
	"github.com/agrismart/assistant/internal/httpkit"
	"github.com/agrismart/assistant/internal/inventory"
	"github.com/agrismart/assistant/internal/llm"
	"github.com/agrismart/assistant/internal/memory"
	"github.com/agrismart/assistant/internal/mqtt"
	"github.com/agrismart/assistant/internal/prompts"
	"github.com/agrismart/assistant/internal/tools"
)

// app is the wired conversation engine plus its optional side stores.
type app struct {
	catalog   inventory.Catalog
	assistant *agent.Assistant
	audit     *audit.Store
	mqtt      *mqtt.Publisher
}

// loadCatalog returns the configured catalog, or the built-in one.
func loadCatalog(cfg *config.Config) (inventory.Catalog, error) {
	if cfg.Inventory.CatalogFile == "" {
		return inventory.Default(), nil
	}
	cat, err := inventory.LoadFile(cfg.Inventory.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", cfg.Inventory.CatalogFile, err)
	}
	return cat, nil
}

// buildApp wires the engine from cfg. Booking events are published only
// when publishBookings is set and a broker is configured. Call close
// when done.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, publishBookings bool) (*app, error) {
	a := &app{}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	a.catalog = catalog
	registry := tools.NewFarmRegistry(catalog)

	// --- Model backends ---
	// Both tiers share one HTTP client. Without an API key the chain
	// answers every turn offline.
	var primary *agent.Loop
	var secondary llm.Client
	if cfg.Gemini.Configured() {
		httpClient := modelHTTPClient(logger)

		primaryClient, err := llm.NewGeminiClient(ctx, geminiConfig(cfg, cfg.Gemini.PrimaryModel, httpClient), logger)
		if err != nil {
			return nil, fmt.Errorf("primary model: %w", err)
		}
		primary = agent.NewLoop(agent.LoopConfig{
			Client:       primaryClient,
			Tools:        registry,
			Declarations: agent.Declarations(registry.List()),
			System: prompts.SystemPrompt(cfg.Agent.SystemPrompt,
				tools.ListItemsTool, tools.GetItemDetailsTool, tools.BookItemTool),
			MaxRounds: cfg.Agent.MaxToolRounds,
			Parallel:  cfg.Agent.ParallelTools,
			Logger:    logger,
		})

		if cfg.Gemini.SecondaryModel != "" {
			secondaryClient, err := llm.NewGeminiClient(ctx, geminiConfig(cfg, cfg.Gemini.SecondaryModel, httpClient), logger)
			if err != nil {
				return nil, fmt.Errorf("secondary model: %w", err)
			}
			secondary = secondaryClient
		}
		logger.Info("model backends configured",
			"primary", cfg.Gemini.PrimaryModel,
			"secondary", cfg.Gemini.SecondaryModel,
		)
	} else {
		logger.Warn("no Gemini API key configured, answering offline only")
	}

	chain := agent.NewChain(agent.ChainConfig{
		Primary:        primary,
		Secondary:      secondary,
		DisableOffline: !cfg.Agent.Offline(),
		Logger:         logger,
	})

	greeting := cfg.Agent.Greeting
	if greeting == "" {
		greeting = prompts.Greeting
	}

	assistantCfg := agent.AssistantConfig{
		Chain:  chain,
		Store:  memory.NewStore(greeting),
		Logger: logger,
	}

	// --- Audit trail ---
	if cfg.Audit.Enabled() {
		store, err := audit.Open(cfg.Audit.Driver, cfg.Audit.DSN)
		if err != nil {
			return nil, err
		}
		a.audit = store
		assistantCfg.Audit = store
		logger.Info("audit store opened", "driver", cfg.Audit.Driver)
	}

	// --- Booking events ---
	if publishBookings && cfg.MQTT.Enabled() {
		pub := mqtt.New(cfg.MQTT, logger)
		if err := pub.Start(ctx); err != nil {
			a.close(context.Background(), logger)
			return nil, err
		}
		a.mqtt = pub
		assistantCfg.Bookings = pub
	}

	a.assistant = agent.NewAssistant(assistantCfg)
	return a, nil
}

// modelHTTPClient is the client shared by both model tiers. It makes one
// attempt per request: a failed dial goes straight back to the chain,
// which moves to the next tier. Send bounds each request with its own
// timeout, so the client has none.
func modelHTTPClient(logger *slog.Logger, opts ...httpkit.Option) *http.Client {
	return httpkit.NewClient(append([]httpkit.Option{
		httpkit.WithTimeout(0),
		httpkit.WithLogger(logger),
	}, opts...)...)
}

func geminiConfig(cfg *config.Config, model string, httpClient *http.Client) llm.GeminiConfig {
	return llm.GeminiConfig{
		APIKey:      cfg.Gemini.APIKey,
		Model:       model,
		BaseURL:     cfg.Gemini.BaseURL,
		Timeout:     cfg.Gemini.Timeout,
		Temperature: cfg.Gemini.Temperature,
		HTTPClient:  httpClient,
	}
}

// close releases the side stores. Errors are logged.
func (a *app) close(ctx context.Context, logger *slog.Logger) {
	if a.mqtt != nil {
		if err := a.mqtt.Stop(ctx); err != nil {
			logger.Error("mqtt shutdown failed", "error", err)
		}
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			logger.Error("audit store close failed", "error", err)
		}
	}
}
