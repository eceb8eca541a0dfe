package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vampirenirmal/alphaaudio/internal/agent"
	"github.com/vampirenirmal/alphaaudio/internal/catalog"
	"github.com/vampirenirmal/alphaaudio/internal/config"
	"github.com/vampirenirmal/alphaaudio/internal/core"
	"github.com/vampirenirmal/alphaaudio/internal/export"
	"github.com/vampirenirmal/alphaaudio/internal/storage"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	closer   io.Closer
	selector *agent.EndpointSelector
	roles    *agent.Roles
	catalog  *catalog.Catalog
	orch     *core.Orchestrator
	exporter *export.Exporter
}

func (a *app) Close() error {
	return a.closer.Close()
}

// loadConfig reads the config and sets up logging.
func loadConfig() (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closer := setupLogger(cfg.Logging)
	if cfg.Source == "" {
		logger.Warn("no config file found, using defaults")
	} else {
		logger.Debug("config loaded", "path", cfg.Source)
	}
	return cfg, logger, closer, nil
}

// candidateModels returns the configured models first, then the model file.
func candidateModels(cfg *config.Config, logger *slog.Logger) []string {
	return catalog.MergeModels(cfg.AI.Models, catalog.LoadModelList(cfg.AI.ModelsFile, logger))
}

func newSelector(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*agent.EndpointSelector, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	base, err := agent.NewGeminiClient(ctx, cfg.AI.APIKey, "")
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	// One limiter for every model so switching endpoints does not reset it.
	limits := cfg.Limits
	limiter := agent.NewLimiter(limits.RateLimit.RequestsPerMinute, limits.RateLimit.BurstSize)

	wrap := func(model string, c agent.AIClient) agent.AIClient {
		return agent.NewClient(c, model,
			agent.WithRetry(limits.MaxRetries),
			agent.WithBackoff(limits.RetryBackoff),
			agent.WithTimeout(cfg.AI.Timeout),
			agent.WithLimiter(limiter),
			agent.WithLogger(logger),
		)
	}

	return agent.NewEndpointSelector(candidateModels(cfg, logger), agent.GeminiFactory(base),
		agent.WithSelectionTTL(cfg.AI.SelectionTTL),
		agent.WithClientWrapper(wrap),
		agent.WithProbeLimits(limiter, cfg.AI.Timeout),
		agent.WithSelectorLogger(logger),
	), nil
}

func newStore(cfg *config.Config) (storage.Storage, error) {
	switch cfg.Export.Backend {
	case "none":
		return nil, nil
	case "s3":
		s3 := cfg.Export.S3
		return storage.NewS3Store(storage.S3Config{
			Endpoint:  s3.Endpoint,
			Region:    s3.Region,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			UseSSL:    s3.UseSSL,
		})
	default:
		return storage.NewFileSystem(cfg.Paths.ExportDir), nil
	}
}

func newExporter(cfg *config.Config, logger *slog.Logger) (*export.Exporter, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating export store: %w", err)
	}
	return export.NewExporter(store, storage.ParseNamingStrategy(cfg.Export.Naming), logger), nil
}

// newApp wires the full stack.
func newApp(ctx context.Context) (*app, error) {
	cfg, logger, closer, err := loadConfig()
	if err != nil {
		return nil, err
	}

	selector, err := newSelector(ctx, cfg, logger)
	if err != nil {
		closer.Close()
		return nil, err
	}

	prompts := catalog.LoadTemplates(cfg.Paths.PromptsFile, logger)
	roles := agent.NewRoles(cfg.Paths.PromptsDir, prompts, agent.NewPromptCache()).WithLogger(logger)

	cat, err := catalog.Load(ctx, cfg.Paths.DataDir, logger)
	if err != nil {
		closer.Close()
		return nil, err
	}

	exporter, err := newExporter(cfg, logger)
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		closer:   closer,
		selector: selector,
		roles:    roles,
		catalog:  cat,
		orch:     core.New(selector, roles, core.WithLogger(logger)),
		exporter: exporter,
	}, nil
}
