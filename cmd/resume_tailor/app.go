package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/resume-tailor/internal/config"
	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/generation"
	"github.com/jonathan/resume-tailor/internal/ledger"
	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/observability"
	"github.com/jonathan/resume-tailor/internal/parsing"
	"github.com/jonathan/resume-tailor/internal/pii"
	"github.com/jonathan/resume-tailor/internal/pipeline"
	"github.com/jonathan/resume-tailor/internal/rendering"
	"github.com/jonathan/resume-tailor/internal/retry"
	"github.com/jonathan/resume-tailor/internal/storage"
)

// app holds the collaborators shared by serve and run
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	blobs   storage.BlobStore
	ledger  ledger.Ledger
	orch    *pipeline.Orchestrator
	closers []func()
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// appOptions adjusts how newApp wires the pipeline
type appOptions struct {
	registerer prometheus.Registerer
	// wrapDrafter decorates or replaces the model-backed generator
	wrapDrafter func(pipeline.Drafter) pipeline.Drafter
	onProgress  pipeline.ProgressCallback
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// newApp wires storage, the ledger, the model gateway and the orchestrator from cfg
func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	blobs, err := openBlobStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.blobs = blobs

	l, closeLedger, err := openLedger(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a.ledger = l
	a.closers = append(a.closers, closeLedger)

	gateway, closer, err := llm.NewGateway(ctx, modelConfig(cfg.Model), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create model gateway: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := closer.Close(); err != nil {
			log.WithError(err).Warn("failed to close model gateway")
		}
	})

	var drafter pipeline.Drafter = generation.New(gateway, cfg.Model.MaxTokens, log)
	if opts.wrapDrafter != nil {
		drafter = opts.wrapDrafter(drafter)
	}

	var metrics *pipeline.Metrics
	if opts.registerer != nil {
		if metrics, err = pipeline.NewMetrics(opts.registerer); err != nil {
			return nil, err
		}
	}

	a.orch, err = pipeline.NewOrchestrator(pipelineConfig(cfg), pipeline.Deps{
		Ledger:     l,
		Blobs:      blobs,
		Parser:     parsing.NewCachedParser(parsing.NewDocumentParser(), cfg.Pipeline.ParseCacheTTL),
		Screener:   pii.NewRegexScreener(),
		Drafter:    drafter,
		Renderer:   newRenderer(cfg.Render, cfg.Pipeline),
		Log:        log,
		Metrics:    metrics,
		OnProgress: opts.onProgress,
	})
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

func openBlobStore(ctx context.Context, cfg config.StorageConfig) (storage.BlobStore, error) {
	switch cfg.Backend {
	case "gcs":
		return storage.NewGCSStore(ctx, cfg.Bucket, cfg.CredentialsFile)
	default:
		return storage.NewFileStore(cfg.Dir)
	}
}

// openLedger connects to Postgres when a database URL is configured and
// falls back to the in-memory ledger otherwise
func openLedger(ctx context.Context, cfg config.DatabaseConfig, log logrus.FieldLogger) (ledger.Ledger, func(), error) {
	if cfg.URL == "" {
		log.Warn("no database configured, job state will not survive a restart")
		return ledger.NewMemoryLedger(), func() {}, nil
	}
	database, err := db.Connect(ctx, cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}
	return db.NewJobLedger(database), database.Close, nil
}

func modelConfig(cfg config.ModelConfig) *llm.Config {
	r := retry.None()
	if cfg.MaxRetries > 0 {
		r = retry.DefaultConfig()
		r.MaxRetries = cfg.MaxRetries
		r.BaseDelay = cfg.RetryBaseDelay
		r.MaxDelay = 30 * cfg.RetryBaseDelay
	}
	return &llm.Config{
		Provider:    llm.Provider(cfg.Provider),
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		Retry:       r,
	}
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	fetch := retry.DefaultConfig()
	fetch.MaxRetries = cfg.Pipeline.FetchRetries
	return pipeline.Config{
		OutputPrefix:    cfg.Storage.OutputPrefix,
		GenerateTimeout: cfg.Pipeline.GenerateTimeout,
		RenderTimeout:   cfg.Pipeline.RenderTimeout,
		FetchTimeout:    cfg.Pipeline.FetchTimeout,
		FetchRetry:      fetch,
	}
}

func newRenderer(cfg config.RenderConfig, p config.PipelineConfig) *rendering.Renderer {
	if !cfg.UseChrome {
		return rendering.NewRenderer(nil)
	}
	return rendering.NewRenderer(rendering.NewChromePDFConverter(cfg.ChromePath, p.RenderTimeout))
}
