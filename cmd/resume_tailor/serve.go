package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-tailor/internal/config"
	"github.com/jonathan/resume-tailor/internal/pipeline"
	"github.com/jonathan/resume-tailor/internal/server"
	"github.com/jonathan/resume-tailor/internal/server/ratelimit"
	"github.com/jonathan/resume-tailor/internal/storage"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and job workers",
	Long: `Start an HTTP server that accepts tailoring jobs, reports their status and issues
signed download links, together with the worker pool that executes queued jobs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if err := cfg.RequireSigningKey(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log, appOptions{registerer: prometheus.DefaultRegisterer})
	if err != nil {
		return err
	}
	defer a.Close()

	signer, err := storage.NewURLSigner(cfg.Storage.SigningKey, strings.TrimRight(cfg.Server.PublicURL, "/")+"/files")
	if err != nil {
		return fmt.Errorf("failed to create download signer: %w", err)
	}
	signer.SetDefaultExpiry(cfg.Storage.DownloadExpiry)

	dispatcher := pipeline.NewDispatcher(a.orch, cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, log)
	service := pipeline.NewService(a.ledger, a.blobs, signer, dispatcher, log)
	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MaxUploadBytes:  cfg.Storage.MaxUploadBytes,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, service, newLimiter(cfg.Server.RateLimit), prometheus.DefaultGatherer, log)

	log.WithFields(logrus.Fields{
		"port":     cfg.Server.Port,
		"workers":  cfg.Pipeline.Workers,
		"provider": cfg.Model.Provider,
		"storage":  cfg.Storage.Backend,
	}).Info("starting resume tailor")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		service.Recover(gctx, cfg.Pipeline.StaleAfter)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.WithField("pending", dispatcher.Pending()).Info("resume tailor stopped")
	return nil
}

func newLimiter(cfg config.RateLimitConfig) *ratelimit.Limiter {
	if !cfg.Enabled {
		return nil
	}
	rl := ratelimit.DefaultConfig(cfg.JobsPerHour)
	rl.DefaultLimit = cfg.RequestsPerMinute
	for _, ip := range cfg.Exempt {
		rl.Exempt[ip] = true
	}
	return ratelimit.NewLimiter(rl)
}
