package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/config"
	"github.com/forgeline/sitesmith/pkg/logger"
	"github.com/forgeline/sitesmith/pkg/metrics"
	"github.com/forgeline/sitesmith/pkg/registry"
	"github.com/forgeline/sitesmith/pkg/server"
	httptransport "github.com/forgeline/sitesmith/pkg/server/transport/http"
	"github.com/forgeline/sitesmith/pkg/server/transport/stdio"
	"github.com/forgeline/sitesmith/pkg/tools"
)

const version = "0.3.0"

var (
	transportName string
	listenAddr    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tool server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVarP(&transportName, "transport", "t", "http", "transport to serve on (stdio or http)")
	serveCmd.Flags().StringVarP(&listenAddr, "addr", "a", "", "listen address for the http transport")
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if workspaceRoot != "" {
		cfg.Workspace.Root = workspaceRoot
	}
	if listenAddr != "" {
		cfg.Server.Addr = listenAddr
	}
	if addr := os.Getenv("SITESMITH_ADDR"); addr != "" && listenAddr == "" {
		cfg.Server.Addr = addr
	}
	return cfg, nil
}

func buildServer(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (*server.Server, error) {
	tk, err := tools.New(tools.Options{Root: cfg.Workspace.Root, Logger: log})
	if err != nil {
		return nil, err
	}
	reg := registry.New()
	if err := tk.RegisterAll(reg); err != nil {
		return nil, err
	}
	return server.New(reg, server.Options{
		Name:    "sitesmith",
		Version: version,
		Logger:  log,
		Metrics: m,
	}), nil
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch transportName {
	case "stdio":
		// metrics endpoint needs HTTP, skip the collector here
		srv, err := buildServer(cfg, log, nil)
		if err != nil {
			return err
		}
		t := stdio.New(srv, stdio.Options{
			Reader: os.Stdin,
			Writer: os.Stdout,
			Logger: log,
		})
		log.Info("serving on stdio")
		return t.Start(ctx)

	case "http":
		srv, err := buildServer(cfg, log, metrics.New())
		if err != nil {
			return err
		}
		t := httptransport.New(srv, httptransport.Options{
			Address:   cfg.Server.Addr,
			JWTSecret: cfg.Auth.JWTSecret,
			RateRPS:   cfg.RateLimit.RPS,
			RateBurst: cfg.RateLimit.Burst,
			Limits: server.SessionLimits{
				MaxSessions: cfg.Sessions.Max,
				IdleTTL:     cfg.Sessions.IdleTTL,
			},
			Logger: log,
		})

		errCh := make(chan error, 1)
		go func() { errCh <- t.Start(ctx) }()
		log.Info("serving on http", zap.String("addr", cfg.Server.Addr))

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return t.Stop(shutdownCtx)

	default:
		return errors.Errorf("unknown transport %q", transportName)
	}
}
