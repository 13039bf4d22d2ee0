package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/oriys/sandboxd/internal/audit"
	"github.com/oriys/sandboxd/internal/config"
	"github.com/oriys/sandboxd/internal/engine"
	"github.com/oriys/sandboxd/internal/events"
	"github.com/oriys/sandboxd/internal/httpapi"
	"github.com/oriys/sandboxd/internal/initregistry"
	"github.com/oriys/sandboxd/internal/logging"
	"github.com/oriys/sandboxd/internal/metrics"
	"github.com/oriys/sandboxd/internal/sandbox"
	"github.com/oriys/sandboxd/internal/sandboxstore"
	"github.com/oriys/sandboxd/internal/telemetry"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sandbox HTTP daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if configFile != "" {
				var err error
				cfg, err = config.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			config.LoadFromEnv(cfg)

			logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)

			ctx := context.Background()
			if err := engine.Bootstrap(ctx); err != nil {
				return fmt.Errorf("bootstrap wasm engine: %w", err)
			}

			if err := telemetry.Init(ctx, telemetry.Config{
				Enabled:     cfg.Tracing.Enabled,
				Endpoint:    cfg.Tracing.Endpoint,
				ServiceName: cfg.Tracing.ServiceName,
				SampleRate:  cfg.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer telemetry.Shutdown(context.Background())

			store := sandboxstore.New()
			limit := cfg.Store.MemoryBudgetBytes
			store.SetMemoryLimit(&limit)
			store.OnEvict(func(sc sandboxstore.Context) {
				if c, ok := sc.(*sandbox.Context); ok {
					if err := c.Close(context.Background()); err != nil {
						logging.Op().Warn("serve: failed to close evicted sandbox", "error", err)
					}
				}
			})

			m := metrics.New(cfg.Metrics.Namespace)

			var auditSink audit.Sink = audit.NoopSink{}
			if cfg.Postgres.Enabled {
				sink, err := audit.NewPostgresSink(ctx, cfg.Postgres.DSN)
				if err != nil {
					return fmt.Errorf("connect audit postgres: %w", err)
				}
				defer sink.Close()
				auditSink = sink
			}

			var publisher events.Publisher = events.NoopPublisher{}
			if cfg.Redis.Enabled {
				rp := events.NewRedisPublisher(cfg.Redis.Addr, cfg.Redis.Channel)
				defer rp.Close()
				publisher = rp
			}

			var registry *initregistry.Registry
			if cfg.S3.Enabled {
				awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3.Region))
				if err != nil {
					return fmt.Errorf("load AWS config: %w", err)
				}
				client := s3.NewFromConfig(awsCfg)
				registry = initregistry.New(client, cfg.S3.Bucket, cfg.S3.Prefix, time.Duration(cfg.S3.CacheTTLSec)*time.Second)
			}

			if addr == "" {
				addr = fmt.Sprintf(":%d", cfg.Server.Port)
			}

			srv := httpapi.StartHTTPServer(addr, httpapi.Deps{
				Config:   cfg,
				Store:    store,
				Metrics:  m,
				Audit:    auditSink,
				Events:   publisher,
				Registry: registry,
			})
			logging.Op().Info("sandboxd listening", "addr", addr)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			logging.Op().Info("shutdown signal received")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("shutdown http server: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, overrides config/default port")
	return cmd
}
