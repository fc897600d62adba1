package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/iqexport/internal/application"
	"github.com/bryanwahyu/iqexport/internal/application/export"
	"github.com/bryanwahyu/iqexport/internal/config"
	aiopenai "github.com/bryanwahyu/iqexport/internal/infra/ai/openai"
	"github.com/bryanwahyu/iqexport/internal/infra/csvexport"
	mysqlp "github.com/bryanwahyu/iqexport/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/iqexport/internal/infra/db/postgres"
	"github.com/bryanwahyu/iqexport/internal/infra/httpserver"
	"github.com/bryanwahyu/iqexport/internal/infra/iqserver"
	minioStore "github.com/bryanwahyu/iqexport/internal/infra/storage"
	"github.com/bryanwahyu/iqexport/internal/middleware"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		orgID      string
		outputDir  string
		workers    int
	)
	cmd := &cobra.Command{
		Use:           "iqexport",
		Short:         "Bulk-export raw IQ server scan reports to per-application CSV files",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, orgID, outputDir, workers)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default $CONFIG_PATH, then ./config.yaml)")
	cmd.Flags().StringVar(&orgID, "organization", "", "restrict the export to one organization id")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for the CSV files")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker pool size")
	return cmd
}

func run(ctx context.Context, configPath, orgID, outputDir string, workers int) error {
	// path config.yaml
	if configPath == "" {
		configPath = "config.yaml"
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			configPath = v
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}
	// flags menang atas file/env
	if orgID != "" {
		cfg.IQ.OrganizationID = orgID
	}
	if outputDir != "" {
		cfg.Export.OutputDir = outputDir
	}
	if workers > 0 {
		cfg.Export.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("new logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := iqserver.New(cfg.IQ.URL, cfg.IQ.Username, cfg.IQ.Password, iqserver.Options{
		Timeout:           time.Duration(cfg.IQ.TimeoutSeconds) * time.Second,
		Retry:             iqserver.RetryConfig{MaxAttempts: cfg.Export.MaxAttempts, InitDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second},
		RequestsPerSecond: cfg.Export.RequestsPerSecond,
		Logger:            logger.Named("iqserver"),
	})

	writer, err := csvexport.NewWriter(cfg.Export.OutputDir)
	if err != nil {
		return fmt.Errorf("output dir error: %w", err)
	}

	svc := &export.Service{
		Directory:      client,
		Source:         client,
		Serializer:     writer,
		Clock:          application.SystemClock{},
		Logger:         logger,
		Workers:        cfg.Export.Workers,
		OrganizationID: cfg.IQ.OrganizationID,
		TriageDir:      cfg.Export.OutputDir,
	}

	checkers := map[string]middleware.HealthChecker{
		"iq": &middleware.UpstreamHealthChecker{Upstream: client},
	}

	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return fmt.Errorf("mysql connect error: %w", err)
		}
		defer db.Close()
		svc.History = mysqlp.NewRunRepository(db)
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return fmt.Errorf("postgres connect error: %w", err)
		}
		defer db.Close()
		svc.History = postgresp.NewRunRepository(db)
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	}

	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init error: %w", err)
		}
		svc.Artifacts = store
	}

	if cfg.AI.APIKey != "" {
		svc.Triage = aiopenai.NewClient(cfg.AI.APIKey, cfg.AI.Model)
	}

	var srv *http.Server
	if cfg.Status.Addr != "" {
		srv = &http.Server{
			Addr:         cfg.Status.Addr,
			Handler:      httpserver.NewStatusRouter(svc, checkers, logger.Named("status")),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.Info("status server listening", zap.String("addr", cfg.Status.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("status server error", zap.Error(err))
			}
		}()
	}

	summary, runErr := svc.Run(ctx)

	if srv != nil {
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx2); err != nil {
			logger.Warn("status server shutdown error", zap.Error(err))
		}
	}

	if runErr != nil {
		return fmt.Errorf("export aborted after %d/%d applications: %w",
			summary.Success+summary.Skipped+summary.Failed, summary.Total, runErr)
	}
	return nil
}
