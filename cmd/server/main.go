package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/dasmlab/polyglot/pkg/batch"
	"github.com/dasmlab/polyglot/pkg/config"
	"github.com/dasmlab/polyglot/pkg/i18n"
	"github.com/dasmlab/polyglot/pkg/languages"
	"github.com/dasmlab/polyglot/pkg/localize"
	"github.com/dasmlab/polyglot/pkg/model"
	"github.com/dasmlab/polyglot/pkg/pipeline"
	"github.com/dasmlab/polyglot/pkg/server"
	"github.com/dasmlab/polyglot/pkg/service"
	"github.com/dasmlab/polyglot/pkg/telemetry"
	"github.com/dasmlab/polyglot/pkg/translate"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "polyglot-server",
		Short: "mBART-50 translation and localization server",
		Long: `polyglot-server loads the mBART-50 many-to-many model once and serves
translation, localization and CSV batch translation over HTTP, gRPC and a
web dashboard.

Settings come from flags, an optional YAML file (--config), a .env file and
POLYGLOT_* environment variables, e.g. POLYGLOT_MODEL_BACKEND=http.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		panic(err)
	}
	return cmd
}

func run(cfg *config.Config) error {
	logger := cfg.Log.NewLogger()

	logger.WithFields(logrus.Fields{
		"model":      cfg.Model.Name,
		"backend":    cfg.Model.Backend,
		"http_port":  cfg.Server.HTTPPort,
		"grpc_port":  cfg.Server.GRPCPort,
		"log_level":  cfg.Log.Level,
		"max_length": cfg.Model.MaxLength,
		"num_beams":  cfg.Model.NumBeams,
	}).Info("Starting Polyglot server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.WithError(err).Warn("Tracing setup failed, continuing without traces")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.WithError(err).Warn("Failed to flush traces")
		}
	}()

	loader, err := model.NewLoader(cfg.LoaderConfig(logger))
	if err != nil {
		return err
	}
	provider := model.NewProvider(cfg.ProviderConfig(), loader, logger)
	defer func() {
		if err := provider.Close(); err != nil {
			logger.WithError(err).Warn("Failed to release model")
		}
	}()

	if m, err := provider.ReadManifest(); err == nil {
		logger.WithFields(logrus.Fields{
			"artifact":  m.Artifact,
			"backend":   m.Backend,
			"loaded_at": m.LoadedAt,
		}).Info("Found manifest of a previous model load")
	}

	// Load eagerly so the first request does not pay for it. A failure is
	// retried lazily on the next request.
	loadCtx, cancelLoad := context.WithTimeout(ctx, cfg.Model.Timeout)
	if err := provider.EnsureLoaded(loadCtx); err != nil {
		logger.WithError(err).Warn("Model load failed, but continuing anyway")
		logger.Warn("Server will start, but translation requests will retry the load")
	}
	cancelLoad()

	registry := languages.NewRegistry()
	translator := translate.NewModelTranslator(provider, registry, translate.Options{
		MaxLength: cfg.Model.MaxLength,
		NumBeams:  cfg.Model.NumBeams,
	}, logger)
	localizer := localize.NewLocalizer(translator, logger)
	translation := pipeline.NewTranslationPipeline(translator, logger)
	localization := pipeline.NewLocalizationPipeline(localizer, logger)
	processor := batch.NewProcessor(translator, logger)

	jobs := service.NewJobQueue(cfg.JobsDir(), logger)
	service.NewJobProcessor(processor, jobs, cfg.Jobs.Timeout, logger)

	grpcServer, healthServer := newGRPCServer(logger)
	service.Register(grpcServer, service.NewTranslationService(service.Deps{
		Translator:   translator,
		Translation:  translation,
		Localization: localization,
		Batch:        processor,
		Jobs:         jobs,
	}, logger))

	httpServer := server.NewHTTPServer(server.Deps{
		Translator:   translator,
		Registry:     registry,
		Translation:  translation,
		Localization: localization,
		Jobs:         jobs,
		Catalog:      i18n.NewCatalog(logger),
	}, logger, cfg.Server.HTTPPort)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"port": cfg.Server.GRPCPort,
		}).Error("Failed to listen on port")
		return err
	}

	go func() {
		ticker := time.NewTicker(cfg.Jobs.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				jobs.CleanupOldJobs(cfg.Jobs.MaxAge)
			case <-ctx.Done():
				return
			}
		}
	}()
	logger.WithFields(logrus.Fields{
		"cleanup_interval": cfg.Jobs.CleanupInterval.String(),
		"max_age":          cfg.Jobs.MaxAge.String(),
	}).Info("Started batch job cleanup goroutine")

	errChan := make(chan error, 2)
	go func() {
		logger.WithFields(logrus.Fields{
			"port": cfg.Server.GRPCPort,
		}).Info("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			errChan <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("http serve: %w", err)
		}
	}()

	var runErr error
	select {
	case runErr = <-errChan:
		logger.WithError(runErr).Error("Server error")
	case <-ctx.Done():
		logger.Info("Received signal, shutting down gracefully...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown failed")
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
		logger.Info("Server stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("Graceful shutdown timeout, forcing stop...")
		grpcServer.Stop()
	}

	return runErr
}

// newGRPCServer builds the server with keepalive enforcement, tracing, the
// standard health service and reflection.
func newGRPCServer(logger *logrus.Logger) (*grpc.Server, *health.Server) {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		// Clients ping every 30s; allow down to 15s.
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             15 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  30 * time.Second,
			Timeout:               10 * time.Second,
		}),
	}
	logger.WithFields(logrus.Fields{
		"min_time":            "15s",
		"max_connection_idle": "5m",
		"max_connection_age":  "30m",
	}).Debug("Configured gRPC server keepalive settings")

	s := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(s)
	return s, healthServer
}
