package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirfounder/http-server/internal/infrastructure/config"
	"github.com/amirfounder/http-server/internal/infrastructure/server"
	"github.com/amirfounder/http-server/internal/infrastructure/telemetry"
	"github.com/amirfounder/http-server/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	v := viper.New()
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server with the bundled services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, v, configPath)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	flags.Int("port", 0, "port to listen on")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("server.port", flags.Lookup("port"))
	_ = v.BindPFlag("logging.level", flags.Lookup("log-level"))

	return cmd
}

func serve(ctx context.Context, v *viper.Viper, configPath string) error {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return err
	}

	zapLogger, err := logger.NewLogger(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer zapLogger.Sync()

	shutdownTracing, err := telemetry.Setup(cfg.Tracing, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to set up tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			zapLogger.Error("Failed to flush traces", zap.Error(err))
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	httpServer, err := server.NewHTTPServer(server.HTTPServerOptions{
		Config: cfg,
		Logger: zapLogger,
	})
	if err != nil {
		zapLogger.Fatal("Failed to create HTTP server", zap.Error(err))
	}

	// A bad registration must stop startup before anything listens.
	if err := httpServer.RegisterServices(bundledServices()); err != nil {
		zapLogger.Fatal("Failed to register services", zap.Error(err))
	}

	if err := httpServer.Run(ctx); err != nil {
		zapLogger.Error("HTTP server stopped with error", zap.Error(err))
		return err
	}

	zapLogger.Info("HTTP server stopped")
	return nil
}
