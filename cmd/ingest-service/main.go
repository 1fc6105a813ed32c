package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wisegate/internal/config"
	"wisegate/internal/constants"
	"wisegate/internal/logger"
	"wisegate/pkg/logging"
)

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   constants.ServiceName,
		Short: "Telemetry ingest service for WISE and ECU devices",
		Long:  "Ingest Service normalizes device payloads from the bus, stores them in PostgreSQL and pushes them to live subscribers",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the ingest service",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog(constants.ServiceName)

			if configFile == "" {
				configFile = os.Getenv("CONFIG_FILE")
				if configFile == "" {
					earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
					return fmt.Errorf("config file is required")
				}
			}

			earlyLog.Info("Loading config from %s", configFile)
			cfg, err := config.Load(configFile)
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting Ingest Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			log.InfowCtx(ctx, "Service running")
			runErr := app.Run(ctx)
			if err := app.Shutdown(context.Background()); err != nil {
				log.ErrorwCtx(ctx, "Shutdown finished with errors", "error", err)
			}
			if runErr != nil && runErr != context.Canceled {
				log.ErrorwCtx(ctx, "Service stopped with error", "error", runErr)
				return runErr
			}
			log.InfowCtx(ctx, "Service shutdown complete")
			return nil
		},
	}
}
