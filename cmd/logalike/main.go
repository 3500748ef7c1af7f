package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"logalike/internal/config"
	"logalike/internal/logger"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "logalike",
		Short: "Stream based log processor",
		Long:  "Logalike tails log files, processes the lines through a configurable pipeline and writes the results to a document store",
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
		Short: "Start the log processing pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				configFile = os.Getenv("CONFIG_FILE")
				if configFile == "" {
					return fmt.Errorf("config file is required, use --config or CONFIG_FILE")
				}
			}

			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Logging.Level)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.Infow("Starting logalike")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Errorw("Failed to initialize application", "error", err)
				return err
			}

			log.Infow("Pipeline running")
			if err := app.Run(ctx); err != nil && err != context.Canceled {
				log.Errorw("Pipeline stopped with error", "error", err)
				return err
			}
			log.Infow("Shutdown complete")
			return nil
		},
	}
}
