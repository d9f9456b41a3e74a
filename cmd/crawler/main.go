package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ymakhloufi/taux-livrets/internal/pkg/config"
	"github.com/ymakhloufi/taux-livrets/internal/pkg/logger"
	"go.uber.org/zap"
)

var ratesPath string

var rootCmd = &cobra.Command{
	Use:           "crawler",
	Short:         "crawler keeps the French regulated savings rates document up to date.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ratesPath, "rates", "", "path to the rates document (default $RATES_PATH or rates.json)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err != nil {
		// the exit status is what alerts the operator
		fmt.Fprintf(os.Stderr, "%s FAILED: %v\n", failedStage(cmd), err)
		stop()
		os.Exit(1)
	}
}

// setup loads the configuration and builds the root logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg := config.Load()
	if ratesPath != "" {
		cfg.RatesPath = ratesPath
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

func failedStage(cmd *cobra.Command) string {
	if cmd == nil || cmd == rootCmd {
		return strings.ToUpper(updateCmd.Name())
	}
	return strings.ToUpper(cmd.Name())
}
