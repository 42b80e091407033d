// Command linkctl administers the link health service: seeding users and
// running scans outside the API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sykell/link-health/internal/bootstrap"
	"github.com/sykell/link-health/internal/config"
	"github.com/sykell/link-health/internal/logger"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "linkctl",
		Short:         "Affiliate link health administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", config.GetConfigPath("config.yml"), "path to the configuration file")

	root.AddCommand(newSeedCmd(), newScanCmd(), newScheduleCmd())
	return root
}

// setup loads configuration and wires the service components.
func setup() (*bootstrap.Components, logger.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := bootstrap.CreateLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	components, err := bootstrap.Build(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return components, log, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "linkctl: %v\n", err)
		os.Exit(1)
	}
}
