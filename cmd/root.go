package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/peachstate/votergeo/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "votergeo",
	Short: "Geocoding resolution engine for voter-registration addresses",
	Long:  "Resolves free-form postal addresses to coordinates through a cascade of geocoding providers, with a persistent result cache and Georgia service-area validation.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
