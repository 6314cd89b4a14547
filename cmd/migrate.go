package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the cache and address schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("cache schema up to date", zap.String("driver", cfg.Cache.Driver))

		if e.addresses != nil {
			if err := e.addresses.Migrate(ctx); err != nil {
				return err
			}
			zap.L().Info("address schema up to date")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
