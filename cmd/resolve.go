package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var resolveForce bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <address>",
	Short: "Resolve one address to coordinates",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		address := strings.Join(args, " ")
		outcome, err := e.resolver.Resolve(ctx, address, resolveForce)
		if err != nil {
			return err
		}
		if outcome == nil {
			fmt.Println("no match")
			return nil
		}

		fmt.Printf("latitude:    %.6f\n", outcome.Result.Latitude)
		fmt.Printf("longitude:   %.6f\n", outcome.Result.Longitude)
		fmt.Printf("quality:     %s\n", outcome.Result.Quality)
		fmt.Printf("confidence:  %.2f\n", outcome.Result.Confidence)
		if outcome.Result.MatchedAddress != "" {
			fmt.Printf("matched:     %s\n", outcome.Result.MatchedAddress)
		}
		fmt.Printf("provider:    %s\n", outcome.Provider)
		fmt.Printf("cached:      %t\n", outcome.Cached)
		if outcome.AddressID != "" {
			fmt.Printf("address id:  %s\n", outcome.AddressID)
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveForce, "force", false, "bypass the cache and re-geocode")
	rootCmd.AddCommand(resolveCmd)
}
