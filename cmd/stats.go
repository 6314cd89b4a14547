package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var statsOutput string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show geocode cache statistics per provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		stats, err := e.store.Stats(ctx)
		if err != nil {
			return err
		}

		if statsOutput == "yaml" {
			out, err := yaml.Marshal(stats)
			if err != nil {
				return eris.Wrap(err, "stats: marshal yaml")
			}
			fmt.Print(string(out))
			return nil
		}

		if len(stats) == 0 {
			fmt.Println("cache is empty")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tCACHED\tOLDEST\tNEWEST")
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				s.Provider, s.CachedCount,
				s.OldestFetchedAt.Format(time.RFC3339),
				s.NewestFetchedAt.Format(time.RFC3339),
			)
		}
		return w.Flush()
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsOutput, "output", "table", "output format: table or yaml")
	rootCmd.AddCommand(statsCmd)
}
