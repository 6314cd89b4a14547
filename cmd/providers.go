package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/peachstate/votergeo/pkg/geocode"
)

var providersOutput string

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List geocoding providers and their configuration state",
	RunE: func(cmd *cobra.Command, args []string) error {
		metadata, err := geocode.AllMetadata(cfg.Providers)
		if err != nil {
			return err
		}

		if providersOutput == "yaml" {
			out, err := yaml.Marshal(metadata)
			if err != nil {
				return eris.Wrap(err, "providers: marshal yaml")
			}
			fmt.Print(string(out))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSERVICE\tAPI KEY\tCONFIGURED\tDELAY (S)")
		for _, m := range metadata {
			fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%.1f\n",
				m.Name, m.ServiceType, m.RequiresAPIKey, m.Configured, m.RateLimitDelay)
		}
		return w.Flush()
	},
}

func init() {
	providersCmd.Flags().StringVar(&providersOutput, "output", "table", "output format: table or yaml")
	rootCmd.AddCommand(providersCmd)
}
