package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/peachstate/votergeo/internal/service"
)

var (
	batchFile  string
	batchForce bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Resolve a file of addresses, one per line",
	Long:  "Reads newline-separated addresses from --file (or stdin), resolves each through the cache and provider cascade, and writes one CSV row per address to stdout.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		addresses, err := readAddresses(batchFile)
		if err != nil {
			return err
		}

		return processBatch(ctx, addresses, cfg.Resolver.BatchWorkers, batchForce, os.Stdout, e.resolver.Resolve)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "input file, one address per line (default stdin)")
	batchCmd.Flags().BoolVar(&batchForce, "force", false, "bypass the cache and re-geocode every address")
	rootCmd.AddCommand(batchCmd)
}

// readAddresses loads newline-separated addresses, skipping blanks and
// deduplicating while preserving first-seen order.
func readAddresses(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "batch: open input")
		}
		defer f.Close()
		r = f
	}

	seen := make(map[string]struct{})
	var addresses []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		addresses = append(addresses, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "batch: read input")
	}
	return addresses, nil
}

// resolveFunc is the callback signature for resolving one address.
type resolveFunc func(ctx context.Context, address string, force bool) (*service.Outcome, error)

// processBatch resolves addresses concurrently and streams CSV rows to out.
// Individual failures are recorded in the row and never abort the batch.
func processBatch(ctx context.Context, addresses []string, concurrency int, force bool, out io.Writer, resolve resolveFunc) error {
	if len(addresses) == 0 {
		zap.L().Info("no addresses to resolve")
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("addresses", len(addresses)),
		zap.Int("concurrency", concurrency),
	)

	w := csv.NewWriter(out)
	if err := w.Write([]string{"address", "latitude", "longitude", "quality", "confidence", "provider", "cached", "error"}); err != nil {
		return eris.Wrap(err, "batch: write header")
	}

	var mu sync.Mutex
	var succeeded, unmatched, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, address := range addresses {
		g.Go(func() error {
			row := resolveRow(gctx, address, force, resolve, &succeeded, &unmatched, &failed)
			mu.Lock()
			defer mu.Unlock()
			return eris.Wrap(w.Write(row), "batch: write row")
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "batch: flush output")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("unmatched", unmatched.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

func resolveRow(ctx context.Context, address string, force bool, resolve resolveFunc, succeeded, unmatched, failed *atomic.Int64) []string {
	outcome, err := resolve(ctx, address, force)
	if err != nil {
		failed.Add(1)
		zap.L().Error("resolution failed", zap.String("address", address), zap.Error(err))
		return []string{address, "", "", "", "", "", "", err.Error()}
	}
	if outcome == nil {
		unmatched.Add(1)
		return []string{address, "", "", "", "", "", "", "no match"}
	}

	succeeded.Add(1)
	return []string{
		address,
		strconv.FormatFloat(outcome.Result.Latitude, 'f', 6, 64),
		strconv.FormatFloat(outcome.Result.Longitude, 'f', 6, 64),
		string(outcome.Result.Quality),
		strconv.FormatFloat(outcome.Result.Confidence, 'f', 2, 64),
		outcome.Provider,
		strconv.FormatBool(outcome.Cached),
		"",
	}
}
