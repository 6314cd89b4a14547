package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peachstate/votergeo/internal/service"
	"github.com/peachstate/votergeo/pkg/geocode"
)

func TestReadAddresses_SkipsBlanksAndDupes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "addresses.txt")
	require.NoError(t, os.WriteFile(path, []byte(
		"123 Main St, Atlanta, GA\n\n  \n456 Oak Ave, Macon, GA\n123 Main St, Atlanta, GA\n"), 0o644))

	addrs, err := readAddresses(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"123 Main St, Atlanta, GA",
		"456 Oak Ave, Macon, GA",
	}, addrs)
}

func TestProcessBatch_RowPerAddress(t *testing.T) {
	resolve := func(_ context.Context, address string, _ bool) (*service.Outcome, error) {
		switch address {
		case "good":
			return &service.Outcome{
				Result: &geocode.Result{
					Latitude:   33.7490,
					Longitude:  -84.3880,
					Confidence: 0.9,
					Quality:    geocode.QualityExact,
				},
				Provider: "census",
			}, nil
		case "missing":
			return nil, nil
		default:
			return nil, eris.New("backend down")
		}
	}

	var out bytes.Buffer
	err := processBatch(context.Background(), []string{"good", "missing", "broken"}, 2, false, &out, resolve)
	require.NoError(t, err)

	rows, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4) // header + one row per address

	byAddr := make(map[string][]string)
	for _, row := range rows[1:] {
		byAddr[row[0]] = row
	}
	assert.Equal(t, "33.749000", byAddr["good"][1])
	assert.Equal(t, "census", byAddr["good"][5])
	assert.Equal(t, "no match", byAddr["missing"][7])
	assert.Contains(t, byAddr["broken"][7], "backend down")
}

func TestProcessBatch_Empty(t *testing.T) {
	var out bytes.Buffer
	err := processBatch(context.Background(), nil, 4, false, &out,
		func(context.Context, string, bool) (*service.Outcome, error) {
			t.Fatal("resolve must not be called for an empty batch")
			return nil, nil
		})
	require.NoError(t, err)
	assert.Empty(t, out.String())
}
