package catalog

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"hostbot/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePackages() []model.Package {
	return []model.Package{
		{
			Key: "A1", Name: "Starter A1", Price: decimal.NewFromInt(5000), Currency: "IDR", Active: true,
			Specs:    model.Specs{RAM: "1GB", CPU: "50%", Storage: "5GB"},
			Limits:   model.ResourceLimits{MemoryMB: 1024, DiskMB: 5120, IO: 500, CPUPercent: 50},
			Features: model.FeatureLimits{Databases: 1, Backups: 1, Allocations: 1},
		},
		{
			Key: "B2", Name: "Pro B2", Price: decimal.NewFromInt(15000), Currency: "IDR", Active: true,
			Specs:  model.Specs{RAM: "4GB", CPU: "150%", Storage: "20GB"},
			Limits: model.ResourceLimits{MemoryMB: 4096, DiskMB: 20480, IO: 500, CPUPercent: 150},
		},
		{
			Key: "OLD", Name: "Legacy", Price: decimal.NewFromInt(1000), Currency: "IDR", Active: false,
		},
	}
}

// gzipLines encodes lines as a gzipped JSON lines payload.
func gzipLines(t *testing.T, lines ...string) []byte {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	for _, line := range lines {
		_, err := gw.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func packageLines(t *testing.T, pkgs []model.Package) []string {
	lines := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		b, err := json.Marshal(p)
		require.NoError(t, err)
		lines = append(lines, string(b))
	}
	return lines
}

// createTestCatalogFile writes a gzipped catalogue file and returns its path.
func createTestCatalogFile(t *testing.T, name string, lines ...string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, gzipLines(t, lines...), 0o600))
	return path
}

func TestFileLoader_Load_Success(t *testing.T) {
	path := createTestCatalogFile(t, "packages.jsonl.gz", packageLines(t, samplePackages())...)

	c, err := NewFileLoader(zerolog.Nop()).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Size())

	a1, ok := c.Get("a1")
	require.True(t, ok)
	assert.Equal(t, "Starter A1", a1.Name)
	assert.True(t, a1.Price.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, 1024, a1.Limits.MemoryMB)

	active := c.List()
	require.Len(t, active, 2)
	assert.Equal(t, "A1", active[0].Key)
	assert.Equal(t, "B2", active[1].Key)
}

func TestFileLoader_Load_SkipsBlankLines(t *testing.T) {
	lines := append([]string{"", "   "}, packageLines(t, samplePackages()[:1])...)
	path := createTestCatalogFile(t, "blank.jsonl.gz", lines...)

	c, err := NewFileLoader(zerolog.Nop()).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Size())
}

func TestFileLoader_Load_Errors(t *testing.T) {
	loader := NewFileLoader(zerolog.Nop())
	ctx := context.Background()

	t.Run("File not found", func(t *testing.T) {
		_, err := loader.Load(ctx, "/nonexistent/packages.jsonl.gz")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open catalog file")
	})

	t.Run("Not gzip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plain.jsonl")
		require.NoError(t, os.WriteFile(path, []byte(`{"key":"A1"}`), 0o600))
		_, err := loader.Load(ctx, path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gzip")
	})

	t.Run("Bad JSON", func(t *testing.T) {
		path := createTestCatalogFile(t, "bad.jsonl.gz", `{"key":"A1"}`, `{not json`)
		_, err := loader.Load(ctx, path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("Missing key", func(t *testing.T) {
		path := createTestCatalogFile(t, "nokey.jsonl.gz", `{"name":"x","price":"10"}`)
		_, err := loader.Load(ctx, path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key is required")
	})

	t.Run("Cancelled context", func(t *testing.T) {
		path := createTestCatalogFile(t, "ok.jsonl.gz", packageLines(t, samplePackages())...)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := loader.Load(cctx, path)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
