package catalog

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"hostbot/internal/model"

	"github.com/rs/zerolog"
)

// fileLoader implements Loader for gzipped catalogue files on disk.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based catalogue loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "catalog-loader").Logger(),
	}
}

// Load reads a gzipped file holding one JSON encoded package per line.
func (l *fileLoader) Load(ctx context.Context, path string) (Catalog, error) {
	l.logger.Info().Str("file", path).Msg("loading catalog file")

	file, err := os.Open(path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to open catalog file")
		return nil, fmt.Errorf("failed to open catalog file %s: %w", path, err)
	}
	defer file.Close()

	c, err := decode(ctx, file)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to read catalog file")
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	l.logger.Info().
		Str("file", path).
		Int("packages_loaded", c.Size()).
		Msg("catalog file loaded successfully")

	return c, nil
}

// decode reads gzipped JSON lines into a catalog. Blank lines are skipped.
func decode(ctx context.Context, r io.Reader) (Catalog, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	c := &mapCatalog{packages: make(map[string]model.Package)}

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var p model.Package
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if strings.TrimSpace(p.Key) == "" {
			return nil, fmt.Errorf("line %d: package key is required", lineNo)
		}
		if p.Price.IsNegative() {
			return nil, fmt.Errorf("line %d: package %s has a negative price", lineNo, p.Key)
		}
		c.add(p)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return c, nil
}
