package catalog

import (
	"context"
	"fmt"
	"sync"

	"hostbot/internal/model"

	"github.com/rs/zerolog"
)

// LoadAll loads every path concurrently and merges them in path order.
func LoadAll(ctx context.Context, loader Loader, paths []string, logger zerolog.Logger) (Catalog, error) {
	type loadResult struct {
		catalog Catalog
		err     error
	}

	results := make([]loadResult, len(paths))
	var wg sync.WaitGroup

	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			c, err := loader.Load(ctx, path)
			results[i] = loadResult{catalog: c, err: err}
		}(i, path)
	}
	wg.Wait()

	catalogs := make([]Catalog, 0, len(paths))
	for i, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("failed to load catalog %s: %w", paths[i], r.err)
		}
		catalogs = append(catalogs, r.catalog)
	}

	merged := Merge(catalogs...)
	logger.Info().
		Int("file_count", len(paths)).
		Int("packages", merged.Size()).
		Int("active", len(merged.List())).
		Msg("package catalog ready")

	return merged, nil
}

// Resolve returns the package for key if it exists and is on sale.
func Resolve(c Catalog, key string) (model.Package, error) {
	p, ok := c.Get(key)
	if !ok {
		return model.Package{}, model.PackageNotFound(key)
	}
	if !p.Active {
		return model.Package{}, model.NewValidationError("package", fmt.Sprintf("package %s is no longer available", p.Key))
	}
	return p, nil
}
