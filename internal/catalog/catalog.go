// Package catalog loads the hosting package catalogue from gzipped JSON
// lines files, either on local disk or in S3.
package catalog

import (
	"context"

	"hostbot/internal/model"
)

// Catalog is a read-only set of hosting packages.
type Catalog interface {
	// Get looks up a package by key, case-insensitively.
	Get(key string) (model.Package, bool)

	// List returns the active packages ordered by key.
	List() []model.Package

	// Size returns the number of packages, active or not.
	Size() int
}

// Loader reads one catalogue file.
type Loader interface {
	// Load reads a gzipped JSON lines file and returns its packages.
	Load(ctx context.Context, path string) (Catalog, error)
}
