package catalog

import (
	"sort"
	"strings"

	"hostbot/internal/model"
)

// mapCatalog implements Catalog with a map keyed by upper-cased package key.
type mapCatalog struct {
	packages map[string]model.Package
}

// NewMapCatalog creates a catalog holding pkgs. Later duplicates win.
func NewMapCatalog(pkgs ...model.Package) Catalog {
	c := &mapCatalog{packages: make(map[string]model.Package, len(pkgs))}
	for _, p := range pkgs {
		c.add(p)
	}
	return c
}

func (c *mapCatalog) add(p model.Package) {
	p.Key = normalizeKey(p.Key)
	c.packages[p.Key] = p
}

func (c *mapCatalog) Get(key string) (model.Package, bool) {
	p, ok := c.packages[normalizeKey(key)]
	return p, ok
}

func (c *mapCatalog) List() []model.Package {
	pkgs := make([]model.Package, 0, len(c.packages))
	for _, p := range c.packages {
		if p.Active {
			pkgs = append(pkgs, p)
		}
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Key < pkgs[j].Key })
	return pkgs
}

func (c *mapCatalog) Size() int {
	return len(c.packages)
}

// Merge combines catalogs; packages in later catalogs override earlier ones.
func Merge(catalogs ...Catalog) Catalog {
	merged := &mapCatalog{packages: make(map[string]model.Package)}
	for _, c := range catalogs {
		if mc, ok := c.(*mapCatalog); ok {
			for _, p := range mc.packages {
				merged.add(p)
			}
			continue
		}
		for _, p := range c.List() {
			merged.add(p)
		}
	}
	return merged
}

func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
