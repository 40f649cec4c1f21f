//go:build ignore

package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"hostbot/internal/model"

	"github.com/shopspring/decimal"
)

// Writes the sample package catalogue used by local runs:
//
//	go run scripts/generate_sample_catalog.go
//
// A1-A3 are the regular plans, B1 is a promo plan priced with cents and
// OLD1 is retired (inactive) so that ordering it is rejected.
func main() {
	dataDir := "data/catalog"

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	packages := []model.Package{
		plan("A1", "Starter", 15000, "1GB", "50%", "5GB", 1024, 50, 5120),
		plan("A2", "Standard", 30000, "2GB", "100%", "10GB", 2048, 100, 10240),
		plan("A3", "Pro", 55000, "4GB", "200%", "20GB", 4096, 200, 20480),
		promo(plan("B1", "Weekend Promo", 0, "2GB", "100%", "10GB", 2048, 100, 10240), "24999.50"),
		retired(plan("OLD1", "Legacy", 10000, "512MB", "25%", "2GB", 512, 25, 2048)),
	}

	filePath := filepath.Join(dataDir, "packages.jsonl.gz")
	if err := writeCatalog(filePath, packages); err != nil {
		log.Fatalf("Failed to create %s: %v", filePath, err)
	}

	fmt.Printf("Created %s with %d packages\n", filePath, len(packages))
}

func plan(key, name string, price int64, ram, cpu, storage string, memoryMB, cpuPercent, diskMB int) model.Package {
	return model.Package{
		Key:      key,
		Name:     name,
		Price:    decimal.NewFromInt(price),
		Currency: "IDR",
		Specs:    model.Specs{RAM: ram, CPU: cpu, Storage: storage},
		Active:   true,
		Limits: model.ResourceLimits{
			MemoryMB:   memoryMB,
			DiskMB:     diskMB,
			IO:         500,
			CPUPercent: cpuPercent,
		},
		Features: model.FeatureLimits{Databases: 1, Backups: 1, Allocations: 1},
	}
}

func promo(p model.Package, price string) model.Package {
	p.Price = decimal.RequireFromString(price)
	return p
}

func retired(p model.Package) model.Package {
	p.Active = false
	return p
}

func writeCatalog(filePath string, packages []model.Package) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	enc := json.NewEncoder(gzipWriter)
	for _, p := range packages {
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("failed to write package %s: %w", p.Key, err)
		}
	}

	return nil
}
