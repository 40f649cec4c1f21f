package model

import "github.com/shopspring/decimal"

// ResourceLimits are the hard limits applied to a provisioned server.
type ResourceLimits struct {
	MemoryMB   int `json:"memoryMb"`
	SwapMB     int `json:"swapMb"`
	DiskMB     int `json:"diskMb"`
	IO         int `json:"io"`
	CPUPercent int `json:"cpuPercent"`
}

// FeatureLimits bound the optional panel features of a server.
type FeatureLimits struct {
	Databases   int `json:"databases"`
	Backups     int `json:"backups"`
	Allocations int `json:"allocations"`
}

// Package represents a hosting plan in the catalogue.
type Package struct {
	Key      string          `json:"key"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency,omitempty"`
	Specs    Specs           `json:"specs"`
	Active   bool            `json:"active"`
	Limits   ResourceLimits  `json:"limits"`
	Features FeatureLimits   `json:"features"`
}
