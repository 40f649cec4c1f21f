package database

import (
	"testing"
	"time"

	"hostbot/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:            "db.internal",
		Port:            6432,
		User:            "bot",
		Password:        "secret",
		Database:        "orders",
		MaxConnections:  10,
		MinConnections:  2,
		MaxConnLifetime: 120,
	}

	pc, err := PoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", pc.ConnConfig.Host)
	assert.Equal(t, uint16(6432), pc.ConnConfig.Port)
	assert.Equal(t, "orders", pc.ConnConfig.Database)
	assert.Equal(t, int32(10), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, 2*time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, "hostbot", pc.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "UTC", pc.ConnConfig.RuntimeParams["timezone"])
}

func TestPoolConfig_ClampsConnectionLimits(t *testing.T) {
	tests := []struct {
		name     string
		maxConns int
		minConns int
		wantMax  int32
		wantMin  int32
	}{
		{name: "Zero max", maxConns: 0, minConns: 0, wantMax: 1, wantMin: 0},
		{name: "Min above max", maxConns: 4, minConns: 9, wantMax: 4, wantMin: 4},
		{name: "Negative min", maxConns: 4, minConns: -1, wantMax: 4, wantMin: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := PoolConfig(config.DatabaseConfig{
				Host:           "localhost",
				Port:           5432,
				User:           "postgres",
				Database:       "hostbot",
				MaxConnections: tt.maxConns,
				MinConnections: tt.minConns,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantMax, pc.MaxConns)
			assert.Equal(t, tt.wantMin, pc.MinConns)
		})
	}
}
