package database

import (
	"context"
	"fmt"
	"time"

	"hostbot/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

const (
	applicationName = "hostbot"
	pingTimeout     = 5 * time.Second
	firstRetryDelay = 500 * time.Millisecond
	maxRetryDelay   = 8 * time.Second
)

// PoolConfig builds the pgx pool settings for cfg. Sessions are tagged with
// the application name and run in UTC so timestamps stored by the order
// repository do not depend on the server default.
func PoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	maxConns := max(cfg.MaxConnections, 1)
	pc.MaxConns = int32(maxConns)
	pc.MinConns = int32(min(max(cfg.MinConnections, 0), maxConns))
	pc.MaxConnLifetime = time.Duration(cfg.MaxConnLifetime) * time.Second
	pc.MaxConnIdleTime = 30 * time.Minute
	pc.HealthCheckPeriod = time.Minute

	pc.ConnConfig.RuntimeParams["application_name"] = applicationName
	pc.ConnConfig.RuntimeParams["timezone"] = "UTC"

	return pc, nil
}

// NewPool opens the order database. The server is often started alongside
// postgres, so the first ping is retried with exponential backoff up to
// cfg.ConnectAttempts times before giving up.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	logger = logger.With().
		Str("db_host", cfg.Host).
		Int("db_port", cfg.Port).
		Str("db_name", cfg.Database).
		Logger()

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := waitReady(ctx, pool, max(cfg.ConnectAttempts, 1), logger); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info().
		Int32("max_conns", pc.MaxConns).
		Int32("min_conns", pc.MinConns).
		Msg("database ready")
	return pool, nil
}

func waitReady(ctx context.Context, pool *pgxpool.Pool, attempts int, logger zerolog.Logger) error {
	backoff := retry.NewExponential(firstRetryDelay)
	backoff = retry.WithCappedDuration(maxRetryDelay, backoff)
	backoff = retry.WithMaxRetries(uint64(attempts-1), backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()

		if err := pool.Ping(pingCtx); err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", attempts).Msg("database not reachable")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ping database after %d attempt(s): %w", attempt, err)
	}
	return nil
}
