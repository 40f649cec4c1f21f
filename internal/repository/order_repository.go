package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hostbot/internal/model"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const orderColumns = `
	id, customer_phone, customer_name, reply_to, package_key, package_name,
	duration_months, unit_price, total_amount, currency,
	spec_ram, spec_cpu, spec_storage, status, notes, admin_notes, server_id,
	created_at, updated_at`

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// Create inserts the order and its first history entry in one transaction.
func (r *orderRepository) Create(ctx context.Context, order *model.Order, entry model.StatusHistory) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.insertOrder(ctx, tx, order); err != nil {
		return err
	}

	if err := r.insertHistory(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to commit transaction")
		return fmt.Errorf("failed to commit order: %w", err)
	}

	r.logger.Debug().Str("order_id", order.ID).Msg("order created successfully")
	return nil
}

func (r *orderRepository) insertOrder(ctx context.Context, tx pgx.Tx, o *model.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := tx.Exec(ctx, query,
		o.ID, o.Customer.Phone, nullable(o.Customer.Name), o.Customer.ReplyTo,
		o.PackageKey, o.PackageName, o.Duration, o.UnitPrice, o.TotalAmount, o.Currency,
		o.Specs.RAM, o.Specs.CPU, o.Specs.Storage, o.Status, o.Notes, o.AdminNotes, o.ServerID,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateID
		}
		r.logger.Error().Err(err).Str("order_id", o.ID).Msg("failed to insert order")
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

func (r *orderRepository) insertHistory(ctx context.Context, tx pgx.Tx, h model.StatusHistory) error {
	query := `
		INSERT INTO order_status_history (id, order_id, status, actor, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := tx.Exec(ctx, query, h.ID, h.OrderID, h.Status, h.Actor, h.Note, h.CreatedAt); err != nil {
		r.logger.Error().Err(err).Str("order_id", h.OrderID).Msg("failed to insert status history")
		return fmt.Errorf("failed to insert status history: %w", err)
	}

	return nil
}

func (r *orderRepository) insertSubscription(ctx context.Context, tx pgx.Tx, s model.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, order_id, server_id, status, starts_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := tx.Exec(ctx, query, s.ID, s.OrderID, s.ServerID, s.Status, s.StartsAt, s.ExpiresAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSubscription
		}
		r.logger.Error().Err(err).Str("order_id", s.OrderID).Msg("failed to insert subscription")
		return fmt.Errorf("failed to insert subscription: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its ID.
func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	return order, nil
}

// List returns orders matching filter, newest first.
func (r *orderRepository) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	var (
		where []string
		args  []any
	)

	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	if filter.CustomerPhone != "" {
		args = append(args, filter.CustomerPhone)
		where = append(where, fmt.Sprintf("customer_phone = $%d", len(args)))
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(id ILIKE $%[1]d OR customer_phone ILIKE $%[1]d OR customer_name ILIKE $%[1]d OR package_key ILIKE $%[1]d OR package_name ILIKE $%[1]d OR status ILIKE $%[1]d)",
			n,
		))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]model.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// History returns the status ledger of an order, oldest first.
func (r *orderRepository) History(ctx context.Context, id string) ([]model.StatusHistory, error) {
	query := `
		SELECT id, order_id, status, actor, note, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at, seq
	`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id).Msg("failed to query status history")
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	history := make([]model.StatusHistory, 0)
	for rows.Next() {
		var h model.StatusHistory
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &h.Actor, &h.Note, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		history = append(history, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status history: %w", err)
	}

	return history, nil
}

// Update locks the order row, applies fn and writes the result.
func (r *orderRepository) Update(ctx context.Context, id string, fn UpdateFunc) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	order, err := scanOrder(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.OrderNotFound(id)
		}
		r.logger.Error().Err(err).Str("order_id", id).Msg("failed to lock order")
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	change, err := fn(order)
	if err != nil {
		return nil, err
	}

	update := `
		UPDATE orders
		SET status = $2, notes = $3, admin_notes = $4, server_id = $5, updated_at = $6
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, update, order.ID, order.Status, order.Notes, order.AdminNotes, order.ServerID, order.UpdatedAt); err != nil {
		r.logger.Error().Err(err).Str("order_id", id).Msg("failed to update order")
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	if change.History != nil {
		if err := r.insertHistory(ctx, tx, *change.History); err != nil {
			return nil, err
		}
	}

	if change.Subscription != nil {
		if err := r.insertSubscription(ctx, tx, *change.Subscription); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Str("order_id", id).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to commit order update: %w", err)
	}

	return order, nil
}

// Subscription returns the subscription created for an order, or nil.
func (r *orderRepository) Subscription(ctx context.Context, orderID string) (*model.Subscription, error) {
	query := `
		SELECT id, order_id, server_id, status, starts_at, expires_at
		FROM subscriptions
		WHERE order_id = $1
	`

	var s model.Subscription
	err := r.pool.QueryRow(ctx, query, orderID).Scan(&s.ID, &s.OrderID, &s.ServerID, &s.Status, &s.StartsAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query subscription: %w", err)
	}

	return &s, nil
}

// Delete removes an order; history and subscription rows cascade.
func (r *orderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id).Msg("failed to delete order")
		return fmt.Errorf("failed to delete order: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.OrderNotFound(id)
	}

	return nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o    model.Order
		name *string
	)

	err := row.Scan(
		&o.ID, &o.Customer.Phone, &name, &o.Customer.ReplyTo, &o.PackageKey, &o.PackageName,
		&o.Duration, &o.UnitPrice, &o.TotalAmount, &o.Currency,
		&o.Specs.RAM, &o.Specs.CPU, &o.Specs.Storage, &o.Status, &o.Notes, &o.AdminNotes, &o.ServerID,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if name != nil {
		o.Customer.Name = *name
	}

	return &o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
