package repository

import (
	"context"
	"errors"

	"hostbot/internal/model"
)

var (
	// ErrDuplicateID is returned by Create when the order ID is already taken.
	ErrDuplicateID = errors.New("order id already exists")
	// ErrDuplicateSubscription is returned when an order already has a subscription.
	ErrDuplicateSubscription = errors.New("order already has a subscription")
)

// Change describes the rows written alongside an order update.
type Change struct {
	// History is appended to the status ledger when non-nil.
	History *model.StatusHistory
	// Subscription is inserted when non-nil.
	Subscription *model.Subscription
}

// UpdateFunc mutates a locked order in place and returns the rows to write
// with it. Returning an error aborts the update without side effects.
type UpdateFunc func(order *model.Order) (Change, error)

// OrderRepository defines the interface for order data access operations.
// Every mutating method is atomic.
type OrderRepository interface {
	// Create inserts a new order together with its first history entry.
	Create(ctx context.Context, order *model.Order, entry model.StatusHistory) error

	// GetByID retrieves an order by its ID. It returns nil, nil when absent.
	GetByID(ctx context.Context, id string) (*model.Order, error)

	// List returns orders matching filter, newest first.
	List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)

	// History returns the status ledger of an order, oldest first.
	History(ctx context.Context, id string) ([]model.StatusHistory, error)

	// Update locks the order, applies fn and persists the result.
	// A missing order yields *model.NotFoundError.
	Update(ctx context.Context, id string, fn UpdateFunc) (*model.Order, error)

	// Subscription returns the subscription created for an order, or nil.
	Subscription(ctx context.Context, orderID string) (*model.Subscription, error)

	// Delete removes an order and everything that references it.
	Delete(ctx context.Context, id string) error
}
