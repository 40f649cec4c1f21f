package service

import (
	"context"

	"hostbot/internal/model"
)

// PackageService exposes the package catalogue.
type PackageService interface {
	// ListPackages returns the packages currently on sale.
	ListPackages() []model.Package

	// GetPackage returns an active package by key.
	GetPackage(key string) (model.Package, error)
}

// OrderService owns order creation and the status lifecycle.
type OrderService interface {
	// CreateOrder validates the request, snapshots the package price and
	// stores the order with its first history entry.
	CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.Order, error)

	// GetOrder returns an order or *model.NotFoundError.
	GetOrder(ctx context.Context, id string) (*model.Order, error)

	// GetHistory returns the status ledger of an order, oldest first.
	GetHistory(ctx context.Context, id string) ([]model.StatusHistory, error)

	GetOrdersByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error)
	GetOrdersByCustomer(ctx context.Context, phone string) ([]model.Order, error)
	ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
	Search(ctx context.Context, query string) ([]model.Order, error)
	GetOrderStats(ctx context.Context) (*model.OrderStats, error)
	GetSubscription(ctx context.Context, id string) (*model.Subscription, error)

	// Transition moves an order along the lifecycle table. Anything the
	// table does not allow fails with *model.IllegalTransitionError.
	Transition(ctx context.Context, id string, to model.OrderStatus, actor, note string) (*model.StatusChange, error)

	// CancelOrder transitions the order to cancelled.
	CancelOrder(ctx context.Context, id, actor, reason string) (*model.StatusChange, error)

	// CompleteFulfillment records a provisioned server and completes a
	// confirmed or processing order in one step.
	CompleteFulfillment(ctx context.Context, id, serverID, actor, note string) (*model.StatusChange, error)

	// SetServerID assigns a server to an order. Setting the same value
	// again is a no-op.
	SetServerID(ctx context.Context, id, serverID string) (*model.Order, error)

	UpdateNotes(ctx context.Context, id string, notes *string) (*model.Order, error)
	UpdateAdminNotes(ctx context.Context, id string, notes *string) (*model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}
