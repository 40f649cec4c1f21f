// Package fulfillment composes the lifecycle manager, the provisioning
// orchestrator and the notification dispatcher into the order flow.
package fulfillment

import (
	"context"
	"errors"
	"strings"
	"sync"

	"hostbot/internal/model"
	"hostbot/internal/notify"
	"hostbot/internal/provisioning"
	"hostbot/internal/resilience"
	"hostbot/internal/service"

	"github.com/rs/zerolog"
)

// Provisioner creates servers for confirmed orders.
type Provisioner interface {
	Provision(ctx context.Context, orderID string) (*provisioning.Result, error)
	RetryProvisioning(ctx context.Context, orderID string) (*provisioning.Result, error)
	IsAutoProvisioningEnabled() bool
}

// Notifier turns order changes into messages.
type Notifier interface {
	OrderCreated(ctx context.Context, order model.Order) error
	StatusChanged(ctx context.Context, change model.StatusChange) error
	Provisioned(ctx context.Context, order model.Order, creds model.Credentials) error
	ProvisioningFailed(ctx context.Context, order model.Order, reason resilience.Reason, cause error, compensation string) error
}

// Engine is the order flow: every successful state change is followed by
// its notification, and confirmed orders are provisioned automatically
// when that is enabled.
type Engine struct {
	orders      service.OrderService
	provisioner Provisioner
	notifier    Notifier
	logger      zerolog.Logger

	wg sync.WaitGroup
}

// New creates an engine.
func New(orders service.OrderService, provisioner Provisioner, notifier Notifier, logger zerolog.Logger) *Engine {
	return &Engine{
		orders:      orders,
		provisioner: provisioner,
		notifier:    notifier,
		logger:      logger.With().Str("component", "fulfillment").Logger(),
	}
}

// Orders exposes the lifecycle manager for read paths.
func (e *Engine) Orders() service.OrderService {
	return e.orders
}

// PlaceOrder creates an order and acknowledges it.
func (e *Engine) PlaceOrder(ctx context.Context, req model.CreateOrderRequest) (*model.Order, error) {
	order, err := e.orders.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	e.logNotify(e.notifier.OrderCreated(ctx, *order), order.ID)
	return order, nil
}

// Transition applies a lifecycle step and notifies about it. Confirming an
// order starts provisioning in the background when auto-provisioning is on.
func (e *Engine) Transition(ctx context.Context, id string, to model.OrderStatus, actor, note string) (*model.StatusChange, error) {
	change, err := e.orders.Transition(ctx, id, to, actor, note)
	if err != nil {
		return nil, err
	}
	e.logNotify(e.notifier.StatusChanged(ctx, *change), change.Order.ID)

	if to == model.StatusConfirmed && e.provisioner.IsAutoProvisioningEnabled() {
		e.provisionAsync(ctx, change.Order.ID)
	}
	return change, nil
}

// Confirm marks an order as paid.
func (e *Engine) Confirm(ctx context.Context, id, actor, note string) (*model.StatusChange, error) {
	return e.Transition(ctx, id, model.StatusConfirmed, actor, note)
}

// Cancel cancels an order.
func (e *Engine) Cancel(ctx context.Context, id, actor, reason string) (*model.StatusChange, error) {
	return e.Transition(ctx, id, model.StatusCancelled, actor, reason)
}

// Complete finishes an order by hand. With a server id it takes the
// fulfillment edge; without one it is a plain transition.
func (e *Engine) Complete(ctx context.Context, id, serverID, actor, note string) (*model.StatusChange, error) {
	if strings.TrimSpace(serverID) == "" {
		return e.Transition(ctx, id, model.StatusCompleted, actor, note)
	}

	change, err := e.orders.CompleteFulfillment(ctx, id, serverID, actor, note)
	if err != nil {
		return nil, err
	}
	e.logNotify(e.notifier.StatusChanged(ctx, *change), change.Order.ID)
	return change, nil
}

// Provision runs the orchestrator and notifies about the outcome.
func (e *Engine) Provision(ctx context.Context, id string) (*provisioning.Result, error) {
	return e.runProvisioning(ctx, id, e.provisioner.Provision)
}

// RetryProvisioning provisions an order whose earlier attempt failed.
func (e *Engine) RetryProvisioning(ctx context.Context, id string) (*provisioning.Result, error) {
	return e.runProvisioning(ctx, id, e.provisioner.RetryProvisioning)
}

// SetServerID records a server for an order without changing its status.
func (e *Engine) SetServerID(ctx context.Context, id, serverID string) (*model.Order, error) {
	return e.orders.SetServerID(ctx, id, serverID)
}

// Wait blocks until background provisioning has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) runProvisioning(
	ctx context.Context,
	id string,
	run func(context.Context, string) (*provisioning.Result, error),
) (*provisioning.Result, error) {
	// The outcome is always notified, even when the caller has gone away.
	ctx = context.WithoutCancel(ctx)

	result, err := run(ctx, id)
	if err != nil {
		return nil, err
	}

	if result.Success {
		order := result.Change.Order
		e.logNotify(e.notifier.Provisioned(ctx, order, *result.Credentials), order.ID)
		return result, nil
	}

	order, gerr := e.orders.GetOrder(ctx, id)
	if gerr != nil {
		e.logger.Error().Err(gerr).Str("order_id", id).Msg("failed to load order after provisioning failure")
		return result, nil
	}

	var compensation string
	if c := result.Compensation; c != nil {
		compensation = notify.CompensationSummary(c.UserID, c.Succeeded, c.Err)
	}
	e.logNotify(e.notifier.ProvisioningFailed(ctx, *order, result.Reason, result.Err, compensation), order.ID)
	return result, nil
}

func (e *Engine) provisionAsync(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		e.logger.Info().Str("order_id", id).Msg("auto-provisioning confirmed order")
		if _, err := e.Provision(ctx, id); err != nil {
			if errors.Is(err, provisioning.ErrInProgress) {
				return
			}
			e.logger.Error().Err(err).Str("order_id", id).Msg("auto-provisioning rejected")
		}
	}()
}

func (e *Engine) logNotify(err error, orderID string) {
	if err != nil {
		e.logger.Warn().Err(err).Str("order_id", orderID).Msg("notification not fully delivered")
	}
}
