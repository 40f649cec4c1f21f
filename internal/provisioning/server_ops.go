package provisioning

import (
	"context"
	"fmt"
	"strconv"

	"hostbot/internal/model"
)

// Server actions available to admins.
const (
	ActionSuspend = "suspend"
	ActionResume  = "resume"
	ActionRestart = "restart"
)

// Suspend suspends the order's server.
func (o *Orchestrator) Suspend(ctx context.Context, orderID string) error {
	return o.serverAction(ctx, orderID, ActionSuspend)
}

// Resume lifts the suspension of the order's server.
func (o *Orchestrator) Resume(ctx context.Context, orderID string) error {
	return o.serverAction(ctx, orderID, ActionResume)
}

// Restart restarts the order's server.
func (o *Orchestrator) Restart(ctx context.Context, orderID string) error {
	return o.serverAction(ctx, orderID, ActionRestart)
}

// ServerAction dispatches one of the Action constants.
func (o *Orchestrator) ServerAction(ctx context.Context, orderID, action string) error {
	switch action {
	case ActionSuspend, ActionResume, ActionRestart:
		return o.serverAction(ctx, orderID, action)
	default:
		return model.NewValidationError("action", fmt.Sprintf("unknown server action %q", action))
	}
}

func (o *Orchestrator) serverAction(ctx context.Context, orderID, action string) error {
	order, err := o.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.HasServer() {
		return model.NewValidationError("serverId", fmt.Sprintf("order %s has no server", order.ID))
	}

	serverID, err := strconv.Atoi(*order.ServerID)
	if err != nil {
		return model.NewValidationError("serverId", fmt.Sprintf("server id %q is not a panel id", *order.ServerID))
	}

	op := "panel." + action
	err = o.executor.Do(ctx, op, func(ctx context.Context) error {
		switch action {
		case ActionSuspend:
			return o.panel.SuspendServer(ctx, serverID)
		case ActionResume:
			return o.panel.UnsuspendServer(ctx, serverID)
		default:
			srv, err := o.panel.GetServer(ctx, serverID)
			if err != nil {
				return err
			}
			return o.panel.Power(ctx, srv.Identifier, "restart")
		}
	})
	if err != nil {
		return err
	}

	o.logger.Info().Str("order_id", order.ID).Int("server_id", serverID).Str("action", action).Msg("server action applied")
	return nil
}
