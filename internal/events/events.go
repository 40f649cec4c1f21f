// Package events publishes order state changes to an event feed.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	TypeOrderCreated       = "order.created"
	TypeStatusChanged      = "order.status_changed"
	TypeProvisioned        = "order.provisioned"
	TypeProvisioningFailed = "order.provisioning_failed"
)

// OrderEvent is one entry of the order feed.
type OrderEvent struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"orderId"`
	Status        string    `json:"status"`
	From          string    `json:"from,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	Note          string    `json:"note,omitempty"`
	CustomerPhone string    `json:"customerPhone"`
	PackageKey    string    `json:"packageKey"`
	Total         string    `json:"total"`
	ServerID      string    `json:"serverId,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Publisher sends order events.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NopPublisher) Close() error                              { return nil }
