package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
)

// AllStatuses lists every order status in lifecycle order.
var AllStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusCompleted,
	StatusCancelled,
	StatusRefunded,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether s accepts no further regular transitions.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRefunded
}

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {StatusRefunded},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanFulfill reports whether provisioning may complete an order in status s.
func (s OrderStatus) CanFulfill() bool {
	return s == StatusConfirmed || s == StatusProcessing
}

// Actors recorded in the status history.
const (
	ActorSystem      = "system"
	ActorCustomer    = "customer"
	ActorProvisioner = "provisioner"
)

// Customer identifies who placed an order and where replies go.
type Customer struct {
	Phone   string `json:"phone"`
	Name    string `json:"name,omitempty"`
	ReplyTo string `json:"replyTo"`
}

// Specs is the human-readable resource summary captured at order time.
type Specs struct {
	RAM     string `json:"ram"`
	CPU     string `json:"cpu"`
	Storage string `json:"storage"`
}

// Order represents a customer's purchase of a hosting package.
type Order struct {
	ID          string          `json:"id" db:"id"`
	Customer    Customer        `json:"customer"`
	PackageKey  string          `json:"packageKey" db:"package_key"`
	PackageName string          `json:"packageName" db:"package_name"`
	Duration    int             `json:"duration" db:"duration_months"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	TotalAmount decimal.Decimal `json:"totalAmount" db:"total_amount"`
	Currency    string          `json:"currency" db:"currency"`
	Specs       Specs           `json:"specs"`
	Status      OrderStatus     `json:"status" db:"status"`
	Notes       *string         `json:"notes,omitempty" db:"notes"`
	AdminNotes  *string         `json:"adminNotes,omitempty" db:"admin_notes"`
	ServerID    *string         `json:"serverId,omitempty" db:"server_id"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// HasServer reports whether a server has been assigned to the order.
func (o *Order) HasServer() bool {
	return o.ServerID != nil && *o.ServerID != ""
}

// StatusHistory is one row of the append-only status ledger.
type StatusHistory struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	OrderID   string      `json:"orderId" db:"order_id"`
	Status    OrderStatus `json:"status" db:"status"`
	Actor     string      `json:"actor" db:"actor"`
	Note      string      `json:"note,omitempty" db:"note"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
}

// StatusChange describes an applied transition.
type StatusChange struct {
	Order Order       `json:"order"`
	From  OrderStatus `json:"from"`
	To    OrderStatus `json:"to"`
	Actor string      `json:"actor"`
	Note  string      `json:"note,omitempty"`
}

// Subscription tracks the hosting period bought by a fulfilled order.
type Subscription struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OrderID   string    `json:"orderId" db:"order_id"`
	ServerID  string    `json:"serverId" db:"server_id"`
	Status    string    `json:"status" db:"status"`
	StartsAt  time.Time `json:"startsAt" db:"starts_at"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
}

// CreateOrderRequest represents the input for placing an order.
type CreateOrderRequest struct {
	Customer   Customer `json:"customer"`
	PackageKey string   `json:"packageKey"`
	Duration   int      `json:"duration"`
	Notes      *string  `json:"notes,omitempty"`
}

// OrderFilter narrows order listings. Zero values mean "any".
type OrderFilter struct {
	Status        OrderStatus
	CustomerPhone string
	Query         string
	Limit         int
}

// OrderStats is the read model served to operators.
type OrderStats struct {
	Total          int                 `json:"total"`
	ByStatus       map[OrderStatus]int `json:"byStatus"`
	ByPackage      map[string]int      `json:"byPackage"`
	Revenue        decimal.Decimal     `json:"revenue"`
	AverageValue   decimal.Decimal     `json:"averageValue"`
	Today          int                 `json:"today"`
	ThisMonth      int                 `json:"thisMonth"`
	PendingPayment int                 `json:"pendingPayment"`
}

// Credentials are the panel login details produced by provisioning.
// They are handed to the notifier once and never stored.
type Credentials struct {
	PanelURL         string `json:"panelUrl"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	ServerID         string `json:"serverId"`
	ServerIdentifier string `json:"serverIdentifier,omitempty"`
}
