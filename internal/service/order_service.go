package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"hostbot/internal/catalog"
	"hostbot/internal/model"
	"hostbot/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	minDuration     = 1
	maxDuration     = 12
	maxNotesLength  = 500
	maxPhoneLength  = 32
	maxNameLength   = 255
	maxKeyLength    = 64
	maxIDAttempts   = 5
	searchLimit     = 50
	defaultCurrency = "IDR"
)

// orderService implements OrderService.
type orderService struct {
	orderRepo repository.OrderRepository
	catalog   catalog.Catalog
	logger    zerolog.Logger
	now       func() time.Time
	location  *time.Location
	currency  string
}

// Option customises the order service.
type Option func(*orderService)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *orderService) { s.now = now }
}

// WithLocation sets the time zone used for daily and monthly statistics.
func WithLocation(loc *time.Location) Option {
	return func(s *orderService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithCurrency sets the currency for packages that do not name one.
func WithCurrency(currency string) Option {
	return func(s *orderService) {
		if currency != "" {
			s.currency = currency
		}
	}
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	packages catalog.Catalog,
	logger zerolog.Logger,
	opts ...Option,
) OrderService {
	s := &orderService{
		orderRepo: orderRepo,
		catalog:   packages,
		logger:    logger.With().Str("service", "order").Logger(),
		now:       time.Now,
		location:  time.UTC,
		currency:  defaultCurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder creates a pending order priced from the catalogue.
func (s *orderService) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.Order, error) {
	if err := s.validateCreateRequest(&req); err != nil {
		s.logger.Debug().Err(err).Str("customer", req.Customer.Phone).Msg("invalid order request")
		return nil, err
	}

	pkg, err := catalog.Resolve(s.catalog, req.PackageKey)
	if err != nil {
		s.logger.Debug().Err(err).Str("package", req.PackageKey).Msg("package rejected")
		return nil, err
	}

	currency := pkg.Currency
	if currency == "" {
		currency = s.currency
	}

	now := s.now()
	order := &model.Order{
		Customer:    req.Customer,
		PackageKey:  pkg.Key,
		PackageName: pkg.Name,
		Duration:    req.Duration,
		UnitPrice:   pkg.Price,
		TotalAmount: pkg.Price.Mul(decimal.NewFromInt(int64(req.Duration))),
		Currency:    currency,
		Specs:       pkg.Specs,
		Status:      model.StatusPending,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for attempt := 1; ; attempt++ {
		order.ID = newOrderID()
		entry := s.historyEntry(order.ID, model.StatusPending, model.ActorSystem, "Order created", now)

		err = s.orderRepo.Create(ctx, order, entry)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrDuplicateID) && attempt < maxIDAttempts {
			s.logger.Debug().Str("order_id", order.ID).Msg("order id collision, regenerating")
			continue
		}
		s.logger.Error().Err(err).Str("customer", order.Customer.Phone).Msg("failed to create order")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("package", order.PackageKey).
		Int("duration", order.Duration).
		Str("total", order.TotalAmount.String()).
		Msg("order created successfully")

	return order, nil
}

func (s *orderService) validateCreateRequest(req *model.CreateOrderRequest) error {
	req.Customer.Phone = strings.TrimSpace(req.Customer.Phone)
	req.Customer.Name = strings.TrimSpace(req.Customer.Name)
	req.Customer.ReplyTo = strings.TrimSpace(req.Customer.ReplyTo)
	req.PackageKey = strings.TrimSpace(req.PackageKey)

	if req.Customer.Phone == "" {
		return model.NewValidationError("customer.phone", "customer phone is required")
	}
	if req.Customer.ReplyTo == "" {
		req.Customer.ReplyTo = req.Customer.Phone
	}
	if req.PackageKey == "" {
		return model.NewValidationError("packageKey", "package is required")
	}

	for _, f := range []struct {
		field, value string
		max          int
	}{
		{"customer.phone", req.Customer.Phone, maxPhoneLength},
		{"customer.name", req.Customer.Name, maxNameLength},
		{"customer.replyTo", req.Customer.ReplyTo, maxNameLength},
		{"packageKey", req.PackageKey, maxKeyLength},
	} {
		if utf8.RuneCountInString(f.value) > f.max {
			return model.NewValidationError(f.field, fmt.Sprintf("%s must be at most %d characters", f.field, f.max))
		}
	}
	if req.Duration < minDuration || req.Duration > maxDuration {
		return model.NewValidationError("duration", fmt.Sprintf("duration must be between %d and %d months", minDuration, maxDuration))
	}

	notes, err := cleanNotes(req.Notes)
	if err != nil {
		return err
	}
	req.Notes = notes

	return nil
}

func cleanNotes(notes *string) (*string, error) {
	if notes == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > maxNotesLength {
		return nil, model.NewValidationError("notes", fmt.Sprintf("notes must be at most %d characters", maxNotesLength))
	}
	return &trimmed, nil
}

// GetOrder returns an order by ID.
func (s *orderService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	id = NormalizeOrderID(id)
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.OrderNotFound(id)
	}
	return order, nil
}

// GetHistory returns the status ledger of an order.
func (s *orderService) GetHistory(ctx context.Context, id string) ([]model.StatusHistory, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	history, err := s.orderRepo.History(ctx, order.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to get history")
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return history, nil
}

func (s *orderService) GetOrdersByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	if !status.Valid() {
		return nil, model.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	return s.ListOrders(ctx, model.OrderFilter{Status: status})
}

func (s *orderService) GetOrdersByCustomer(ctx context.Context, phone string) ([]model.Order, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, model.NewValidationError("phone", "customer phone is required")
	}
	return s.ListOrders(ctx, model.OrderFilter{CustomerPhone: phone})
}

func (s *orderService) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, model.NewValidationError("status", fmt.Sprintf("unknown status %q", filter.Status))
	}

	orders, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Search matches query against id, phone, name, package and status.
func (s *orderService) Search(ctx context.Context, query string) ([]model.Order, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.NewValidationError("query", "search query is required")
	}
	return s.ListOrders(ctx, model.OrderFilter{Query: query, Limit: searchLimit})
}

func (s *orderService) GetOrderStats(ctx context.Context) (*model.OrderStats, error) {
	orders, err := s.ListOrders(ctx, model.OrderFilter{})
	if err != nil {
		return nil, err
	}
	return computeStats(orders, s.now(), s.location), nil
}

func (s *orderService) GetSubscription(ctx context.Context, id string) (*model.Subscription, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	sub, err := s.orderRepo.Subscription(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if sub == nil {
		return nil, &model.NotFoundError{Kind: "subscription", ID: order.ID}
	}
	return sub, nil
}

// Transition applies one step of the lifecycle table.
func (s *orderService) Transition(ctx context.Context, id string, to model.OrderStatus, actor, note string) (*model.StatusChange, error) {
	if !to.Valid() {
		return nil, model.NewValidationError("status", fmt.Sprintf("unknown status %q", to))
	}

	id = NormalizeOrderID(id)
	var from model.OrderStatus

	order, err := s.orderRepo.Update(ctx, id, func(o *model.Order) (repository.Change, error) {
		from = o.Status
		if !from.CanTransitionTo(to) {
			return repository.Change{}, &model.IllegalTransitionError{OrderID: o.ID, From: from, To: to}
		}
		return s.applyStatus(o, to, actor, note), nil
	})
	if err != nil {
		return nil, s.mutationError(err, id, "transition")
	}

	s.logger.Info().
		Str("order_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor", actor).
		Msg("order status changed")

	return &model.StatusChange{Order: *order, From: from, To: to, Actor: actor, Note: note}, nil
}

// CancelOrder transitions the order to cancelled.
func (s *orderService) CancelOrder(ctx context.Context, id, actor, reason string) (*model.StatusChange, error) {
	return s.Transition(ctx, id, model.StatusCancelled, actor, reason)
}

// CompleteFulfillment sets the server and completes the order atomically.
func (s *orderService) CompleteFulfillment(ctx context.Context, id, serverID, actor, note string) (*model.StatusChange, error) {
	id = NormalizeOrderID(id)
	serverID = strings.TrimSpace(serverID)
	var from model.OrderStatus

	order, err := s.orderRepo.Update(ctx, id, func(o *model.Order) (repository.Change, error) {
		from = o.Status
		if !from.CanFulfill() {
			return repository.Change{}, &model.IllegalTransitionError{OrderID: o.ID, From: from, To: model.StatusCompleted}
		}
		if serverID != "" {
			o.ServerID = &serverID
		}
		if !o.HasServer() {
			return repository.Change{}, model.NewValidationError("serverId", "server id is required to complete fulfillment")
		}
		return s.applyStatus(o, model.StatusCompleted, actor, note), nil
	})
	if err != nil {
		return nil, s.mutationError(err, id, "complete fulfillment")
	}

	s.logger.Info().
		Str("order_id", id).
		Str("from", string(from)).
		Str("server_id", *order.ServerID).
		Msg("order fulfilled")

	return &model.StatusChange{Order: *order, From: from, To: model.StatusCompleted, Actor: actor, Note: note}, nil
}

// applyStatus mutates o and returns the rows that go with the change. A
// completed order with a server starts its subscription.
func (s *orderService) applyStatus(o *model.Order, to model.OrderStatus, actor, note string) repository.Change {
	now := maxTime(s.now(), o.UpdatedAt)

	o.Status = to
	o.UpdatedAt = now

	entry := s.historyEntry(o.ID, to, actor, note, now)
	change := repository.Change{History: &entry}

	if to == model.StatusCompleted && o.HasServer() {
		change.Subscription = &model.Subscription{
			ID:        uuid.New(),
			OrderID:   o.ID,
			ServerID:  *o.ServerID,
			Status:    "active",
			StartsAt:  now,
			ExpiresAt: now.AddDate(0, o.Duration, 0),
		}
	}

	return change
}

// SetServerID assigns serverID, overwriting any previous value.
func (s *orderService) SetServerID(ctx context.Context, id, serverID string) (*model.Order, error) {
	id = NormalizeOrderID(id)
	serverID = strings.TrimSpace(serverID)
	if serverID == "" {
		return nil, model.NewValidationError("serverId", "server id is required")
	}

	var previous *string
	order, err := s.orderRepo.Update(ctx, id, func(o *model.Order) (repository.Change, error) {
		previous = o.ServerID
		if o.ServerID != nil && *o.ServerID == serverID {
			return repository.Change{}, nil
		}
		o.ServerID = &serverID
		o.UpdatedAt = maxTime(s.now(), o.UpdatedAt)
		return repository.Change{}, nil
	})
	if err != nil {
		return nil, s.mutationError(err, id, "set server id")
	}

	if previous != nil && *previous != serverID {
		s.logger.Warn().
			Str("order_id", id).
			Str("previous", *previous).
			Str("server_id", serverID).
			Msg("server id overridden")
	}

	return order, nil
}

func (s *orderService) UpdateNotes(ctx context.Context, id string, notes *string) (*model.Order, error) {
	return s.updateNotes(ctx, id, notes, func(o *model.Order, v *string) { o.Notes = v })
}

func (s *orderService) UpdateAdminNotes(ctx context.Context, id string, notes *string) (*model.Order, error) {
	return s.updateNotes(ctx, id, notes, func(o *model.Order, v *string) { o.AdminNotes = v })
}

func (s *orderService) updateNotes(ctx context.Context, id string, notes *string, set func(*model.Order, *string)) (*model.Order, error) {
	cleaned, err := cleanNotes(notes)
	if err != nil {
		return nil, err
	}

	id = NormalizeOrderID(id)
	order, err := s.orderRepo.Update(ctx, id, func(o *model.Order) (repository.Change, error) {
		set(o, cleaned)
		o.UpdatedAt = maxTime(s.now(), o.UpdatedAt)
		return repository.Change{}, nil
	})
	if err != nil {
		return nil, s.mutationError(err, id, "update notes")
	}
	return order, nil
}

// DeleteOrder removes an order together with its history and subscription.
func (s *orderService) DeleteOrder(ctx context.Context, id string) error {
	id = NormalizeOrderID(id)
	if err := s.orderRepo.Delete(ctx, id); err != nil {
		return s.mutationError(err, id, "delete")
	}
	s.logger.Info().Str("order_id", id).Msg("order deleted")
	return nil
}

func (s *orderService) historyEntry(orderID string, status model.OrderStatus, actor, note string, at time.Time) model.StatusHistory {
	if actor == "" {
		actor = model.ActorSystem
	}
	return model.StatusHistory{
		ID:        uuid.New(),
		OrderID:   orderID,
		Status:    status,
		Actor:     actor,
		Note:      note,
		CreatedAt: at,
	}
}

// mutationError passes typed domain errors through and wraps the rest.
func (s *orderService) mutationError(err error, id, op string) error {
	if model.IsNotFound(err) || model.IsIllegalTransition(err) || model.IsValidation(err) {
		s.logger.Debug().Err(err).Str("order_id", id).Str("op", op).Msg("order mutation rejected")
		return err
	}
	s.logger.Error().Err(err).Str("order_id", id).Str("op", op).Msg("order mutation failed")
	return fmt.Errorf("failed to %s order %s: %w", op, id, err)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
