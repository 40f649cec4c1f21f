package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"hostbot/internal/model"
)

// memoryRepository is an OrderRepository held in process memory. It
// mirrors the transactional behaviour of the PostgreSQL implementation.
type memoryRepository struct {
	mu            sync.RWMutex
	orders        map[string]*model.Order
	history       map[string][]model.StatusHistory
	subscriptions map[string]model.Subscription
}

// NewMemoryRepository creates an empty in-memory order repository.
func NewMemoryRepository() OrderRepository {
	return &memoryRepository{
		orders:        make(map[string]*model.Order),
		history:       make(map[string][]model.StatusHistory),
		subscriptions: make(map[string]model.Subscription),
	}
}

func (r *memoryRepository) Create(_ context.Context, order *model.Order, entry model.StatusHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return ErrDuplicateID
	}

	r.orders[order.ID] = cloneOrder(order)
	r.history[order.ID] = []model.StatusHistory{entry}
	return nil
}

func (r *memoryRepository) GetByID(_ context.Context, id string) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return cloneOrder(order), nil
}

func (r *memoryRepository) List(_ context.Context, filter model.OrderFilter) ([]model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(filter.Query))

	orders := make([]model.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.CustomerPhone != "" && o.Customer.Phone != filter.CustomerPhone {
			continue
		}
		if q != "" && !matchesQuery(o, q) {
			continue
		}
		orders = append(orders, *cloneOrder(o))
	}

	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	if filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}

	return orders, nil
}

func matchesQuery(o *model.Order, q string) bool {
	fields := []string{o.ID, o.Customer.Phone, o.Customer.Name, o.PackageKey, o.PackageName, string(o.Status)}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func (r *memoryRepository) History(_ context.Context, id string) ([]model.StatusHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := make([]model.StatusHistory, len(r.history[id]))
	copy(history, r.history[id])
	return history, nil
}

func (r *memoryRepository) Update(_ context.Context, id string, fn UpdateFunc) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[id]
	if !ok {
		return nil, model.OrderNotFound(id)
	}

	// fn works on a copy so a rejected update leaves no trace.
	working := cloneOrder(current)
	change, err := fn(working)
	if err != nil {
		return nil, err
	}

	if change.Subscription != nil {
		if _, exists := r.subscriptions[id]; exists {
			return nil, ErrDuplicateSubscription
		}
		r.subscriptions[id] = *change.Subscription
	}

	if change.History != nil {
		r.history[id] = append(r.history[id], *change.History)
	}

	r.orders[id] = working
	return cloneOrder(working), nil
}

func (r *memoryRepository) Subscription(_ context.Context, orderID string) (*model.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.subscriptions[orderID]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return model.OrderNotFound(id)
	}

	delete(r.orders, id)
	delete(r.history, id)
	delete(r.subscriptions, id)
	return nil
}

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.Notes = cloneString(o.Notes)
	c.AdminNotes = cloneString(o.AdminNotes)
	c.ServerID = cloneString(o.ServerID)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
