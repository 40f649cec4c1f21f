package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hostbot/internal/model"
	"hostbot/internal/provisioning"
	"hostbot/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Engine is the part of the fulfillment engine the order API drives.
type Engine interface {
	Orders() service.OrderService
	PlaceOrder(ctx context.Context, req model.CreateOrderRequest) (*model.Order, error)
	Transition(ctx context.Context, id string, to model.OrderStatus, actor, note string) (*model.StatusChange, error)
	Cancel(ctx context.Context, id, actor, reason string) (*model.StatusChange, error)
	Provision(ctx context.Context, id string) (*provisioning.Result, error)
	RetryProvisioning(ctx context.Context, id string) (*provisioning.Result, error)
	SetServerID(ctx context.Context, id, serverID string) (*model.Order, error)
}

const (
	apiActor         = "api"
	defaultListLimit = 100
	maxListLimit     = 500
)

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	engine Engine
	orders service.OrderService
	logger zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(engine Engine, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		engine: engine,
		orders: engine.Orders(),
		logger: logger.With().Str("handler", "order").Logger(),
	}
}

type transitionRequest struct {
	Status model.OrderStatus `json:"status"`
	Actor  string            `json:"actor"`
	Note   string            `json:"note"`
}

type cancelRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

type serverRequest struct {
	ServerID string `json:"serverId"`
}

type notesRequest struct {
	Notes      *string `json:"notes"`
	AdminNotes *string `json:"adminNotes"`
}

type orderDetail struct {
	model.Order
	History      []model.StatusHistory `json:"history"`
	Subscription *model.Subscription   `json:"subscription,omitempty"`
}

type provisionResponse struct {
	OrderID      string             `json:"orderId"`
	Success      bool               `json:"success"`
	Reused       bool               `json:"reused"`
	ServerID     string             `json:"serverId,omitempty"`
	Username     string             `json:"username,omitempty"`
	PanelURL     string             `json:"panelUrl,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	Error        string             `json:"error,omitempty"`
	Compensation *compensationState `json:"compensation,omitempty"`
	DurationMs   int64              `json:"durationMs"`
}

type compensationState struct {
	UserID    int    `json:"userId"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// List handles GET /api/orders. Supported query parameters are status,
// phone, q and limit.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := model.OrderFilter{
		Status:        model.OrderStatus(strings.ToLower(query.Get("status"))),
		CustomerPhone: query.Get("phone"),
		Query:         query.Get("q"),
		Limit:         defaultListLimit,
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "limit must be between 1 and 500")
			return
		}
		filter.Limit = limit
	}

	orders, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// Create handles POST /api/orders requests.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.engine.PlaceOrder(r.Context(), req)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// Get handles GET /api/orders/{id}. The response carries the history and
// the subscription when one exists.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	history, err := h.orders.GetHistory(r.Context(), order.ID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	detail := orderDetail{Order: *order, History: history}
	if order.Status == model.StatusCompleted || order.Status == model.StatusRefunded {
		sub, err := h.orders.GetSubscription(r.Context(), order.ID)
		if err != nil && !model.IsNotFound(err) {
			respondError(w, r, err, h.logger)
			return
		}
		detail.Subscription = sub
	}

	writeJSON(w, http.StatusOK, detail)
}

// Delete handles DELETE /api/orders/{id}.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /api/orders/{id}/history.
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.orders.GetHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// Transition handles POST /api/orders/{id}/transition.
func (h *OrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	change, err := h.engine.Transition(r.Context(), chi.URLParam(r, "id"), req.Status, actorOr(req.Actor), req.Note)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, change)
}

// Cancel handles POST /api/orders/{id}/cancel. The body is optional.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	change, err := h.engine.Cancel(r.Context(), chi.URLParam(r, "id"), actorOr(req.Actor), req.Reason)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, change)
}

// Provision handles POST /api/orders/{id}/provision.
func (h *OrderHandler) Provision(w http.ResponseWriter, r *http.Request) {
	h.provision(w, r, h.engine.Provision)
}

// RetryProvision handles POST /api/orders/{id}/retry-provision.
func (h *OrderHandler) RetryProvision(w http.ResponseWriter, r *http.Request) {
	h.provision(w, r, h.engine.RetryProvisioning)
}

func (h *OrderHandler) provision(
	w http.ResponseWriter,
	r *http.Request,
	run func(context.Context, string) (*provisioning.Result, error),
) {
	result, err := run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, newProvisionResponse(result))
}

// SetServer handles PUT /api/orders/{id}/server.
func (h *OrderHandler) SetServer(w http.ResponseWriter, r *http.Request) {
	var req serverRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.engine.SetServerID(r.Context(), chi.URLParam(r, "id"), req.ServerID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// UpdateNotes handles PUT /api/orders/{id}/notes. Either field may be
// omitted; an empty string clears it.
func (h *OrderHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Notes == nil && req.AdminNotes == nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "notes or adminNotes is required")
		return
	}

	id := chi.URLParam(r, "id")

	var (
		order *model.Order
		err   error
	)
	if req.Notes != nil {
		if order, err = h.orders.UpdateNotes(r.Context(), id, req.Notes); err != nil {
			respondError(w, r, err, h.logger)
			return
		}
	}
	if req.AdminNotes != nil {
		if order, err = h.orders.UpdateAdminNotes(r.Context(), id, req.AdminNotes); err != nil {
			respondError(w, r, err, h.logger)
			return
		}
	}

	writeJSON(w, http.StatusOK, order)
}

// Stats handles GET /api/orders/stats.
func (h *OrderHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.GetOrderStats(r.Context())
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func actorOr(actor string) string {
	if actor = strings.TrimSpace(actor); actor != "" {
		return actor
	}
	return apiActor
}

func newProvisionResponse(result *provisioning.Result) provisionResponse {
	resp := provisionResponse{
		OrderID:    result.OrderID,
		Success:    result.Success,
		Reused:     result.Reused,
		ServerID:   result.ServerID,
		Reason:     string(result.Reason),
		DurationMs: result.Duration.Round(time.Millisecond).Milliseconds(),
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	if creds := result.Credentials; creds != nil {
		resp.Username = creds.Username
		resp.PanelURL = creds.PanelURL
	}
	if c := result.Compensation; c != nil {
		resp.Compensation = &compensationState{UserID: c.UserID, Succeeded: c.Succeeded}
		if c.Err != nil {
			resp.Compensation.Error = c.Err.Error()
		}
	}
	return resp
}
