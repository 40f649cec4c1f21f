package handler

import (
	"context"
	"net/http"
	"time"

	"hostbot/internal/admission"
	"hostbot/internal/command"
	"hostbot/internal/model"
	"hostbot/internal/notify"
	"hostbot/internal/provisioning"
	"hostbot/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Provisioner covers the panel status checks and server actions.
type Provisioner interface {
	AutoProvisioningStatus(ctx context.Context) provisioning.Status
	TestConnection(ctx context.Context) error
	ServerAction(ctx context.Context, orderID, action string) error
}

// Admission is the admin surface of the admission controller.
type Admission interface {
	Status(sender string) admission.SenderStatus
	Unblock(sender string) bool
	Reset(sender string)
	Stats() admission.Stats
}

// BulkSender sends templated messages to many customers.
type BulkSender interface {
	BulkSend(ctx context.Context, orders []model.Order, tmpl string, delay time.Duration) (notify.BulkReport, error)
}

// Inbound processes one chat message.
type Inbound interface {
	Handle(ctx context.Context, msg command.InboundMessage) error
}

const maxBulkRecipients = 200

// OpsHandler serves the operator endpoints and the chat webhook.
type OpsHandler struct {
	orders      service.OrderService
	provisioner Provisioner
	admission   Admission
	bulk        BulkSender
	inbound     Inbound
	bulkDelay   time.Duration
	logger      zerolog.Logger
}

// NewOpsHandler creates a new operator handler.
func NewOpsHandler(
	orders service.OrderService,
	provisioner Provisioner,
	adm Admission,
	bulk BulkSender,
	inbound Inbound,
	bulkDelay time.Duration,
	logger zerolog.Logger,
) *OpsHandler {
	return &OpsHandler{
		orders:      orders,
		provisioner: provisioner,
		admission:   adm,
		bulk:        bulk,
		inbound:     inbound,
		bulkDelay:   bulkDelay,
		logger:      logger.With().Str("handler", "ops").Logger(),
	}
}

type bulkRequest struct {
	Template string            `json:"template"`
	Status   model.OrderStatus `json:"status"`
	OrderIDs []string          `json:"orderIds"`
	DelayMs  *int              `json:"delayMs"`
}

type admissionResponse struct {
	admission.SenderStatus
	Tracked int `json:"tracked"`
	Blocked int `json:"blocked"`
}

// Health handles GET /health.
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Webhook handles POST /webhook/messages. Every well-formed message is
// acknowledged so the gateway does not redeliver it; processing errors
// are only logged. A message is processed to completion even if the
// gateway drops the connection.
func (h *OpsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var msg command.InboundMessage
	if !decodeJSON(w, r, &msg) {
		return
	}

	if err := h.inbound.Handle(context.WithoutCancel(r.Context()), msg); err != nil {
		if model.IsValidation(err) {
			respondError(w, r, err, h.logger)
			return
		}
		h.logger.Error().Err(err).Str("sender", msg.Sender).Msg("inbound message failed")
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// ProvisioningStatus handles GET /api/provisioning/status.
func (h *OpsHandler) ProvisioningStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.provisioner.AutoProvisioningStatus(r.Context()))
}

// TestConnection handles POST /api/provisioning/test.
func (h *OpsHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.provisioner.TestConnection(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("panel connection test failed")
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// ServerAction handles POST /api/orders/{id}/server/{action}.
func (h *OpsHandler) ServerAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action := chi.URLParam(r, "action")

	if err := h.provisioner.ServerAction(r.Context(), id, action); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"orderId": service.NormalizeOrderID(id),
		"action":  action,
		"status":  "done",
	})
}

// AdmissionStatus handles GET /api/admission/{sender}.
func (h *OpsHandler) AdmissionStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.admission.Stats()
	writeJSON(w, http.StatusOK, admissionResponse{
		SenderStatus: h.admission.Status(chi.URLParam(r, "sender")),
		Tracked:      stats.Tracked,
		Blocked:      stats.Blocked,
	})
}

// Unblock handles POST /api/admission/{sender}/unblock.
func (h *OpsHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	sender := chi.URLParam(r, "sender")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sender":    sender,
		"unblocked": h.admission.Unblock(sender),
	})
}

// ResetAdmission handles POST /api/admission/{sender}/reset.
func (h *OpsHandler) ResetAdmission(w http.ResponseWriter, r *http.Request) {
	sender := chi.URLParam(r, "sender")
	h.admission.Reset(sender)
	writeJSON(w, http.StatusOK, h.admission.Status(sender))
}

// Bulk handles POST /api/notifications/bulk. Recipients are the given
// orders, or every order in the given status.
func (h *OpsHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if len(req.OrderIDs) == 0 && req.Status == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "orderIds or status is required")
		return
	}

	delay := h.bulkDelay
	if req.DelayMs != nil {
		if *req.DelayMs < 0 {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "delayMs must not be negative")
			return
		}
		delay = time.Duration(*req.DelayMs) * time.Millisecond
	}

	orders, err := h.recipients(r.Context(), req)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	if len(orders) > maxBulkRecipients {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "too many recipients")
		return
	}

	report, err := h.bulk.BulkSend(r.Context(), orders, req.Template, delay)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *OpsHandler) recipients(ctx context.Context, req bulkRequest) ([]model.Order, error) {
	if len(req.OrderIDs) == 0 {
		return h.orders.GetOrdersByStatus(ctx, req.Status)
	}

	orders := make([]model.Order, 0, len(req.OrderIDs))
	for _, id := range req.OrderIDs {
		order, err := h.orders.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}
