package command

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"hostbot/internal/admission"
	"hostbot/internal/fulfillment"
	"hostbot/internal/model"
	"hostbot/internal/notify"
	"hostbot/internal/provisioning"
	"hostbot/internal/resilience"
	"hostbot/internal/service"

	"github.com/rs/zerolog"
)

// InboundMessage is one chat message delivered by the gateway.
type InboundMessage struct {
	Sender  string `json:"from"`
	Name    string `json:"name,omitempty"`
	ReplyTo string `json:"replyTo,omitempty"`
	Text    string `json:"text"`
}

// Replier sends responses back to the chat in its locale.
type Replier interface {
	Reply(ctx context.Context, to, text string) error
	IsAdmin(sender string) bool
	RateLimitedText(wait time.Duration) string
	Templates() notify.Templates
}

// ServerControl covers the admin-only provisioning tools.
type ServerControl interface {
	AutoProvisioningStatus(ctx context.Context) provisioning.Status
	ServerAction(ctx context.Context, orderID, action string) error
}

const (
	myOrdersLimit = 10
	listLimit     = 15
)

// Handler routes chat commands.
type Handler struct {
	admission *admission.Controller
	engine    *fulfillment.Engine
	orders    service.OrderService
	packages  service.PackageService
	servers   ServerControl
	replier   Replier
	texts     notify.Templates
	locks     *senderLocks
	logger    zerolog.Logger
}

// NewHandler creates a command handler.
func NewHandler(
	adm *admission.Controller,
	engine *fulfillment.Engine,
	packages service.PackageService,
	servers ServerControl,
	replier Replier,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		admission: adm,
		engine:    engine,
		orders:    engine.Orders(),
		packages:  packages,
		servers:   servers,
		replier:   replier,
		texts:     replier.Templates(),
		locks:     newSenderLocks(),
		logger:    logger.With().Str("component", "command").Logger(),
	}
}

// Handle processes one message to completion. Messages from the same
// sender are handled one at a time. The returned error is for logging;
// the sender has already been answered when it makes sense.
func (h *Handler) Handle(ctx context.Context, msg InboundMessage) error {
	msg.Sender = strings.TrimSpace(msg.Sender)
	if msg.Sender == "" {
		return model.NewValidationError("from", "sender is required")
	}
	if msg.ReplyTo == "" {
		msg.ReplyTo = msg.Sender
	}

	unlock := h.locks.lock(msg.Sender)
	defer unlock()

	decision := h.admission.Admit(msg.Sender, msg.Text)
	switch decision.Reason {
	case admission.ReasonDuplicate:
		h.logger.Debug().Str("sender", msg.Sender).Msg("duplicate message dropped")
		return nil
	case admission.ReasonBlocked:
		if !decision.BlockStarted {
			h.logger.Debug().Str("sender", msg.Sender).Msg("message from blocked sender dropped")
			return nil
		}
		h.logger.Info().Str("sender", msg.Sender).Dur("retry_after", decision.RetryAfter).Msg("sender rate limited")
		return h.reply(ctx, msg, h.replier.RateLimitedText(decision.RetryAfter))
	}

	cmd, ok := Parse(msg.Text)
	if !ok {
		return nil
	}

	admin := h.replier.IsAdmin(msg.Sender)
	text, err := h.dispatch(ctx, msg, cmd, admin)
	if err != nil {
		text = h.describeError(err)
		if !isUserError(err) {
			h.logger.Error().Err(err).Str("sender", msg.Sender).Str("command", cmd.Name).Msg("command failed")
		} else {
			err = nil
		}
	}
	if text == "" {
		return err
	}
	if rerr := h.reply(ctx, msg, text); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

func (h *Handler) dispatch(ctx context.Context, msg InboundMessage, cmd Command, admin bool) (string, error) {
	switch cmd.Name {
	case "help", "menu", "start":
		return h.helpText(admin), nil
	case "packages", "paket", "list":
		return h.listPackages(), nil
	case "order", "buy":
		return h.placeOrder(ctx, msg, cmd)
	case "status":
		return h.orderStatus(ctx, msg, cmd, admin)
	case "myorders":
		return h.myOrders(ctx, msg)
	case "cancel":
		return h.cancel(ctx, msg, cmd, admin)
	}

	if !admin {
		return h.texts.Replies.UnknownCommand, nil
	}

	switch cmd.Name {
	case "confirm":
		return h.transition(ctx, msg, cmd, model.StatusConfirmed)
	case "process":
		return h.transition(ctx, msg, cmd, model.StatusProcessing)
	case "complete":
		return h.complete(ctx, msg, cmd)
	case "reject":
		return h.reject(ctx, msg, cmd)
	case "refund":
		return h.transition(ctx, msg, cmd, model.StatusRefunded)
	case "provision", "retry":
		return h.provision(ctx, cmd)
	case "setserver":
		return h.setServer(ctx, cmd)
	case "note":
		return h.adminNote(ctx, cmd)
	case "pending":
		return h.pending(ctx)
	case "search":
		return h.search(ctx, cmd)
	case "stats":
		return h.stats(ctx)
	case "autoprov":
		return h.autoProvisioning(ctx), nil
	case "unblock":
		return h.unblock(cmd)
	case "limit":
		return h.limit(cmd)
	case provisioning.ActionSuspend, provisioning.ActionResume, provisioning.ActionRestart:
		return h.serverAction(ctx, cmd)
	}

	return h.texts.Replies.UnknownAdminCommand, nil
}

func (h *Handler) reply(ctx context.Context, msg InboundMessage, text string) error {
	return h.replier.Reply(ctx, msg.ReplyTo, text)
}

func (h *Handler) usage(syntax string) string {
	return notify.Render(h.texts.Replies.Usage, map[string]string{"usage": syntax})
}

func (h *Handler) changed(change *model.StatusChange) string {
	return notify.Render(h.texts.Replies.Transitioned, map[string]string{
		"order_id": change.Order.ID,
		"from":     h.texts.StatusName(change.From),
		"to":       h.texts.StatusName(change.To),
	})
}

func (h *Handler) placeOrder(ctx context.Context, msg InboundMessage, cmd Command) (string, error) {
	if len(cmd.Args) < 2 {
		return h.usage("order <package> <months> [notes]"), nil
	}
	months, err := strconv.Atoi(cmd.Arg(1))
	if err != nil {
		return h.texts.Replies.MonthsNotNumber, nil
	}

	req := model.CreateOrderRequest{
		Customer:   model.Customer{Phone: msg.Sender, Name: msg.Name, ReplyTo: msg.ReplyTo},
		PackageKey: cmd.Arg(0),
		Duration:   months,
	}
	if notes := cmd.Rest(2); notes != "" {
		req.Notes = &notes
	}

	// The customer is acknowledged by the order-created notification.
	if _, err := h.engine.PlaceOrder(ctx, req); err != nil {
		return "", err
	}
	return "", nil
}

func (h *Handler) orderStatus(ctx context.Context, msg InboundMessage, cmd Command, admin bool) (string, error) {
	if cmd.Arg(0) == "" {
		return h.usage("status <order-id>"), nil
	}
	order, err := h.ownedOrder(ctx, msg, cmd.Arg(0), admin)
	if err != nil {
		return "", err
	}
	history, err := h.orders.GetHistory(ctx, order.ID)
	if err != nil {
		return "", err
	}
	return h.formatOrder(order, history, admin), nil
}

func (h *Handler) myOrders(ctx context.Context, msg InboundMessage) (string, error) {
	orders, err := h.orders.GetOrdersByCustomer(ctx, msg.Sender)
	if err != nil {
		return "", err
	}
	if len(orders) == 0 {
		return h.texts.Replies.NoOrders, nil
	}
	return notify.Render(h.texts.Replies.YourOrders, map[string]string{"list": h.formatOrderList(orders, myOrdersLimit)}), nil
}

func (h *Handler) cancel(ctx context.Context, msg InboundMessage, cmd Command, admin bool) (string, error) {
	if cmd.Arg(0) == "" {
		return h.usage("cancel <order-id>"), nil
	}
	order, err := h.ownedOrder(ctx, msg, cmd.Arg(0), admin)
	if err != nil {
		return "", err
	}

	actor := model.ActorCustomer
	if admin && order.Customer.Phone != msg.Sender {
		actor = msg.Sender
	} else if order.Status != model.StatusPending {
		return notify.Render(h.texts.Replies.CannotCancel, map[string]string{
			"order_id": order.ID,
			"status":   h.texts.StatusName(order.Status),
		}), nil
	}

	reason := cmd.Rest(1)
	if reason == "" {
		reason = notify.Render(h.texts.Replies.CancelledBy, map[string]string{"actor": actor})
	}
	if _, err := h.engine.Cancel(ctx, order.ID, actor, reason); err != nil {
		return "", err
	}
	return "", nil
}

// ownedOrder loads an order visible to the sender. Customers only see
// their own orders; others look like they do not exist.
func (h *Handler) ownedOrder(ctx context.Context, msg InboundMessage, id string, admin bool) (*model.Order, error) {
	order, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && order.Customer.Phone != msg.Sender {
		return nil, model.OrderNotFound(order.ID)
	}
	return order, nil
}

func (h *Handler) transition(ctx context.Context, msg InboundMessage, cmd Command, to model.OrderStatus) (string, error) {
	if cmd.Arg(0) == "" {
		return h.usage(cmd.Name + " <order-id> [note]"), nil
	}
	change, err := h.engine.Transition(ctx, cmd.Arg(0), to, msg.Sender, cmd.Rest(1))
	if err != nil {
		return "", err
	}
	return h.changed(change), nil
}

func (h *Handler) complete(ctx context.Context, msg InboundMessage, cmd Command) (string, error) {
	if cmd.Arg(0) == "" {
		return h.usage("complete <order-id> [server-id]"), nil
	}
	change, err := h.engine.Complete(ctx, cmd.Arg(0), cmd.Arg(1), msg.Sender, "Completed by admin")
	if err != nil {
		return "", err
	}
	return h.changed(change), nil
}

func (h *Handler) reject(ctx context.Context, msg InboundMessage, cmd Command) (string, error) {
	reason := cmd.Rest(1)
	if cmd.Arg(0) == "" || reason == "" {
		return h.usage("reject <order-id> <reason>"), nil
	}
	change, err := h.engine.Cancel(ctx, cmd.Arg(0), msg.Sender, reason)
	if err != nil {
		return "", err
	}
	return notify.Render(h.texts.Replies.Rejected, map[string]string{"order_id": change.Order.ID, "reason": reason}), nil
}

func (h *Handler) provision(ctx context.Context, cmd Command) (string, error) {
	if cmd.Arg(0) == "" {
		return h.usage(cmd.Name + " <order-id>"), nil
	}

	run := h.engine.Provision
	if cmd.Name == "retry" {
		run = h.engine.RetryProvisioning
	}

	result, err := run(ctx, cmd.Arg(0))
	if err != nil {
		return "", err
	}
	if !result.Success {
		// Admins already got the failure notification with the details.
		return "", nil
	}
	vars := map[string]string{
		"order_id":  result.OrderID,
		"server_id": result.ServerID,
		"elapsed":   result.Duration.Round(time.Millisecond).String(),
	}
	if result.Reused {
		return notify.Render(h.texts.Replies.Reused, vars), nil
	}
	return notify.Render(h.texts.Replies.Provisioned, vars), nil
}

func (h *Handler) setServer(ctx context.Context, cmd Command) (string, error) {
	if len(cmd.Args) < 2 {
		return h.usage("setserver <order-id> <server-id>"), nil
	}
	order, err := h.engine.SetServerID(ctx, cmd.Arg(0), cmd.Arg(1))
	if err != nil {
		return "", err
	}
	return notify.Render(h.texts.Replies.ServerSet, map[string]string{"order_id": order.ID, "server_id": *order.ServerID}), nil
}

func (h *Handler) adminNote(ctx context.Context, cmd Command) (string, error) {
	if cmd.Arg(0) == "" {
		return h.usage("note <order-id> <text>"), nil
	}
	text := cmd.Rest(1)
	var notes *string
	if text != "" {
		notes = &text
	}
	order, err := h.orders.UpdateAdminNotes(ctx, cmd.Arg(0), notes)
	if err != nil {
		return "", err
	}
	vars := map[string]string{"order_id": order.ID}
	if notes == nil {
		return notify.Render(h.texts.Replies.AdminNoteCleared, vars), nil
	}
	return notify.Render(h.texts.Replies.AdminNoteSaved, vars), nil
}

func (h *Handler) pending(ctx context.Context) (string, error) {
	orders, err := h.orders.GetOrdersByStatus(ctx, model.StatusPending)
	if err != nil {
		return "", err
	}
	if len(orders) == 0 {
		return h.texts.Replies.NoPending, nil
	}
	return notify.Render(h.texts.Replies.PendingList, map[string]string{
		"count": strconv.Itoa(len(orders)),
		"list":  h.formatOrderList(orders, listLimit),
	}), nil
}

func (h *Handler) search(ctx context.Context, cmd Command) (string, error) {
	orders, err := h.orders.Search(ctx, cmd.Raw)
	if err != nil {
		return "", err
	}
	if len(orders) == 0 {
		return notify.Render(h.texts.Replies.NoMatch, map[string]string{"query": cmd.Raw}), nil
	}
	return notify.Render(h.texts.Replies.Found, map[string]string{
		"count": strconv.Itoa(len(orders)),
		"list":  h.formatOrderList(orders, listLimit),
	}), nil
}

func (h *Handler) stats(ctx context.Context) (string, error) {
	stats, err := h.orders.GetOrderStats(ctx)
	if err != nil {
		return "", err
	}
	return h.formatStats(stats), nil
}

func (h *Handler) autoProvisioning(ctx context.Context) string {
	s := h.servers.AutoProvisioningStatus(ctx)
	r := h.texts.Replies

	var sb strings.Builder
	sb.WriteString(notify.Render(r.AutoProvisioning, map[string]string{
		"enabled":    pick(s.Enabled, r.On, r.Off),
		"configured": pick(s.Configured, r.Yes, r.No),
	}))
	if s.PanelURL != "" {
		sb.WriteString(notify.Render(r.PanelLine, map[string]string{"panel_url": s.PanelURL}))
	}
	if s.Reachable {
		sb.WriteString(notify.Render(r.ConnectionOK, map[string]string{"nodes": strconv.Itoa(s.Nodes)}))
	} else {
		sb.WriteString(notify.Render(r.ConnectionFailed, map[string]string{"error": s.Error}))
	}
	return sb.String()
}

func (h *Handler) unblock(cmd Command) (string, error) {
	sender := cmd.Arg(0)
	if sender == "" {
		return h.usage("unblock <sender>"), nil
	}
	vars := map[string]string{"sender": sender}
	if !h.admission.Unblock(sender) {
		return notify.Render(h.texts.Replies.NotBlocked, vars), nil
	}
	return notify.Render(h.texts.Replies.Unblocked, vars), nil
}

func (h *Handler) limit(cmd Command) (string, error) {
	sender := cmd.Arg(0)
	r := h.texts.Replies
	if sender == "" {
		st := h.admission.Stats()
		return notify.Render(r.LimitSummary, map[string]string{
			"tracked": strconv.Itoa(st.Tracked),
			"blocked": strconv.Itoa(st.Blocked),
		}), nil
	}

	s := h.admission.Status(sender)
	text := notify.Render(r.LimitSender, map[string]string{
		"sender":    s.Sender,
		"count":     strconv.Itoa(s.Count),
		"limit":     strconv.Itoa(s.Limit),
		"remaining": strconv.Itoa(s.Remaining),
		"resets":    s.WindowResetsIn.Round(time.Second).String(),
	})
	if s.IsBlocked {
		text += notify.Render(r.LimitBlocked, map[string]string{"blocked_for": s.BlockedFor.Round(time.Second).String()})
	}
	return text, nil
}

func (h *Handler) serverAction(ctx context.Context, cmd Command) (string, error) {
	if cmd.Arg(0) == "" {
		return h.usage(cmd.Name + " <order-id>"), nil
	}
	if err := h.servers.ServerAction(ctx, cmd.Arg(0), cmd.Name); err != nil {
		return "", err
	}
	return notify.Render(h.texts.Replies.ServerActionDone, map[string]string{
		"order_id": service.NormalizeOrderID(cmd.Arg(0)),
		"action":   cmd.Name,
	}), nil
}

func isUserError(err error) bool {
	return model.IsValidation(err) ||
		model.IsNotFound(err) ||
		model.IsIllegalTransition(err) ||
		errors.Is(err, provisioning.ErrInProgress)
}

// describeError turns err into a reply that tells the sender whether the
// input was wrong, the failure is transient or support is needed.
func (h *Handler) describeError(err error) string {
	r := h.texts.Replies
	var (
		validation *model.ValidationError
		notFound   *model.NotFoundError
		illegal    *model.IllegalTransitionError
		external   *resilience.ExternalCallError
	)
	switch {
	case errors.As(err, &validation):
		return notify.Render(r.InvalidInput, map[string]string{"message": validation.Message})
	case errors.As(err, &notFound):
		return r.NotFoundText(notFound.Kind, notFound.ID)
	case errors.As(err, &illegal):
		return notify.Render(r.IllegalTransition, map[string]string{
			"order_id": illegal.OrderID,
			"from":     h.texts.StatusName(illegal.From),
			"to":       h.texts.StatusName(illegal.To),
		})
	case errors.Is(err, provisioning.ErrInProgress):
		return r.InProgress
	case errors.As(err, &external) && external.Reason.Retryable():
		return notify.Render(r.TryAgain, map[string]string{"reason": string(external.Reason)})
	default:
		return r.ContactSupport
	}
}
