// Package notify turns order state changes into chat messages for
// customers and admins and into events on the order feed.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"hostbot/internal/events"
	"hostbot/internal/messaging"
	"hostbot/internal/model"
	"hostbot/internal/resilience"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Notification kinds.
const (
	KindOrderCreated       = "order_created"
	KindStatusChanged      = "status_changed"
	KindProvisioned        = "provisioned"
	KindProvisioningFailed = "provisioning_failed"
	KindReply              = "reply"
)

// Config configures a Dispatcher.
type Config struct {
	Locale       string
	AdminNumbers []string
}

// Report holds the dispatcher's delivery counters.
type Report struct {
	Sent         uint64 `json:"sent"`
	Failed       uint64 `json:"failed"`
	Published    uint64 `json:"published"`
	PublishFails uint64 `json:"publishFailed"`
}

// Dispatcher sends notifications. Every message goes through the executor
// on its own; a failed send is logged and counted and never blocks the
// other recipients.
type Dispatcher struct {
	sender    messaging.Sender
	executor  *resilience.Executor
	publisher events.Publisher
	templates Templates
	admins    []string
	logger    zerolog.Logger
	now       func() time.Time

	sent         atomic.Uint64
	failed       atomic.Uint64
	published    atomic.Uint64
	publishFails atomic.Uint64
}

// New creates a dispatcher. A nil publisher disables the event feed.
func New(
	sender messaging.Sender,
	executor *resilience.Executor,
	publisher events.Publisher,
	cfg Config,
	logger zerolog.Logger,
) *Dispatcher {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Dispatcher{
		sender:    sender,
		executor:  executor,
		publisher: publisher,
		templates: TemplatesFor(cfg.Locale),
		admins:    cfg.AdminNumbers,
		logger:    logger.With().Str("component", "notify").Logger(),
		now:       time.Now,
	}
}

// Templates returns the active locale's texts.
func (d *Dispatcher) Templates() Templates {
	return d.templates
}

// IsAdmin reports whether sender is one of the admin numbers.
func (d *Dispatcher) IsAdmin(sender string) bool {
	for _, a := range d.admins {
		if a == sender {
			return true
		}
	}
	return false
}

// Report returns the delivery counters.
func (d *Dispatcher) Report() Report {
	return Report{
		Sent:         d.sent.Load(),
		Failed:       d.failed.Load(),
		Published:    d.published.Load(),
		PublishFails: d.publishFails.Load(),
	}
}

type message struct {
	to   string
	text string
}

// OrderCreated acknowledges a new order to the customer and tells the admins.
func (d *Dispatcher) OrderCreated(ctx context.Context, order model.Order) error {
	vars := d.templates.OrderVars(order)

	msgs := []message{{to: order.Customer.ReplyTo, text: Render(d.templates.OrderCreatedCustomer, vars)}}
	msgs = append(msgs, d.adminMessages(Render(d.templates.OrderCreatedAdmin, vars))...)

	d.publish(ctx, events.OrderEvent{Type: events.TypeOrderCreated, Actor: model.ActorSystem}, order)
	return d.deliver(ctx, KindOrderCreated, order.ID, msgs)
}

// StatusChanged tells the customer about a transition. Admins hear about
// completed, cancelled and refunded orders.
func (d *Dispatcher) StatusChanged(ctx context.Context, change model.StatusChange) error {
	vars := d.templates.OrderVars(change.Order)
	vars["from"] = d.templates.StatusName(change.From)
	vars["actor"] = change.Actor
	vars["note_line"] = d.templates.Note(change.Note)

	var msgs []message
	if tmpl, ok := d.templates.StatusCustomer[change.To]; ok {
		msgs = append(msgs, message{to: change.Order.Customer.ReplyTo, text: Render(tmpl, vars)})
	}
	if change.To.Terminal() {
		msgs = append(msgs, d.adminMessages(Render(d.templates.StatusAdmin, vars))...)
	}

	d.publish(ctx, events.OrderEvent{
		Type:  events.TypeStatusChanged,
		From:  string(change.From),
		Actor: change.Actor,
		Note:  change.Note,
	}, change.Order)
	return d.deliver(ctx, KindStatusChanged, change.Order.ID, msgs)
}

// Provisioned sends the panel credentials to the customer and a summary to
// the admins. Credentials are not kept after this call.
func (d *Dispatcher) Provisioned(ctx context.Context, order model.Order, creds model.Credentials) error {
	vars := d.templates.OrderVars(order)
	vars["panel_url"] = creds.PanelURL
	vars["username"] = creds.Username
	vars["password"] = creds.Password
	vars["server_id"] = creds.ServerID

	customer := d.templates.ProvisionedCustomer
	if creds.Password == "" {
		customer = d.templates.ReusedCustomer
	}

	msgs := []message{{to: order.Customer.ReplyTo, text: Render(customer, vars)}}
	msgs = append(msgs, d.adminMessages(Render(d.templates.ProvisionedAdmin, vars))...)

	d.publish(ctx, events.OrderEvent{
		Type:     events.TypeProvisioned,
		Actor:    model.ActorProvisioner,
		ServerID: creds.ServerID,
	}, order)
	return d.deliver(ctx, KindProvisioned, order.ID, msgs)
}

// ProvisioningFailed tells the customer whether the failure is transient
// or needs support, and gives the admins the classified reason and the
// retry command.
func (d *Dispatcher) ProvisioningFailed(ctx context.Context, order model.Order, reason resilience.Reason, cause error, compensation string) error {
	vars := d.templates.OrderVars(order)
	vars["reason"] = string(reason)
	vars["error"] = "unknown error"
	if cause != nil {
		vars["error"] = cause.Error()
	}
	vars["compensation"] = ""
	if compensation != "" {
		vars["compensation"] = "\n" + compensation
	}

	customer := d.templates.FailedCustomer
	if !reason.Retryable() {
		customer = d.templates.FailedSupportCustomer
	}

	msgs := []message{{to: order.Customer.ReplyTo, text: Render(customer, vars)}}
	msgs = append(msgs, d.adminMessages(Render(d.templates.FailedAdmin, vars))...)

	d.publish(ctx, events.OrderEvent{
		Type:   events.TypeProvisioningFailed,
		Actor:  model.ActorProvisioner,
		Reason: string(reason),
	}, order)
	return d.deliver(ctx, KindProvisioningFailed, order.ID, msgs)
}

// Reply sends a single message, e.g. a command response.
func (d *Dispatcher) Reply(ctx context.Context, to, text string) error {
	return d.deliver(ctx, KindReply, to, []message{{to: to, text: text}})
}

// NotifyAdmins sends text to every admin.
func (d *Dispatcher) NotifyAdmins(ctx context.Context, text string) error {
	return d.deliver(ctx, KindReply, "admins", d.adminMessages(text))
}

// RateLimitedText returns the wait reply for a blocked sender.
func (d *Dispatcher) RateLimitedText(wait time.Duration) string {
	minutes := int((wait + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return Render(d.templates.RateLimited, map[string]string{"minutes": strconv.Itoa(minutes)})
}

func (d *Dispatcher) adminMessages(text string) []message {
	msgs := make([]message, 0, len(d.admins))
	for _, a := range d.admins {
		msgs = append(msgs, message{to: a, text: text})
	}
	return msgs
}

// deliver sends msgs concurrently and returns a *DeliveryError listing the
// ones that failed.
func (d *Dispatcher) deliver(ctx context.Context, kind, orderID string, msgs []message) error {
	var (
		mu       sync.Mutex
		failures []Failure
		g        errgroup.Group
	)

	for _, m := range msgs {
		if m.to == "" {
			continue
		}
		g.Go(func() error {
			if err := d.send(ctx, m.to, m.text); err != nil {
				mu.Lock()
				failures = append(failures, Failure{Recipient: m.to, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) == 0 {
		return nil
	}

	err := &DeliveryError{Kind: kind, OrderID: orderID, Total: len(msgs), Failures: failures}
	d.logger.Warn().Err(err).Str("kind", kind).Str("order_id", orderID).Msg("notification partially undelivered")
	return err
}

func (d *Dispatcher) send(ctx context.Context, to, text string) error {
	err := d.executor.Do(ctx, "send_message", func(ctx context.Context) error {
		return d.sender.SendText(ctx, to, text)
	})
	if err != nil {
		d.failed.Add(1)
		return err
	}
	d.sent.Add(1)
	return nil
}

// publish fills the order fields of event and sends it to the feed.
// Failures are logged only.
func (d *Dispatcher) publish(ctx context.Context, event events.OrderEvent, order model.Order) {
	event.OrderID = order.ID
	event.Status = string(order.Status)
	event.CustomerPhone = order.Customer.Phone
	event.PackageKey = order.PackageKey
	event.Total = order.TotalAmount.String()
	if event.ServerID == "" && order.ServerID != nil {
		event.ServerID = *order.ServerID
	}
	event.OccurredAt = d.now().UTC()

	if err := d.publisher.Publish(ctx, event); err != nil {
		d.publishFails.Add(1)
		d.logger.Warn().Err(err).Str("type", event.Type).Str("order_id", order.ID).Msg("failed to publish order event")
		return
	}
	d.published.Add(1)
}

// CompensationSummary renders a provisioning compensation outcome for admins.
func CompensationSummary(userID int, succeeded bool, err error) string {
	if succeeded {
		return fmt.Sprintf("Orphaned panel account %d was removed.", userID)
	}
	return fmt.Sprintf("Orphaned panel account %d could not be removed: %v", userID, err)
}
