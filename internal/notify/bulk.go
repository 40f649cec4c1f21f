package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"hostbot/internal/model"
)

// BulkReport aggregates a BulkSend run.
type BulkReport struct {
	Total    int       `json:"total"`
	Sent     int       `json:"sent"`
	Failed   int       `json:"failed"`
	Skipped  int       `json:"skipped"`
	Failures []Failure `json:"-"`
}

// ErrEmptyTemplate is returned by BulkSend for a blank template.
var ErrEmptyTemplate = errors.New("bulk template is empty")

// BulkSend renders tmpl for each order and sends it to the order's
// customer, waiting delay between messages. Supported placeholders are
// {order_id} {name} {phone} {package} {duration} {total} {status}.
// Cancelling ctx stops the run; unsent orders are counted as skipped.
func (d *Dispatcher) BulkSend(ctx context.Context, orders []model.Order, tmpl string, delay time.Duration) (BulkReport, error) {
	report := BulkReport{Total: len(orders)}
	if strings.TrimSpace(tmpl) == "" {
		return report, ErrEmptyTemplate
	}

	for i, order := range orders {
		if i > 0 && delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				report.Skipped = len(orders) - i
				return report, ctx.Err()
			case <-timer.C:
			}
		}

		to := order.Customer.ReplyTo
		if to == "" {
			to = order.Customer.Phone
		}

		if err := d.send(ctx, to, Render(tmpl, d.templates.OrderVars(order))); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, Failure{Recipient: to, Err: err})
			continue
		}
		report.Sent++
	}

	d.logger.Info().
		Int("total", report.Total).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Msg("bulk send finished")

	return report, nil
}
