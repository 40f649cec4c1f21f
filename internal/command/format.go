package command

import (
	"fmt"
	"strconv"
	"strings"

	"hostbot/internal/model"
	"hostbot/internal/notify"
)

func (h *Handler) helpText(admin bool) string {
	if admin {
		return h.texts.Replies.HelpCustomer + h.texts.Replies.HelpAdmin
	}
	return h.texts.Replies.HelpCustomer
}

func (h *Handler) listPackages() string {
	r := h.texts.Replies
	pkgs := h.packages.ListPackages()
	if len(pkgs) == 0 {
		return r.PackagesEmpty
	}

	var sb strings.Builder
	sb.WriteString(r.PackagesHeader)
	for _, p := range pkgs {
		sb.WriteString(notify.Render(r.PackageLine, map[string]string{
			"key":   p.Key,
			"name":  p.Name,
			"price": h.texts.Money(p.Currency, p.Price),
			"ram":   p.Specs.RAM,
			"cpu":   p.Specs.CPU,
			"disk":  p.Specs.Storage,
		}))
	}
	sb.WriteString(r.PackagesFooter)
	return sb.String()
}

func (h *Handler) formatOrder(order *model.Order, history []model.StatusHistory, admin bool) string {
	r := h.texts.Replies
	vars := h.texts.OrderVars(*order)
	vars["package_key"] = order.PackageKey

	var sb strings.Builder
	sb.WriteString(notify.Render(r.OrderDetail, vars))
	if order.HasServer() {
		sb.WriteString(notify.Render(r.OrderServer, map[string]string{"server_id": *order.ServerID}))
	}
	if order.Notes != nil {
		sb.WriteString(notify.Render(r.OrderNotes, map[string]string{"notes": *order.Notes}))
	}
	if admin {
		sb.WriteString(notify.Render(r.OrderCustomer, map[string]string{"name": order.Customer.Name, "phone": order.Customer.Phone}))
		if order.AdminNotes != nil {
			sb.WriteString(notify.Render(r.OrderAdminNotes, map[string]string{"notes": *order.AdminNotes}))
		}
	}

	sb.WriteString(r.OrderHistory)
	for _, entry := range history {
		fmt.Fprintf(&sb, "\n- %s %s", entry.CreatedAt.Format("2006-01-02 15:04"), h.texts.StatusName(entry.Status))
		if entry.Note != "" {
			fmt.Fprintf(&sb, " (%s)", entry.Note)
		}
	}
	return sb.String()
}

func (h *Handler) formatOrderList(orders []model.Order, limit int) string {
	lines := make([]string, 0, min(len(orders), limit)+1)
	for i, o := range orders {
		if i == limit {
			lines = append(lines, notify.Render(h.texts.Replies.ListMore, map[string]string{"count": strconv.Itoa(len(orders) - limit)}))
			break
		}
		lines = append(lines, fmt.Sprintf("- %s %s x%d %s [%s]",
			o.ID, o.PackageKey, o.Duration, h.texts.Money(o.Currency, o.TotalAmount), h.texts.StatusName(o.Status)))
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) formatStats(s *model.OrderStats) string {
	var sb strings.Builder
	sb.WriteString(notify.Render(h.texts.Replies.Stats, map[string]string{
		"total":   strconv.Itoa(s.Total),
		"today":   strconv.Itoa(s.Today),
		"month":   strconv.Itoa(s.ThisMonth),
		"pending": strconv.Itoa(s.PendingPayment),
		"revenue": h.texts.Money("", s.Revenue),
		"average": h.texts.Money("", s.AverageValue),
	}))
	for _, status := range model.AllStatuses {
		fmt.Fprintf(&sb, "\n%s: %d", h.texts.StatusName(status), s.ByStatus[status])
	}
	return sb.String()
}

func pick(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}
