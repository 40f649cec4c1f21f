package notify

import (
	"strconv"

	"hostbot/internal/model"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	xmessage "golang.org/x/text/message"
	"golang.org/x/text/number"
)

// OrderVars returns the bulk placeholders for order: order_id, name, phone,
// package, duration, total and status.
func (t Templates) OrderVars(order model.Order) map[string]string {
	name := order.Customer.Name
	if name == "" {
		name = order.Customer.Phone
	}
	pkg := order.PackageName
	if pkg == "" {
		pkg = order.PackageKey
	}

	return map[string]string{
		"order_id": order.ID,
		"name":     name,
		"phone":    order.Customer.Phone,
		"package":  pkg,
		"duration": strconv.Itoa(order.Duration),
		"total":    t.Money(order.Currency, order.TotalAmount),
		"status":   t.StatusName(order.Status),
	}
}

// Money formats amount with this locale's separators.
func (t Templates) Money(currency string, amount decimal.Decimal) string {
	return FormatMoney(t.Lang, currency, amount)
}

// FormatMoney renders amount with the digit grouping of lang, e.g.
// "IDR 1,250,000" in English and "IDR 1.250.000" in Indonesian.
// Fractions are shown only when present, always with two digits.
func FormatMoney(lang language.Tag, currency string, amount decimal.Decimal) string {
	amount = amount.Round(2)

	var formatted number.Formatter
	if amount.Equal(amount.Truncate(0)) {
		formatted = number.Decimal(amount.IntPart())
	} else {
		formatted = number.Decimal(amount.InexactFloat64(),
			number.MinFractionDigits(2), number.MaxFractionDigits(2))
	}

	out := xmessage.NewPrinter(lang).Sprintf("%v", formatted)
	if currency != "" {
		out = currency + " " + out
	}
	return out
}
