package service

import (
	"time"

	"hostbot/internal/model"

	"github.com/shopspring/decimal"
)

// computeStats builds the operator read model. Revenue counts completed
// orders only; the average spans every order. Day and month boundaries are
// taken in loc.
func computeStats(orders []model.Order, now time.Time, loc *time.Location) *model.OrderStats {
	stats := &model.OrderStats{
		Total:        len(orders),
		ByStatus:     make(map[model.OrderStatus]int, len(model.AllStatuses)),
		ByPackage:    make(map[string]int),
		Revenue:      decimal.Zero,
		AverageValue: decimal.Zero,
	}

	for _, s := range model.AllStatuses {
		stats.ByStatus[s] = 0
	}

	now = now.In(loc)
	todayY, todayM, todayD := now.Date()

	sum := decimal.Zero
	for _, o := range orders {
		stats.ByStatus[o.Status]++
		stats.ByPackage[o.PackageKey]++
		sum = sum.Add(o.TotalAmount)

		if o.Status == model.StatusCompleted {
			stats.Revenue = stats.Revenue.Add(o.TotalAmount)
		}
		if o.Status == model.StatusPending {
			stats.PendingPayment++
		}

		y, m, d := o.CreatedAt.In(loc).Date()
		if y == todayY && m == todayM {
			stats.ThisMonth++
			if d == todayD {
				stats.Today++
			}
		}
	}

	if len(orders) > 0 {
		stats.AverageValue = sum.Div(decimal.NewFromInt(int64(len(orders)))).Round(2)
	}

	return stats
}
