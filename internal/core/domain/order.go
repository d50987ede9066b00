package domain

import (
	"fmt"
	"time"
)

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentCard:
		return PaymentCard, nil
	case PaymentCash:
		return PaymentCash, nil
	default:
		return "", fmt.Errorf("unknown payment method %q", s)
	}
}

// Order is an immutable snapshot of one purchase. Articles is the
// deduplicated set of article codes in Items, kept alongside the items
// so purchase lookups don't have to walk the item list.
type Order struct {
	ID         string
	UserID     string
	Items      []LineItem
	TotalPrice int64
	Commission int64
	FinalTotal int64
	Payment    PaymentMethod
	PlacedAt   time.Time
	Articles   []string
}

type Totals struct {
	TotalPrice int64
	Commission int64
	FinalTotal int64
}

// ComputeTotals sums the line totals and applies the 1% card surcharge,
// floored to a whole minor unit. Cash orders carry no commission.
func ComputeTotals(items []LineItem, method PaymentMethod) Totals {
	var total int64
	for _, it := range items {
		total += it.LineTotal()
	}

	var commission int64
	if method == PaymentCard {
		commission = total / 100
	}

	return Totals{
		TotalPrice: total,
		Commission: commission,
		FinalTotal: total + commission,
	}
}

// Articles collapses the items' article codes into a set, preserving
// first-seen order.
func Articles(items []LineItem) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.Article]; ok {
			continue
		}
		seen[it.Article] = struct{}{}
		out = append(out, it.Article)
	}
	return out
}

func NewOrder(id, userID string, items []LineItem, method PaymentMethod, placedAt time.Time) Order {
	totals := ComputeTotals(items, method)
	return Order{
		ID:         id,
		UserID:     userID,
		Items:      items,
		TotalPrice: totals.TotalPrice,
		Commission: totals.Commission,
		FinalTotal: totals.FinalTotal,
		Payment:    method,
		PlacedAt:   placedAt,
		Articles:   Articles(items),
	}
}
