package store

import "pos/internal/models"

var transitionMap = map[string][]string{
	models.OrderPending:   {models.OrderPreparing, models.OrderCancelled},
	models.OrderPreparing: {models.OrderServed, models.OrderCancelled},
	models.OrderServed:    {models.OrderPaid, models.OrderCancelled},
}

// ValidTransition reports whether an order may move from one status to
// another. Paid and cancelled are terminal.
func ValidTransition(from, to string) bool {
	allowed, ok := transitionMap[from]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == to {
			return true
		}
	}
	return false
}

// ActiveStatuses are the statuses under which an order holds its table.
// At most one order per table may be in any of them.
func ActiveStatuses() []string {
	return []string{models.OrderPending, models.OrderPreparing, models.OrderServed}
}

func IsActive(status string) bool {
	for _, active := range ActiveStatuses() {
		if status == active {
			return true
		}
	}
	return false
}
