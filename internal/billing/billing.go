// Package billing computes order money amounts. Tax and service charge are
// fixed house rates, not per-order settings.
package billing

import (
	"math"

	"pos/internal/models"
)

const (
	TaxRate           = 0.05
	ServiceChargeRate = 0.10
)

type Totals struct {
	Subtotal      float64 `json:"subtotal"`
	Tax           float64 `json:"tax"`
	ServiceCharge float64 `json:"service_charge"`
	Total         float64 `json:"total"`
}

// ComputeTotals folds line items into the stored amounts. Values are kept at
// full precision here; rounding happens at reporting and payment boundaries.
func ComputeTotals(items []models.OrderItem) Totals {
	subtotal := 0.0
	for _, item := range items {
		subtotal += item.UnitPrice * float64(item.Quantity)
	}
	tax := subtotal * TaxRate
	serviceCharge := subtotal * ServiceChargeRate
	return Totals{
		Subtotal:      subtotal,
		Tax:           tax,
		ServiceCharge: serviceCharge,
		Total:         subtotal + tax + serviceCharge,
	}
}

// Round2 rounds to 2 decimal places for presentation boundaries.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}
