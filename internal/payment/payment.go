// Package payment builds payment payloads and invoice records. It does no
// rendering and talks to no gateway; callers hand its output to whatever
// front end or PDF service needs it.
package payment

import (
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"pos/internal/billing"
	"pos/internal/models"
)

// UPIConfig identifies the payee encoded into QR payloads.
type UPIConfig struct {
	PayeeID   string
	PayeeName string
	Currency  string
}

// UPIPayload returns the upi://pay deep link for an order's total. The
// amount is rounded to 2 decimals, which is what UPI apps expect.
func UPIPayload(cfg UPIConfig, order models.Order) string {
	amount := billing.Round2(order.Total)
	values := url.Values{}
	values.Set("pa", cfg.PayeeID)
	values.Set("pn", cfg.PayeeName)
	values.Set("am", fmt.Sprintf("%.2f", amount))
	values.Set("cu", cfg.Currency)
	values.Set("tn", "Order "+order.Code)
	return "upi://pay?" + values.Encode()
}

// InvoiceLine is one priced row on an invoice.
type InvoiceLine struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Amount    float64 `json:"amount"`
}

type Invoice struct {
	Number        string        `json:"number"`
	OrderID       string        `json:"order_id"`
	OrderCode     string        `json:"order_code"`
	TableNumber   int           `json:"table_number"`
	CustomerName  string        `json:"customer_name,omitempty"`
	Lines         []InvoiceLine `json:"lines"`
	Subtotal      float64       `json:"subtotal"`
	Tax           float64       `json:"tax"`
	ServiceCharge float64       `json:"service_charge"`
	Total         float64       `json:"total"`
	IssuedAt      time.Time     `json:"issued_at"`
}

// InvoiceNumber generates an INV-<unix-ms>-<rand> reference. Uniqueness
// within a restaurant comes from the millisecond timestamp; the suffix
// covers same-millisecond collisions well enough for invoice volume.
func InvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%d-%04d", now.UnixMilli(), rand.Intn(10000))
}

func BuildInvoice(order models.Order, now time.Time) Invoice {
	invoice := Invoice{
		Number:        InvoiceNumber(now),
		OrderID:       order.OrderID,
		OrderCode:     order.Code,
		TableNumber:   order.TableNumber,
		CustomerName:  order.CustomerName,
		Subtotal:      billing.Round2(order.Subtotal),
		Tax:           billing.Round2(order.Tax),
		ServiceCharge: billing.Round2(order.ServiceCharge),
		Total:         billing.Round2(order.Total),
		IssuedAt:      now,
	}
	for _, item := range order.Items {
		invoice.Lines = append(invoice.Lines, InvoiceLine{
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Amount:    billing.Round2(item.UnitPrice * float64(item.Quantity)),
		})
	}
	return invoice
}
