package postgres

import (
	"context"
	"time"

	"pos/internal/billing"
	"pos/internal/models"

	"github.com/google/uuid"
)

const paymentTTL = 24 * time.Hour

// CreatePayment opens a pending payment intent for the order's current total.
// Settling the order itself goes through AdvanceStatus.
func (s *Store) CreatePayment(ctx context.Context, orderRef string) (models.Payment, error) {
	order, err := s.GetOrder(ctx, orderRef)
	if err != nil {
		return models.Payment{}, err
	}

	now := time.Now().UTC()
	payment := models.Payment{
		PaymentID: uuid.NewString(),
		OrderID:   order.OrderID,
		Amount:    billing.Round2(order.Total),
		Currency:  "INR",
		Status:    "pending",
		CreatedAt: now,
		ExpiresAt: now.Add(paymentTTL),
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO payments (payment_id, order_id, amount, currency, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, payment.PaymentID, payment.OrderID, payment.Amount, payment.Currency,
		payment.Status, payment.CreatedAt, payment.ExpiresAt)
	if err != nil {
		return models.Payment{}, err
	}
	return payment, nil
}
