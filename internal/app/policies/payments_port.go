package policies

import (
	"context"
	"errors"

	"staybook/internal/domain/shared/money"
)

var ErrPaymentDeclined = errors.New("payments: payment declined")

type PaymentIntent struct {
	ID     string
	Status string
	Amount money.Money
}

// PaymentsPort is the opaque payment processor. The booking engine only needs
// amounts, statuses and ids from it.
type PaymentsPort interface {
	CreateIntent(ctx context.Context, bookingID string, amount money.Money) (PaymentIntent, error)
	Confirm(ctx context.Context, intentID string) (PaymentIntent, error)
	Refund(ctx context.Context, intentID string, amount money.Money) (refundID string, err error)
}
