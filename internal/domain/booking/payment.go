package booking

import (
	"time"

	"staybook/internal/domain/shared/money"
)

type PaymentStatus string

const (
	PaymentPending              PaymentStatus = "pending"
	PaymentRequiresConfirmation PaymentStatus = "requires_confirmation"
	PaymentSucceeded            PaymentStatus = "succeeded"
	PaymentRefunded             PaymentStatus = "refunded"
	PaymentRefundFailed         PaymentStatus = "refund_failed"
	PaymentFailed               PaymentStatus = "failed"
)

type Payment struct {
	IntentID      string
	Status        PaymentStatus
	Amount        money.Money
	Refunded      money.Money
	RefundID      string
	FailureReason string
	UpdatedAt     time.Time
}

// Captured reports whether money was taken and can be refunded.
func (p Payment) Captured() bool {
	return p.Status == PaymentSucceeded
}

func (b *Booking) AttachPaymentIntent(intentID string, now time.Time) {
	b.Payment.IntentID = intentID
	b.Payment.Status = PaymentRequiresConfirmation
	b.Payment.UpdatedAt = now.UTC()
}

func (b *Booking) MarkPaymentSucceeded(now time.Time) {
	b.Payment.Status = PaymentSucceeded
	b.Payment.FailureReason = ""
	b.Payment.UpdatedAt = now.UTC()
}

func (b *Booking) MarkPaymentFailed(reason string, now time.Time) {
	b.Payment.Status = PaymentFailed
	b.Payment.FailureReason = reason
	b.Payment.UpdatedAt = now.UTC()
}

func (b *Booking) MarkRefunded(refundID string, amount money.Money, now time.Time) {
	b.Payment.Status = PaymentRefunded
	b.Payment.RefundID = refundID
	b.Payment.Refunded = amount
	b.Payment.UpdatedAt = now.UTC()
}

func (b *Booking) MarkRefundFailed(reason string, now time.Time) {
	b.Payment.Status = PaymentRefundFailed
	b.Payment.FailureReason = reason
	b.Payment.UpdatedAt = now.UTC()
}
