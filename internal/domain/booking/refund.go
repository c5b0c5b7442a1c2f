package booking

import (
	"fmt"
	"time"

	"staybook/internal/domain/listings"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/money"
)

// Refund is the outcome of a cancellation. Amount is the policy share of the
// refundable total; the pet deposit is always returned on top of it.
type Refund struct {
	Percent    int
	DaysBefore float64
	Amount     money.Money
	PetDeposit money.Money
	Total      money.Money
}

// RefundPercent maps the days left before check-in to the refunded share.
func RefundPercent(policy listings.CancellationPolicy, daysBefore float64) int {
	if daysBefore < 1 {
		return 0
	}
	switch policy {
	case listings.PolicyFlexible:
		return 100
	case listings.PolicyModerate:
		if daysBefore >= 5 {
			return 100
		}
		return 50
	case listings.PolicyStrict:
		if daysBefore >= 7 {
			return 100
		}
		return 50
	case listings.PolicySuperStrict:
		if daysBefore >= 30 {
			return 50
		}
		return 0
	}
	return 0
}

// CalculateRefund applies the cancellation policy to a price snapshot.
func CalculateRefund(price pricing.PriceBreakdown, policy listings.CancellationPolicy, checkIn, now time.Time) Refund {
	days := checkIn.Sub(now).Hours() / 24
	pct := RefundPercent(policy, days)
	base := price.Refundable()
	amount := base.Percent(float64(pct))
	deposit := price.PetDeposit
	if deposit.Currency == "" {
		deposit = money.Zero(base.Currency)
	}
	total, err := amount.Add(deposit)
	if err != nil {
		total = amount
	}
	return Refund{Percent: pct, DaysBefore: days, Amount: amount, PetDeposit: deposit, Total: total}
}

// Cancel cancels a pending or confirmed booking and computes its refund. It is
// refused once now is inside window before check-in, and for a pending booking
// past its expiry even when the sweep has not marked it yet.
func (b *Booking) Cancel(reason string, window time.Duration, now time.Time) (Refund, error) {
	if !CanTransition(b.Status, StatusCancelled) {
		return Refund{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, b.Status, StatusCancelled)
	}
	if b.Expired(now) {
		return Refund{}, fmt.Errorf("%w: booking %s expired at %s", ErrInvalidStateTransition, b.ID, b.ExpiresAt.Format(time.RFC3339))
	}
	if !now.Before(b.Range.CheckIn.Add(-window)) {
		return Refund{}, ErrCancellationWindowClosed
	}
	refund := CalculateRefund(b.Price, b.CancellationPolicy, b.Range.CheckIn, now)
	now = now.UTC()
	b.Status = StatusCancelled
	b.CancelReason = reason
	b.ExpiresAt = nil
	b.Refund = &refund
	b.UpdatedAt = now
	b.Record(BookingCancelled{Subject: b.subject(now), Reason: reason, Refund: refund.Total})
	return refund, nil
}
