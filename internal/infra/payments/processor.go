package payments

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"staybook/internal/app/policies"
	"staybook/internal/domain/shared/money"
)

var (
	ErrIntentNotFound = errors.New("payments: intent not found")
	ErrRefundTooLarge = errors.New("payments: refund exceeds captured amount")
)

const (
	statusRequiresConfirmation = "requires_confirmation"
	statusSucceeded            = "succeeded"
	statusRefunded             = "refunded"
)

type intent struct {
	policies.PaymentIntent
	refunded int64
}

// Processor is an in-process payment processor. It settles every intent it
// is asked to confirm, unless Decline says otherwise, and keeps state in
// memory only.
type Processor struct {
	mu      sync.Mutex
	intents map[string]*intent
	Decline func(bookingID string, amount money.Money) bool
	Logger  *slog.Logger
}

func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{intents: map[string]*intent{}, Logger: logger}
}

func (p *Processor) CreateIntent(ctx context.Context, bookingID string, amount money.Money) (policies.PaymentIntent, error) {
	if p.Decline != nil && p.Decline(bookingID, amount) {
		return policies.PaymentIntent{}, policies.ErrPaymentDeclined
	}
	in := &intent{PaymentIntent: policies.PaymentIntent{
		ID:     "pi_" + uuid.NewString(),
		Status: statusRequiresConfirmation,
		Amount: amount,
	}}
	p.mu.Lock()
	p.intents[in.ID] = in
	p.mu.Unlock()
	p.Logger.InfoContext(ctx, "payment intent created", "intent", in.ID, "booking_id", bookingID, "amount", amount.Amount, "currency", amount.Currency)
	return in.PaymentIntent, nil
}

func (p *Processor) Confirm(ctx context.Context, intentID string) (policies.PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	in, ok := p.intents[intentID]
	if !ok {
		return policies.PaymentIntent{}, ErrIntentNotFound
	}
	in.Status = statusSucceeded
	return in.PaymentIntent, nil
}

func (p *Processor) Refund(ctx context.Context, intentID string, amount money.Money) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	in, ok := p.intents[intentID]
	if !ok {
		return "", ErrIntentNotFound
	}
	if in.refunded+amount.Amount > in.Amount.Amount {
		return "", ErrRefundTooLarge
	}
	in.refunded += amount.Amount
	if in.refunded == in.Amount.Amount {
		in.Status = statusRefunded
	}
	refundID := "re_" + uuid.NewString()
	p.Logger.InfoContext(ctx, "payment refunded", "intent", intentID, "refund", refundID, "amount", amount.Amount)
	return refundID, nil
}

var _ policies.PaymentsPort = (*Processor)(nil)
