package payments

import (
	"context"
	"errors"
	"testing"

	"staybook/internal/app/policies"
	"staybook/internal/domain/shared/money"
)

func TestProcessorLifecycle(t *testing.T) {
	p := NewProcessor(nil)
	ctx := context.Background()
	total := money.Money{Amount: 500, Currency: "USD"}

	in, err := p.CreateIntent(ctx, "bk-1", total)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if in.Status != "requires_confirmation" {
		t.Fatalf("status = %s", in.Status)
	}
	confirmed, err := p.Confirm(ctx, in.ID)
	if err != nil || confirmed.Status != "succeeded" {
		t.Fatalf("confirm = %+v, %v", confirmed, err)
	}
	if _, err := p.Refund(ctx, in.ID, money.Money{Amount: 300, Currency: "USD"}); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if _, err := p.Refund(ctx, in.ID, money.Money{Amount: 300, Currency: "USD"}); !errors.Is(err, ErrRefundTooLarge) {
		t.Fatalf("over refund err = %v", err)
	}
	if _, err := p.Confirm(ctx, "pi_missing"); !errors.Is(err, ErrIntentNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestProcessorDecline(t *testing.T) {
	p := NewProcessor(nil)
	p.Decline = func(_ string, amount money.Money) bool { return amount.Amount > 1000 }
	if _, err := p.CreateIntent(context.Background(), "bk-2", money.Money{Amount: 5000, Currency: "USD"}); !errors.Is(err, policies.ErrPaymentDeclined) {
		t.Fatalf("err = %v", err)
	}
}
