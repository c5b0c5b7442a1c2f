package uow

import (
	"context"
	"slices"
	"sync"

	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domaincalendar "staybook/internal/domain/calendar"
	domainlistings "staybook/internal/domain/listings"
	domainpricing "staybook/internal/domain/pricing"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Listings() domainlistings.ListingRepository
	Bookings() domainbooking.Repository
	Claims() domainavailability.ClaimRepository
	BlockedDates() domainavailability.BlockedDateRepository
	Calendars() domaincalendar.Repository
	PricingConfigs() domainpricing.ConfigRepository

	// AfterCommit registers fn to run once the unit committed. Hooks run
	// outside the transaction and their failures cannot undo it.
	AfterCommit(fn func(ctx context.Context))
	// AfterRollback registers fn to undo side effects the unit cannot roll
	// back itself, such as a captured payment. Hooks run once the unit rolled
	// back, last registered first.
	AfterRollback(fn func(ctx context.Context))

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
	// NoTransaction makes every write commit on its own, for long running
	// operations whose partial progress must survive a failure.
	NoTransaction bool
}

// Hooks collects after-commit and after-rollback callbacks; units embed it.
type Hooks struct {
	mu        sync.Mutex
	fns       []func(ctx context.Context)
	rollbacks []func(ctx context.Context)
}

func (h *Hooks) AfterCommit(fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

func (h *Hooks) AfterRollback(fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.rollbacks = append(h.rollbacks, fn)
	h.mu.Unlock()
}

// RunHooks runs the after-commit callbacks in registration order and forgets
// both lists.
func (h *Hooks) RunHooks(ctx context.Context) {
	h.mu.Lock()
	fns := h.fns
	h.fns, h.rollbacks = nil, nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ctx)
	}
}

// DiscardHooks forgets the after-commit callbacks. After-rollback callbacks
// stay until RunRollbackHooks.
func (h *Hooks) DiscardHooks() {
	h.mu.Lock()
	h.fns = nil
	h.mu.Unlock()
}

// RunRollbackHooks forgets the after-commit callbacks and runs the
// after-rollback ones in reverse registration order.
func (h *Hooks) RunRollbackHooks(ctx context.Context) {
	h.mu.Lock()
	fns := h.rollbacks
	h.fns, h.rollbacks = nil, nil
	h.mu.Unlock()
	for _, fn := range slices.Backward(fns) {
		fn(ctx)
	}
}
