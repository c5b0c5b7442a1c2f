package memory

import (
	"context"
	"errors"

	"staybook/internal/app/uow"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domaincalendar "staybook/internal/domain/calendar"
	domainlistings "staybook/internal/domain/listings"
	domainpricing "staybook/internal/domain/pricing"
)

// Store bundles the in-memory repositories of one process.
type Store struct {
	Listings       *ListingRepository
	Bookings       *BookingRepository
	Claims         *ClaimRepository
	BlockedDates   *BlockedDateRepository
	Calendars      *CalendarRepository
	PricingConfigs *PricingConfigRepository
}

func NewStore() *Store {
	return &Store{
		Listings:       NewListingRepository(),
		Bookings:       NewBookingRepository(),
		Claims:         NewClaimRepository(),
		BlockedDates:   NewBlockedDateRepository(),
		Calendars:      NewCalendarRepository(),
		PricingConfigs: NewPricingConfigRepository(),
	}
}

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	Store *Store
}

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Begin starts a lightweight boundary. Writes apply immediately and are not
// undone on rollback; after-commit hooks still run only on commit and
// after-rollback hooks only on rollback.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{store: f.Store}, nil
}

type Unit struct {
	uow.Hooks
	store *Store
}

func (u *Unit) Listings() domainlistings.ListingRepository             { return u.store.Listings }
func (u *Unit) Bookings() domainbooking.Repository                     { return u.store.Bookings }
func (u *Unit) Claims() domainavailability.ClaimRepository             { return u.store.Claims }
func (u *Unit) BlockedDates() domainavailability.BlockedDateRepository { return u.store.BlockedDates }
func (u *Unit) Calendars() domaincalendar.Repository                   { return u.store.Calendars }
func (u *Unit) PricingConfigs() domainpricing.ConfigRepository         { return u.store.PricingConfigs }

func (u *Unit) Commit(ctx context.Context) error {
	u.RunHooks(uow.Detach(ctx))
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.RunRollbackHooks(uow.Detach(ctx))
	return nil
}

var _ uow.UoWFactory = Factory{}
