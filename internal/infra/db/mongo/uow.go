package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"

	"staybook/internal/app/uow"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domaincalendar "staybook/internal/domain/calendar"
	domainlistings "staybook/internal/domain/listings"
	domainpricing "staybook/internal/domain/pricing"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a MongoDB session/transaction. With NoTransaction the unit
// writes straight through and Commit only runs the hooks.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	unit := &Unit{
		listings:       NewListingRepository(f.DB),
		bookings:       NewBookingRepository(f.DB),
		claims:         NewClaimRepository(f.DB),
		blockedDates:   NewBlockedDateRepository(f.DB),
		calendars:      NewCalendarRepository(f.DB),
		pricingConfigs: NewPricingConfigRepository(f.DB),
	}
	if opts.NoTransaction {
		return unit, nil
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if opts.ReadOnly {
		txnOpts = txnOpts.SetReadConcern(readconcern.Snapshot())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	unit.session = session
	return unit, nil
}

type Unit struct {
	uow.Hooks
	session mongo.Session
	// base is the caller context without the session, used by hooks.
	base context.Context

	listings       *ListingRepository
	bookings       *BookingRepository
	claims         *ClaimRepository
	blockedDates   *BlockedDateRepository
	calendars      *CalendarRepository
	pricingConfigs *PricingConfigRepository
}

func (u *Unit) Listings() domainlistings.ListingRepository             { return u.listings }
func (u *Unit) Bookings() domainbooking.Repository                     { return u.bookings }
func (u *Unit) Claims() domainavailability.ClaimRepository             { return u.claims }
func (u *Unit) BlockedDates() domainavailability.BlockedDateRepository { return u.blockedDates }
func (u *Unit) Calendars() domaincalendar.Repository                   { return u.calendars }
func (u *Unit) PricingConfigs() domainpricing.ConfigRepository         { return u.pricingConfigs }

// Commit commits the transaction and then runs the after-commit hooks
// outside of it.
func (u *Unit) Commit(ctx context.Context) error {
	if u.session != nil {
		err := u.session.CommitTransaction(ctx)
		u.session.EndSession(ctx)
		u.session = nil
		if err != nil {
			u.DiscardHooks()
			return err
		}
	}
	u.RunHooks(uow.Detach(u.hookContext(ctx)))
	return nil
}

// Rollback aborts the transaction, then runs the after-rollback hooks outside
// of it.
func (u *Unit) Rollback(ctx context.Context) error {
	var err error
	if u.session != nil {
		err = u.session.AbortTransaction(ctx)
		u.session.EndSession(ctx)
		u.session = nil
	}
	u.RunRollbackHooks(uow.Detach(u.hookContext(ctx)))
	return err
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	u.base = ctx
	if u.session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, u.session)
}

func (u *Unit) hookContext(ctx context.Context) context.Context {
	if u.base != nil {
		return u.base
	}
	return ctx
}

var _ uow.UoWFactory = Factory{}
