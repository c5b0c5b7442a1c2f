// Package bootstrap registers every use case on the command and query buses
// and wraps them with the middleware pipeline.
package bootstrap

import (
	"errors"
	"log/slog"
	"time"

	"staybook/internal/app/commands"
	availabilityapp "staybook/internal/app/handlers/availability"
	bookingapp "staybook/internal/app/handlers/booking"
	calendarapp "staybook/internal/app/handlers/calendar"
	listingapp "staybook/internal/app/handlers/listings"
	pricingapp "staybook/internal/app/handlers/pricing"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/services/auth"
	"staybook/internal/app/uow"
)

var ErrMissingDependency = errors.New("bootstrap: missing dependency")

type Deps struct {
	UoWFactory  uow.UoWFactory
	Outbox      outbox.Outbox
	Idempotency middleware.IdempotencyStore
	Payments    policies.PaymentsPort
	Fetcher     policies.FeedFetcher
	Codec       policies.CalendarCodec
	// Feeds is optional; without it publishing reports it is disabled.
	Feeds  policies.FeedPublisher
	Locker policies.Locker
	Logger *slog.Logger
	Now    func() time.Time

	PendingTTL         time.Duration
	CancellationWindow time.Duration
	LockTTL            time.Duration
	UIDHost            string
	Currency           string
	IDGenerator        func() string
}

type Application struct {
	Commands commands.Bus
	Queries  queries.Bus

	commandKeys []string
	queryKeys   []string
}

// CommandKeys lists the registered command keys in sorted order.
func (a *Application) CommandKeys() []string { return a.commandKeys }
func (a *Application) QueryKeys() []string   { return a.queryKeys }

func Build(d Deps) (*Application, error) {
	switch {
	case d.UoWFactory == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("unit of work factory"))
	case d.Outbox == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("outbox"))
	case d.Idempotency == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("idempotency store"))
	case d.Payments == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("payments"))
	case d.Fetcher == nil || d.Codec == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("calendar feed fetcher and codec"))
	case d.Locker == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("locker"))
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publisher := outbox.Publisher{Outbox: d.Outbox, Encoder: outbox.JSONEventEncoder{}, Logger: logger}

	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()

	registerListings(commandBus, queryBus, listingapp.Deps{
		UoWFactory:      d.UoWFactory,
		Publisher:       publisher,
		Logger:          logger.With("component", "listings"),
		Now:             d.Now,
		IDGenerator:     d.IDGenerator,
		DefaultCurrency: d.Currency,
	})
	registerBookings(commandBus, queryBus, bookingapp.Deps{
		UoWFactory:         d.UoWFactory,
		Publisher:          publisher,
		Payments:           d.Payments,
		Logger:             logger.With("component", "bookings"),
		Now:                d.Now,
		PendingTTL:         d.PendingTTL,
		CancellationWindow: d.CancellationWindow,
	}, d.IDGenerator)
	registerPricing(commandBus, queryBus, pricingapp.Deps{
		UoWFactory: d.UoWFactory,
		Logger:     logger.With("component", "pricing"),
		Now:        d.Now,
	})
	registerCalendars(commandBus, queryBus, calendarapp.Deps{
		UoWFactory:  d.UoWFactory,
		Fetcher:     d.Fetcher,
		Codec:       d.Codec,
		Feeds:       d.Feeds,
		Locker:      d.Locker,
		Publisher:   publisher,
		Logger:      logger.With("component", "calendars"),
		Now:         d.Now,
		LockTTL:     d.LockTTL,
		UIDHost:     d.UIDHost,
		IDGenerator: d.IDGenerator,
	})
	queries.RegisterHandler(queryBus, availabilityapp.GetOccupancyQuery{}.Key(), &availabilityapp.GetOccupancyHandler{
		UoWFactory: d.UoWFactory,
		Logger:     logger.With("component", "availability"),
		Now:        d.Now,
	})

	validator := middleware.NewStructValidator()
	authorizer := auth.RoleAuthorizer{}
	return &Application{
		Commands: middleware.ChainCommands(
			commandBus,
			middleware.Logging(logger),
			middleware.Validation(validator),
			middleware.Authorization(authorizer),
			middleware.Idempotency(d.Idempotency, nil),
			middleware.Transaction(d.UoWFactory, nil),
			middleware.OutboxFlush(d.Outbox, logger),
		),
		Queries: middleware.ChainQueries(
			queryBus,
			middleware.QueryLogging(logger),
			middleware.QueryValidation(validator),
			middleware.QueryAuthorization(authorizer),
		),
		commandKeys: commandBus.Keys(),
		queryKeys:   queryBus.Keys(),
	}, nil
}

func registerListings(cb *commands.InMemoryBus, qb *queries.InMemoryBus, d listingapp.Deps) {
	commands.RegisterHandler(cb, listingapp.CreateListingCommand{}.Key(), &listingapp.CreateListingHandler{Deps: d})
	commands.RegisterHandler(cb, listingapp.UpdateListingCommand{}.Key(), &listingapp.UpdateListingHandler{Deps: d})
	state := &listingapp.ChangeListingStateHandler{Deps: d}
	commands.RegisterHandler(cb, listingapp.ChangeListingStateCommand{Activate: true}.Key(), state)
	commands.RegisterHandler(cb, listingapp.ChangeListingStateCommand{}.Key(), state)
	commands.RegisterHandler(cb, listingapp.ReplaceOverridesCommand{}.Key(), &listingapp.ReplaceOverridesHandler{Deps: d})
	queries.RegisterHandler(qb, listingapp.GetListingQuery{}.Key(), &listingapp.GetListingHandler{Deps: d})
	queries.RegisterHandler(qb, listingapp.ListHostListingsQuery{}.Key(), &listingapp.ListHostListingsHandler{Deps: d})
}

func registerBookings(cb *commands.InMemoryBus, qb *queries.InMemoryBus, d bookingapp.Deps, ids func() string) {
	commands.RegisterHandler(cb, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{Deps: d, IDGenerator: ids})
	commands.RegisterHandler(cb, bookingapp.UpdateBookingStatusCommand{}.Key(), &bookingapp.UpdateBookingStatusHandler{Deps: d})
	commands.RegisterHandler(cb, bookingapp.CancelBookingCommand{}.Key(), &bookingapp.CancelBookingHandler{Deps: d})
	commands.RegisterHandler(cb, bookingapp.ExpirePendingBookingsCommand{}.Key(), &bookingapp.ExpirePendingBookingsHandler{Deps: d})
	queries.RegisterHandler(qb, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{Deps: d})
	queries.RegisterHandler(qb, bookingapp.ListBookingsQuery{}.Key(), &bookingapp.ListBookingsHandler{Deps: d})
	queries.RegisterHandler(qb, bookingapp.CheckAvailabilityQuery{}.Key(), &bookingapp.CheckAvailabilityHandler{Deps: d})
	queries.RegisterHandler(qb, bookingapp.CalculatePriceQuery{}.Key(), &bookingapp.CalculatePriceHandler{Deps: d})
}

func registerPricing(cb *commands.InMemoryBus, qb *queries.InMemoryBus, d pricingapp.Deps) {
	commands.RegisterHandler(cb, pricingapp.UpsertPricingConfigCommand{}.Key(), &pricingapp.UpsertPricingConfigHandler{Deps: d})
	queries.RegisterHandler(qb, pricingapp.GetPricingConfigQuery{}.Key(), &pricingapp.GetPricingConfigHandler{Deps: d})
	queries.RegisterHandler(qb, pricingapp.GetEffectivePricingQuery{}.Key(), &pricingapp.GetEffectivePricingHandler{Deps: d})
}

func registerCalendars(cb *commands.InMemoryBus, qb *queries.InMemoryBus, d calendarapp.Deps) {
	commands.RegisterHandler(cb, calendarapp.AddCalendarCommand{}.Key(), &calendarapp.AddCalendarHandler{Deps: d})
	commands.RegisterHandler(cb, calendarapp.RemoveCalendarCommand{}.Key(), &calendarapp.RemoveCalendarHandler{Deps: d})
	commands.RegisterHandler(cb, calendarapp.SyncCalendarCommand{}.Key(), &calendarapp.SyncCalendarHandler{Deps: d})
	commands.RegisterHandler(cb, calendarapp.SyncListingCalendarsCommand{}.Key(), &calendarapp.SyncListingCalendarsHandler{Deps: d})
	commands.RegisterHandler(cb, calendarapp.PublishListingFeedCommand{}.Key(), &calendarapp.PublishListingFeedHandler{Deps: d})
	queries.RegisterHandler(qb, calendarapp.ListCalendarsQuery{}.Key(), &calendarapp.ListCalendarsHandler{Deps: d})
	queries.RegisterHandler(qb, calendarapp.ExportListingICSQuery{}.Key(), &calendarapp.ExportListingICSHandler{Deps: d})
}
