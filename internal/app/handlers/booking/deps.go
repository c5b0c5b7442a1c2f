package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/services/auth"
	availabilitysvc "staybook/internal/app/services/availability"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

const (
	createBookingKey         = "booking.create"
	updateBookingStatusKey   = "booking.update_status"
	cancelBookingKey         = "booking.cancel"
	expirePendingBookingsKey = "booking.expire_pending"
	getBookingKey            = "booking.get"
	listBookingsKey          = "booking.list"
	checkAvailabilityKey     = "booking.check_availability"
	calculatePriceKey        = "booking.calculate_price"

	defaultPendingTTL         = 24 * time.Hour
	defaultCancellationWindow = 24 * time.Hour
	defaultExpireBatch        = 200
)

var ErrBookingNotOwned = errors.New("booking: not owned by actor")

// Deps are the collaborators shared by the booking use cases.
type Deps struct {
	UoWFactory uow.UoWFactory
	Publisher  outbox.Publisher
	Payments   policies.PaymentsPort
	Logger     *slog.Logger
	Now        func() time.Time

	PendingTTL         time.Duration
	CancellationWindow time.Duration
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) pendingTTL() time.Duration {
	if d.PendingTTL > 0 {
		return d.PendingTTL
	}
	return defaultPendingTTL
}

func (d Deps) cancellationWindow() time.Duration {
	if d.CancellationWindow > 0 {
		return d.CancellationWindow
	}
	return defaultCancellationWindow
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Deps) ledger(unit uow.UnitOfWork) *availabilitysvc.Ledger {
	l := availabilitysvc.FromUnit(unit, d.logger())
	events := d.Publisher
	l.Events = &events
	return l
}

// loadForActor fetches a booking and checks the actor is its guest, its host
// or an admin.
func loadForActor(ctx context.Context, repo domainbooking.Repository, id string, actor auth.Actor) (*domainbooking.Booking, error) {
	b, err := repo.ByID(ctx, domainbooking.BookingID(id))
	if err != nil {
		return nil, err
	}
	if !canAccess(actor, b) {
		return nil, errors.Join(auth.ErrForbidden, ErrBookingNotOwned)
	}
	return b, nil
}

func canAccess(actor auth.Actor, b *domainbooking.Booking) bool {
	return actor.IsAdmin() || actor.Is(b.GuestID) || actor.Is(string(b.HostID))
}

func isHostOrAdmin(actor auth.Actor, b *domainbooking.Booking) bool {
	return actor.IsAdmin() || actor.Is(string(b.HostID))
}
