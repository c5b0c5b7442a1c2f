package listings

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/outbox"
	"staybook/internal/app/services/auth"
	"staybook/internal/app/uow"
	domainlistings "staybook/internal/domain/listings"
)

const (
	createListingKey           = "listings.create"
	updateListingKey           = "listings.update"
	activateListingKey         = "listings.activate"
	suspendListingKey          = "listings.suspend"
	replaceListingOverridesKey = "listings.replace_overrides"
	getListingKey              = "listings.get"
	listHostListingsKey        = "listings.list_by_host"
)

var ErrListingNotOwned = errors.New("listings: not owned by actor")

type Deps struct {
	UoWFactory  uow.UoWFactory
	Publisher   outbox.Publisher
	Logger      *slog.Logger
	Now         func() time.Time
	IDGenerator func() string
	// DefaultCurrency fills listings created without one.
	DefaultCurrency string
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) newID() string {
	if d.IDGenerator != nil {
		return d.IDGenerator()
	}
	return uuid.NewString()
}

func (d Deps) currency() string {
	if d.DefaultCurrency != "" {
		return d.DefaultCurrency
	}
	return "USD"
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// loadOwned fetches a listing the actor hosts, or any listing for admins.
func loadOwned(ctx context.Context, unit uow.UnitOfWork, id string, actor auth.Actor) (*domainlistings.Listing, error) {
	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(id))
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Is(string(listing.Host)) {
		return nil, errors.Join(auth.ErrForbidden, ErrListingNotOwned)
	}
	return listing, nil
}
