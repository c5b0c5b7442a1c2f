package listings

import (
	"context"
	"strings"

	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/services/auth"
	domainlistings "staybook/internal/domain/listings"
)

type GetListingQuery struct {
	ListingID string `validate:"required"`
}

func (q GetListingQuery) Key() string { return getListingKey }

// GetListingHandler returns active listings to anyone; drafts and suspended
// listings only to their host and admins.
type GetListingHandler struct {
	Deps
}

func (h *GetListingHandler) Handle(ctx context.Context, q GetListingQuery) (dto.Listing, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Listing{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return dto.Listing{}, err
	}
	if !listing.IsActive() {
		actor, ok := auth.ActorFromContext(ctx)
		if !ok || !(actor.IsAdmin() || actor.Is(string(listing.Host))) {
			return dto.Listing{}, domainlistings.ErrListingNotFound
		}
	}
	return dto.MapListing(listing), nil
}

type ListHostListingsQuery struct {
	HostID string
}

func (q ListHostListingsQuery) Key() string { return listHostListingsKey }

type ListHostListingsHandler struct {
	Deps
}

func (h *ListHostListingsHandler) Handle(ctx context.Context, q ListHostListingsQuery) (dto.ListingCollection, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return dto.ListingCollection{}, err
	}
	host := actor.ID
	if id := strings.TrimSpace(q.HostID); id != "" && id != actor.ID {
		if !actor.IsAdmin() {
			return dto.ListingCollection{}, auth.ErrForbidden
		}
		host = id
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ListingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := unit.Listings().ListByHost(execCtx, domainlistings.HostID(host))
	if err != nil {
		return dto.ListingCollection{}, err
	}
	out := dto.ListingCollection{Items: make([]dto.Listing, 0, len(items))}
	for _, l := range items {
		out.Items = append(out.Items, dto.MapListing(l))
	}
	return out, nil
}

var (
	_ queries.Handler[GetListingQuery, dto.Listing]                 = (*GetListingHandler)(nil)
	_ queries.Handler[ListHostListingsQuery, dto.ListingCollection] = (*ListHostListingsHandler)(nil)
)
