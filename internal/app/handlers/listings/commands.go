package listings

import (
	"context"
	"fmt"
	"strings"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/services/auth"
	"staybook/internal/app/uow"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

type hostOnly struct{}

func (hostOnly) AllowedRoles() []auth.Role { return []auth.Role{auth.RoleHost} }

type CreateListingCommand struct {
	hostOnly
	// HostID lets admins create a listing on behalf of a host.
	HostID  string
	Payload dto.ListingInput
}

func (c CreateListingCommand) Key() string { return createListingKey }

type CreateListingHandler struct {
	Deps
}

func (h *CreateListingHandler) Handle(ctx context.Context, cmd CreateListingCommand) (*dto.Listing, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	host := actor.ID
	if id := strings.TrimSpace(cmd.HostID); id != "" && id != actor.ID {
		if !actor.IsAdmin() {
			return nil, auth.ErrForbidden
		}
		host = id
	}
	details, err := cmd.Payload.ToDetails(h.currency())
	if err != nil {
		return nil, err
	}
	unit, execCtx, commit, cleanup, err := handlersupport.BeginUnit(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	listing, err := domainlistings.NewListing(domainlistings.ListingID(h.newID()), domainlistings.HostID(host), details, h.now())
	if err != nil {
		return nil, err
	}
	if err := unit.Listings().Save(execCtx, listing); err != nil {
		return nil, err
	}
	h.Publisher.Publish(execCtx, listing)
	if err := commit(); err != nil {
		return nil, err
	}
	h.logger().Info("listing created", "listing_id", listing.ID, "host_id", listing.Host)
	out := dto.MapListing(listing)
	return &out, nil
}

type UpdateListingCommand struct {
	hostOnly
	ListingID string `validate:"required"`
	Payload   dto.ListingInput
}

func (c UpdateListingCommand) Key() string { return updateListingKey }

type UpdateListingHandler struct {
	Deps
}

func (h *UpdateListingHandler) Handle(ctx context.Context, cmd UpdateListingCommand) (*dto.Listing, error) {
	details, err := cmd.Payload.ToDetails("")
	if err != nil {
		return nil, err
	}
	return h.mutate(ctx, cmd.ListingID, func(l *domainlistings.Listing) error {
		if details.Currency == "" {
			details.Currency = l.Currency
		}
		return l.Update(details, h.now())
	})
}

// ChangeListingStateCommand activates or suspends a listing.
type ChangeListingStateCommand struct {
	hostOnly
	ListingID string `validate:"required"`
	Activate  bool
	Reason    string
}

func (c ChangeListingStateCommand) Key() string {
	if c.Activate {
		return activateListingKey
	}
	return suspendListingKey
}

type ChangeListingStateHandler struct {
	Deps
}

func (h *ChangeListingStateHandler) Handle(ctx context.Context, cmd ChangeListingStateCommand) (*dto.Listing, error) {
	update := UpdateListingHandler{Deps: h.Deps}
	return update.mutate(ctx, cmd.ListingID, func(l *domainlistings.Listing) error {
		if cmd.Activate {
			return l.Activate(h.now())
		}
		return l.Suspend(h.now(), strings.TrimSpace(cmd.Reason))
	})
}

type OverridePeriodInput struct {
	CheckIn      string `json:"check_in"`
	CheckOut     string `json:"check_out"`
	Available    bool   `json:"available"`
	SpecialPrice *int64 `json:"special_price,omitempty"`
}

// ReplaceOverridesCommand swaps the host-declared override periods of a
// listing. Overlapping periods are rejected.
type ReplaceOverridesCommand struct {
	hostOnly
	ListingID string `validate:"required"`
	Periods   []OverridePeriodInput
}

func (c ReplaceOverridesCommand) Key() string { return replaceListingOverridesKey }

type ReplaceOverridesHandler struct {
	Deps
}

func (h *ReplaceOverridesHandler) Handle(ctx context.Context, cmd ReplaceOverridesCommand) (*dto.Listing, error) {
	periods := make([]domainlistings.OverridePeriod, 0, len(cmd.Periods))
	for i, p := range cmd.Periods {
		in, err := dto.ParseDate(p.CheckIn)
		if err != nil {
			return nil, fmt.Errorf("period %d: %w", i, daterange.ErrInvalidRange)
		}
		out, err := dto.ParseDate(p.CheckOut)
		if err != nil {
			return nil, fmt.Errorf("period %d: %w", i, daterange.ErrInvalidRange)
		}
		if p.SpecialPrice != nil && *p.SpecialPrice <= 0 {
			return nil, fmt.Errorf("period %d: %w", i, domainlistings.ErrNightlyRate)
		}
		periods = append(periods, domainlistings.OverridePeriod{
			Range:        daterange.DateRange{CheckIn: in, CheckOut: out},
			Available:    p.Available,
			SpecialPrice: p.SpecialPrice,
		})
	}
	update := UpdateListingHandler{Deps: h.Deps}
	return update.mutate(ctx, cmd.ListingID, func(l *domainlistings.Listing) error {
		return l.ReplaceOverrides(periods, h.now())
	})
}

// mutate loads an owned listing, applies change and saves it under the
// version it was read at.
func (h *UpdateListingHandler) mutate(ctx context.Context, id string, change func(*domainlistings.Listing) error) (*dto.Listing, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	unit, execCtx, commit, cleanup, err := handlersupport.BeginUnit(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	listing, err := loadOwned(execCtx, unit, id, actor)
	if err != nil {
		return nil, err
	}
	if err := change(listing); err != nil {
		return nil, err
	}
	if err := unit.Listings().Save(execCtx, listing); err != nil {
		return nil, err
	}
	h.Publisher.Publish(execCtx, listing)
	if err := commit(); err != nil {
		return nil, err
	}
	h.logger().Info("listing updated", "listing_id", listing.ID, "state", listing.State, "version", listing.Version)
	out := dto.MapListing(listing)
	return &out, nil
}

var (
	_ commands.Handler[CreateListingCommand, *dto.Listing]      = (*CreateListingHandler)(nil)
	_ commands.Handler[UpdateListingCommand, *dto.Listing]      = (*UpdateListingHandler)(nil)
	_ commands.Handler[ChangeListingStateCommand, *dto.Listing] = (*ChangeListingStateHandler)(nil)
	_ commands.Handler[ReplaceOverridesCommand, *dto.Listing]   = (*ReplaceOverridesHandler)(nil)
	_ auth.Restricted                                           = CreateListingCommand{}
)
