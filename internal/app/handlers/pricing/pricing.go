package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/services/auth"
	pricingsvc "staybook/internal/app/services/pricing"
	"staybook/internal/app/uow"
	domainlistings "staybook/internal/domain/listings"
	domainpricing "staybook/internal/domain/pricing"
)

const (
	upsertPricingConfigKey = "pricing.upsert_config"
	getPricingConfigKey    = "pricing.get_config"
	getEffectivePricingKey = "pricing.get_effective"
)

type Deps struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
	Now        func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

type UpsertPricingConfigCommand struct {
	Scope   string `validate:"required,oneof=global host listing"`
	ScopeID string
	Config  dto.PricingConfig
}

func (c UpsertPricingConfigCommand) Key() string { return upsertPricingConfigKey }

type UpsertPricingConfigHandler struct {
	Deps
}

func (h *UpsertPricingConfigHandler) Handle(ctx context.Context, cmd UpsertPricingConfigCommand) (*dto.PricingConfig, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := domainpricing.ParseScope(cmd.Scope)
	if err != nil {
		return nil, err
	}
	unit, execCtx, commit, cleanup, err := handlersupport.BeginUnit(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	scopeID := strings.TrimSpace(cmd.ScopeID)
	if err := authorizeScope(execCtx, unit, actor, scope, scopeID); err != nil {
		return nil, err
	}
	cfg := cmd.Config.ToDomain(scope, scopeID)
	cfg.UpdatedBy = actor.ID
	cfg.UpdatedAt = h.now()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := unit.PricingConfigs().Upsert(execCtx, cfg); err != nil {
		return nil, err
	}
	if err := commit(); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("pricing config saved", "scope", cfg.Scope, "scope_id", cfg.ScopeID, "actor", actor.ID)
	}
	out := dto.MapPricingConfig(cfg)
	return &out, nil
}

type GetPricingConfigQuery struct {
	Scope   string `validate:"required,oneof=global host listing"`
	ScopeID string
}

func (q GetPricingConfigQuery) Key() string { return getPricingConfigKey }

type GetPricingConfigHandler struct {
	Deps
}

func (h *GetPricingConfigHandler) Handle(ctx context.Context, q GetPricingConfigQuery) (dto.PricingConfig, error) {
	actor, err := auth.RequireActor(ctx)
	if err != nil {
		return dto.PricingConfig{}, err
	}
	scope, err := domainpricing.ParseScope(q.Scope)
	if err != nil {
		return dto.PricingConfig{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.PricingConfig{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	scopeID := strings.TrimSpace(q.ScopeID)
	if scope == domainpricing.ScopeGlobal {
		scopeID = ""
	} else if err := authorizeScope(execCtx, unit, actor, scope, scopeID); err != nil {
		return dto.PricingConfig{}, err
	}
	cfg, err := unit.PricingConfigs().Get(execCtx, scope, scopeID)
	if err != nil {
		return dto.PricingConfig{}, err
	}
	return dto.MapPricingConfig(cfg), nil
}

type GetEffectivePricingQuery struct {
	ListingID string `validate:"required"`
}

func (q GetEffectivePricingQuery) Key() string { return getEffectivePricingKey }

type GetEffectivePricingHandler struct {
	Deps
}

func (h *GetEffectivePricingHandler) Handle(ctx context.Context, q GetEffectivePricingQuery) (dto.EffectivePricing, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.EffectivePricing{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return dto.EffectivePricing{}, err
	}
	eff, err := pricingsvc.Resolver{Configs: unit.PricingConfigs()}.Resolve(execCtx, listing)
	if err != nil {
		return dto.EffectivePricing{}, err
	}
	return dto.MapEffectivePricing(q.ListingID, eff), nil
}

// authorizeScope: the global scope belongs to admins, a host scope to that
// host and a listing scope to the listing's host.
func authorizeScope(ctx context.Context, unit uow.UnitOfWork, actor auth.Actor, scope domainpricing.Scope, scopeID string) error {
	if actor.IsAdmin() {
		if scope == domainpricing.ScopeListing {
			_, err := unit.Listings().ByID(ctx, domainlistings.ListingID(scopeID))
			return err
		}
		return nil
	}
	switch scope {
	case domainpricing.ScopeHost:
		if actor.Is(scopeID) {
			return nil
		}
	case domainpricing.ScopeListing:
		listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(scopeID))
		if err != nil {
			return err
		}
		if actor.Is(string(listing.Host)) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s pricing scope", auth.ErrForbidden, scope)
}

var (
	_ commands.Handler[UpsertPricingConfigCommand, *dto.PricingConfig] = (*UpsertPricingConfigHandler)(nil)
	_ queries.Handler[GetPricingConfigQuery, dto.PricingConfig]        = (*GetPricingConfigHandler)(nil)
	_ queries.Handler[GetEffectivePricingQuery, dto.EffectivePricing]  = (*GetEffectivePricingHandler)(nil)
)
