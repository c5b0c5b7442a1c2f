package memory

import (
	"context"
	"sync"

	domainpricing "staybook/internal/domain/pricing"
)

type pricingKey struct {
	scope domainpricing.Scope
	id    string
}

// PricingConfigRepository keeps at most one config per (scope, scope id).
type PricingConfigRepository struct {
	mu    sync.RWMutex
	items map[pricingKey]domainpricing.Config
}

func NewPricingConfigRepository() *PricingConfigRepository {
	return &PricingConfigRepository{items: make(map[pricingKey]domainpricing.Config)}
}

func (r *PricingConfigRepository) Get(ctx context.Context, scope domainpricing.Scope, scopeID string) (*domainpricing.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.items[pricingKey{scope: scope, id: scopeID}]
	if !ok {
		return nil, domainpricing.ErrConfigNotFound
	}
	return cloneConfig(cfg), nil
}

func (r *PricingConfigRepository) Upsert(ctx context.Context, cfg *domainpricing.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[pricingKey{scope: cfg.Scope, id: cfg.ScopeID}] = *cloneConfig(*cfg)
	return nil
}

func cloneConfig(cfg domainpricing.Config) *domainpricing.Config {
	out := cfg
	if cfg.Enabled != nil {
		v := *cfg.Enabled
		out.Enabled = &v
	}
	if cfg.ServiceFee != nil {
		v := *cfg.ServiceFee
		out.ServiceFee = &v
	}
	if cfg.Tax != nil {
		v := *cfg.Tax
		out.Tax = &v
	}
	out.CleaningFee = cloneFlat(cfg.CleaningFee)
	out.PetFeePerNight = cloneFlat(cfg.PetFeePerNight)
	out.PetDepositPerPet = cloneFlat(cfg.PetDepositPerPet)
	return &out
}

func cloneFlat(f *domainpricing.FlatFee) *domainpricing.FlatFee {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

var _ domainpricing.ConfigRepository = (*PricingConfigRepository)(nil)
