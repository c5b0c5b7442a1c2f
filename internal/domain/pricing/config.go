package pricing

import (
	"context"
	"errors"
	"strings"
	"time"

	"staybook/internal/domain/shared/money"
)

var (
	ErrConfigNotFound = errors.New("pricing: config not found")
	ErrInvalidScope   = errors.New("pricing: invalid scope")
	ErrScopeIDMissing = errors.New("pricing: scope id required for host and listing scopes")
	ErrInvalidMode    = errors.New("pricing: fee mode must be percentage or fixed")
	ErrNegativeFee    = errors.New("pricing: fee values cannot be negative")
)

type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeHost    Scope = "host"
	ScopeListing Scope = "listing"
)

func ParseScope(raw string) (Scope, error) {
	switch s := Scope(strings.ToLower(strings.TrimSpace(raw))); s {
	case ScopeGlobal, ScopeHost, ScopeListing:
		return s, nil
	}
	return "", ErrInvalidScope
}

type Mode string

const (
	ModePercentage Mode = "percentage"
	ModeFixed      Mode = "fixed"
)

type Category string

const (
	CategoryServiceFee  Category = "service_fee"
	CategoryTax         Category = "tax"
	CategoryCleaningFee Category = "cleaning_fee"
	CategoryPetFee      Category = "pet_fee_per_night"
	CategoryPetDeposit  Category = "pet_deposit_per_pet"
)

// RateFee is charged either as a percentage of a base or as a fixed amount.
type RateFee struct {
	Mode   Mode
	Value  float64
	IsFree bool
}

// Apply computes the fee for base, rounded to whole units.
func (f RateFee) Apply(base money.Money) money.Money {
	if f.IsFree {
		return money.Zero(base.Currency)
	}
	if f.Mode == ModeFixed {
		return money.Money{Amount: money.RoundUnits(f.Value), Currency: base.Currency}
	}
	return base.Percent(f.Value)
}

func (f RateFee) validate() error {
	if f.Mode != ModePercentage && f.Mode != ModeFixed {
		return ErrInvalidMode
	}
	if f.Value < 0 {
		return ErrNegativeFee
	}
	return nil
}

// FlatFee is a flat charge.
type FlatFee struct {
	Amount int64
	IsFree bool
}

func (f FlatFee) Value() int64 {
	if f.IsFree {
		return 0
	}
	return f.Amount
}

// Config is the fee schedule stored at one scope. Nil fields are not set at
// that scope and inherit from the less specific one.
type Config struct {
	Scope            Scope
	ScopeID          string
	Enabled          *bool
	ServiceFee       *RateFee
	Tax              *RateFee
	CleaningFee      *FlatFee
	PetFeePerNight   *FlatFee
	PetDepositPerPet *FlatFee
	UpdatedBy        string
	UpdatedAt        time.Time
}

func (c *Config) Validate() error {
	switch c.Scope {
	case ScopeGlobal:
		c.ScopeID = ""
	case ScopeHost, ScopeListing:
		if strings.TrimSpace(c.ScopeID) == "" {
			return ErrScopeIDMissing
		}
	default:
		return ErrInvalidScope
	}
	for _, fee := range []*RateFee{c.ServiceFee, c.Tax} {
		if fee == nil {
			continue
		}
		if fee.Mode == "" {
			fee.Mode = ModePercentage
		}
		if err := fee.validate(); err != nil {
			return err
		}
	}
	for _, fee := range []*FlatFee{c.CleaningFee, c.PetFeePerNight, c.PetDepositPerPet} {
		if fee != nil && fee.Amount < 0 {
			return ErrNegativeFee
		}
	}
	return nil
}

type ConfigRepository interface {
	Get(ctx context.Context, scope Scope, scopeID string) (*Config, error)
	// Upsert keeps at most one document per (scope, scopeID).
	Upsert(ctx context.Context, cfg *Config) error
}
