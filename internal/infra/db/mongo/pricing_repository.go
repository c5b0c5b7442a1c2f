package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainpricing "staybook/internal/domain/pricing"
)

// PricingConfigRepository keeps one document per (scope, scope id); the
// document id is derived from both so upserts never duplicate a scope.
type PricingConfigRepository struct {
	col *mongo.Collection
}

func NewPricingConfigRepository(db *mongo.Database) *PricingConfigRepository {
	return &PricingConfigRepository{col: db.Collection(pricingCollection)}
}

func pricingConfigID(scope domainpricing.Scope, scopeID string) string {
	return string(scope) + ":" + scopeID
}

func (r *PricingConfigRepository) Get(ctx context.Context, scope domainpricing.Scope, scopeID string) (*domainpricing.Config, error) {
	if scope == domainpricing.ScopeGlobal {
		scopeID = ""
	}
	var doc pricingConfigDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": pricingConfigID(scope, scopeID)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainpricing.ErrConfigNotFound
		}
		return nil, err
	}
	return doc.toConfig(), nil
}

func (r *PricingConfigRepository) Upsert(ctx context.Context, cfg *domainpricing.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	doc := newPricingConfigDocument(cfg)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

type rateFeeDocument struct {
	Mode   string  `bson:"mode"`
	Value  float64 `bson:"value"`
	IsFree bool    `bson:"is_free"`
}

type flatFeeDocument struct {
	Amount int64 `bson:"amount"`
	IsFree bool  `bson:"is_free"`
}

type pricingConfigDocument struct {
	ID               string           `bson:"_id"`
	Scope            string           `bson:"scope"`
	ScopeID          string           `bson:"scope_id"`
	Enabled          *bool            `bson:"enabled,omitempty"`
	ServiceFee       *rateFeeDocument `bson:"service_fee,omitempty"`
	Tax              *rateFeeDocument `bson:"tax,omitempty"`
	CleaningFee      *flatFeeDocument `bson:"cleaning_fee,omitempty"`
	PetFeePerNight   *flatFeeDocument `bson:"pet_fee_per_night,omitempty"`
	PetDepositPerPet *flatFeeDocument `bson:"pet_deposit_per_pet,omitempty"`
	UpdatedBy        string           `bson:"updated_by"`
	UpdatedAt        time.Time        `bson:"updated_at"`
}

func rateFeeToDocument(f *domainpricing.RateFee) *rateFeeDocument {
	if f == nil {
		return nil
	}
	return &rateFeeDocument{Mode: string(f.Mode), Value: f.Value, IsFree: f.IsFree}
}

func (d *rateFeeDocument) toFee() *domainpricing.RateFee {
	if d == nil {
		return nil
	}
	return &domainpricing.RateFee{Mode: domainpricing.Mode(d.Mode), Value: d.Value, IsFree: d.IsFree}
}

func flatFeeToDocument(f *domainpricing.FlatFee) *flatFeeDocument {
	if f == nil {
		return nil
	}
	return &flatFeeDocument{Amount: f.Amount, IsFree: f.IsFree}
}

func (d *flatFeeDocument) toFee() *domainpricing.FlatFee {
	if d == nil {
		return nil
	}
	return &domainpricing.FlatFee{Amount: d.Amount, IsFree: d.IsFree}
}

func newPricingConfigDocument(c *domainpricing.Config) pricingConfigDocument {
	return pricingConfigDocument{
		ID:               pricingConfigID(c.Scope, c.ScopeID),
		Scope:            string(c.Scope),
		ScopeID:          c.ScopeID,
		Enabled:          c.Enabled,
		ServiceFee:       rateFeeToDocument(c.ServiceFee),
		Tax:              rateFeeToDocument(c.Tax),
		CleaningFee:      flatFeeToDocument(c.CleaningFee),
		PetFeePerNight:   flatFeeToDocument(c.PetFeePerNight),
		PetDepositPerPet: flatFeeToDocument(c.PetDepositPerPet),
		UpdatedBy:        c.UpdatedBy,
		UpdatedAt:        c.UpdatedAt.UTC(),
	}
}

func (d pricingConfigDocument) toConfig() *domainpricing.Config {
	return &domainpricing.Config{
		Scope:            domainpricing.Scope(d.Scope),
		ScopeID:          d.ScopeID,
		Enabled:          d.Enabled,
		ServiceFee:       d.ServiceFee.toFee(),
		Tax:              d.Tax.toFee(),
		CleaningFee:      d.CleaningFee.toFee(),
		PetFeePerNight:   d.PetFeePerNight.toFee(),
		PetDepositPerPet: d.PetDepositPerPet.toFee(),
		UpdatedBy:        d.UpdatedBy,
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}

var _ domainpricing.ConfigRepository = (*PricingConfigRepository)(nil)
