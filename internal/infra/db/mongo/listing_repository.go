package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

const overrideRetries = 3

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection(listingsCollection)}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrListingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save writes the listing if the stored version still equals listing.Version.
func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	doc := newListingDocument(listing)
	filter := bson.M{"_id": doc.ID, "version": listing.Version}
	doc.Version = listing.Version + 1
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainlistings.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainlistings.ErrConcurrentUpdate
	}
	listing.Version = doc.Version
	return nil
}

func (r *ListingRepository) ListByHost(ctx context.Context, host domainlistings.HostID) ([]*domainlistings.Listing, error) {
	cur, err := r.col.Find(ctx, bson.M{"host_id": host}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []listingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainlistings.Listing, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

func (r *ListingRepository) ListIDs(ctx context.Context) ([]domainlistings.ListingID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]domainlistings.ListingID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, domainlistings.ListingID(d.ID))
	}
	return ids, nil
}

func (r *ListingRepository) SetOverrides(ctx context.Context, id domainlistings.ListingID, expectedVersion int64, periods []domainlistings.OverridePeriod, now time.Time) error {
	update := bson.M{
		"$set": bson.M{"overrides": newOverrideDocuments(periods), "updated_at": now.UTC().UnixMilli()},
		"$inc": bson.M{"version": 1},
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id, "version": expectedVersion}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := r.ByID(ctx, id); err != nil {
			return err
		}
		return domainlistings.ErrConcurrentUpdate
	}
	return nil
}

// ReleaseOverride restores the blocked period matching dr, retrying when a
// concurrent writer moved the version.
func (r *ListingRepository) ReleaseOverride(ctx context.Context, id domainlistings.ListingID, dr daterange.DateRange, now time.Time) error {
	var err error
	for range overrideRetries {
		var listing *domainlistings.Listing
		listing, err = r.ByID(ctx, id)
		if err != nil {
			return err
		}
		periods, found := domainlistings.RestoreBlocked(listing.Overrides, dr)
		if !found {
			return domainlistings.ErrOverrideNotFound
		}
		err = r.SetOverrides(ctx, id, listing.Version, periods, now)
		if !errors.Is(err, domainlistings.ErrConcurrentUpdate) {
			return err
		}
	}
	return err
}

type listingDocument struct {
	ID                 string             `bson:"_id"`
	HostID             string             `bson:"host_id"`
	Title              string             `bson:"title"`
	Description        string             `bson:"description"`
	Address            addressDocument    `bson:"address"`
	Currency           string             `bson:"currency"`
	NightlyPrice       int64              `bson:"nightly_price"`
	MinGuests          int                `bson:"min_guests"`
	MaxGuests          int                `bson:"max_guests"`
	PetPolicy          petPolicyDocument  `bson:"pet_policy"`
	CancellationPolicy string             `bson:"cancellation_policy"`
	InstantBook        bool               `bson:"instant_book"`
	Overrides          []overrideDocument `bson:"overrides"`
	State              string             `bson:"state"`
	CreatedAt          int64              `bson:"created_at"`
	UpdatedAt          int64              `bson:"updated_at"`
	Version            int64              `bson:"version"`
}

type addressDocument struct {
	Line1   string `bson:"line1"`
	City    string `bson:"city"`
	Country string `bson:"country"`
}

type petPolicyDocument struct {
	Allowed       bool     `bson:"allowed"`
	AllowedTypes  []string `bson:"allowed_types"`
	MaxPets       int      `bson:"max_pets"`
	FeePerNight   int64    `bson:"fee_per_night"`
	DepositPerPet int64    `bson:"deposit_per_pet"`
}

type overrideDocument struct {
	Range        rangeDocument `bson:"range"`
	Available    bool          `bson:"available"`
	SpecialPrice *int64        `bson:"special_price,omitempty"`
}

func newOverrideDocuments(periods []domainlistings.OverridePeriod) []overrideDocument {
	out := make([]overrideDocument, 0, len(periods))
	for _, p := range periods {
		out = append(out, overrideDocument{Range: newRangeDocument(p.Range), Available: p.Available, SpecialPrice: p.SpecialPrice})
	}
	return out
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	return listingDocument{
		ID:           string(l.ID),
		HostID:       string(l.Host),
		Title:        l.Title,
		Description:  l.Description,
		Address:      addressDocument{Line1: l.Address.Line1, City: l.Address.City, Country: l.Address.Country},
		Currency:     l.Currency,
		NightlyPrice: l.NightlyPrice,
		MinGuests:    l.MinGuests,
		MaxGuests:    l.MaxGuests,
		PetPolicy: petPolicyDocument{
			Allowed:       l.PetPolicy.Allowed,
			AllowedTypes:  l.PetPolicy.AllowedTypes,
			MaxPets:       l.PetPolicy.MaxPets,
			FeePerNight:   l.PetPolicy.FeePerNight,
			DepositPerPet: l.PetPolicy.DepositPerPet,
		},
		CancellationPolicy: string(l.CancellationPolicy),
		InstantBook:        l.InstantBook,
		Overrides:          newOverrideDocuments(l.Overrides),
		State:              string(l.State),
		CreatedAt:          l.CreatedAt.UnixMilli(),
		UpdatedAt:          l.UpdatedAt.UnixMilli(),
		Version:            l.Version,
	}
}

func (d listingDocument) toAggregate() *domainlistings.Listing {
	overrides := make([]domainlistings.OverridePeriod, 0, len(d.Overrides))
	for _, o := range d.Overrides {
		overrides = append(overrides, domainlistings.OverridePeriod{Range: o.Range.toRange(), Available: o.Available, SpecialPrice: o.SpecialPrice})
	}
	return &domainlistings.Listing{
		ID:           domainlistings.ListingID(d.ID),
		Host:         domainlistings.HostID(d.HostID),
		Title:        d.Title,
		Description:  d.Description,
		Address:      domainlistings.Address{Line1: d.Address.Line1, City: d.Address.City, Country: d.Address.Country},
		Currency:     d.Currency,
		NightlyPrice: d.NightlyPrice,
		MinGuests:    d.MinGuests,
		MaxGuests:    d.MaxGuests,
		PetPolicy: domainlistings.PetPolicy{
			Allowed:       d.PetPolicy.Allowed,
			AllowedTypes:  d.PetPolicy.AllowedTypes,
			MaxPets:       d.PetPolicy.MaxPets,
			FeePerNight:   d.PetPolicy.FeePerNight,
			DepositPerPet: d.PetPolicy.DepositPerPet,
		},
		CancellationPolicy: domainlistings.CancellationPolicy(d.CancellationPolicy),
		InstantBook:        d.InstantBook,
		Overrides:          overrides,
		State:              domainlistings.ListingState(d.State),
		CreatedAt:          timestampToTime(d.CreatedAt),
		UpdatedAt:          timestampToTime(d.UpdatedAt),
		Version:            d.Version,
	}
}

var _ domainlistings.ListingRepository = (*ListingRepository)(nil)
