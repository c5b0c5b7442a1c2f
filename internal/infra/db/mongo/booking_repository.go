package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainpricing "staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
)

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(bookingsCollection)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save writes the booking if the stored version still equals b.Version.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainbooking.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"guest_id": guestID}, options.Find().SetSort(bson.D{{Key: "range.check_in", Value: 1}}))
}

func (r *BookingRepository) ListByHost(ctx context.Context, hostID domainlistings.HostID) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"host_id": hostID}, options.Find().SetSort(bson.D{{Key: "range.check_in", Value: 1}}))
}

func (r *BookingRepository) Occupying(ctx context.Context, listingID domainlistings.ListingID, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	filter := bson.M{
		"listing_id":      listingID,
		"status":          bson.M{"$in": []domainbooking.Status{domainbooking.StatusPending, domainbooking.StatusConfirmed, domainbooking.StatusCheckedIn}},
		"range.check_in":  bson.M{"$lt": dr.CheckOut.UnixMilli()},
		"range.check_out": bson.M{"$gt": dr.CheckIn.UnixMilli()},
	}
	return r.find(ctx, filter)
}

func (r *BookingRepository) ListByListing(ctx context.Context, listingID domainlistings.ListingID, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	filter := bson.M{"listing_id": listingID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "range.check_in", Value: 1}}))
}

func (r *BookingRepository) PendingExpiredBefore(ctx context.Context, now time.Time, limit int) ([]*domainbooking.Booking, error) {
	filter := bson.M{"status": domainbooking.StatusPending, "expires_at": bson.M{"$lte": now.UnixMilli()}}
	opts := options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *BookingRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"reference": reference}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*domainbooking.Booking, error) {
	cur, err := r.col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

type bookingDocument struct {
	ID                 string          `bson:"_id"`
	Reference          string          `bson:"reference"`
	ListingID          string          `bson:"listing_id"`
	HostID             string          `bson:"host_id"`
	GuestID            string          `bson:"guest_id"`
	Range              rangeDocument   `bson:"range"`
	Nights             int             `bson:"nights"`
	Guests             guestsDocument  `bson:"guests"`
	TotalGuests        int             `bson:"total_guests"`
	Pets               petsDocument    `bson:"pets"`
	Price              priceDocument   `bson:"price"`
	Status             string          `bson:"status"`
	Type               string          `bson:"type"`
	Payment            paymentDocument `bson:"payment"`
	CancellationPolicy string          `bson:"cancellation_policy"`
	ExpiresAt          *int64          `bson:"expires_at"`
	CancelReason       string          `bson:"cancel_reason,omitempty"`
	Refund             *refundDocument `bson:"refund,omitempty"`
	CreatedAt          int64           `bson:"created_at"`
	UpdatedAt          int64           `bson:"updated_at"`
	Version            int64           `bson:"version"`
}

type guestsDocument struct {
	Adults   int `bson:"adults"`
	Children int `bson:"children"`
	Infants  int `bson:"infants"`
}

type petDocument struct {
	Type string `bson:"type"`
	Name string `bson:"name,omitempty"`
}

type petsDocument struct {
	HasPets bool          `bson:"has_pets"`
	Count   int           `bson:"count"`
	Pets    []petDocument `bson:"pets"`
}

type priceDocument struct {
	Nights      int           `bson:"nights"`
	BaseNightly moneyDocument `bson:"base_nightly"`
	Subtotal    moneyDocument `bson:"subtotal"`
	CleaningFee moneyDocument `bson:"cleaning_fee"`
	ServiceFee  moneyDocument `bson:"service_fee"`
	PetFee      moneyDocument `bson:"pet_fee"`
	PetDeposit  moneyDocument `bson:"pet_deposit"`
	Taxes       moneyDocument `bson:"taxes"`
	Total       moneyDocument `bson:"total"`
}

type paymentDocument struct {
	IntentID      string        `bson:"intent_id"`
	Status        string        `bson:"status"`
	Amount        moneyDocument `bson:"amount"`
	Refunded      moneyDocument `bson:"refunded"`
	RefundID      string        `bson:"refund_id,omitempty"`
	FailureReason string        `bson:"failure_reason,omitempty"`
	UpdatedAt     int64         `bson:"updated_at"`
}

type refundDocument struct {
	Percent    int           `bson:"percent"`
	DaysBefore float64       `bson:"days_before"`
	Amount     moneyDocument `bson:"amount"`
	PetDeposit moneyDocument `bson:"pet_deposit"`
	Total      moneyDocument `bson:"total"`
}

func newPriceDocument(p domainpricing.PriceBreakdown) priceDocument {
	return priceDocument{
		Nights:      p.Nights,
		BaseNightly: newMoneyDocument(p.BaseNightly),
		Subtotal:    newMoneyDocument(p.Subtotal),
		CleaningFee: newMoneyDocument(p.CleaningFee),
		ServiceFee:  newMoneyDocument(p.ServiceFee),
		PetFee:      newMoneyDocument(p.PetFee),
		PetDeposit:  newMoneyDocument(p.PetDeposit),
		Taxes:       newMoneyDocument(p.Taxes),
		Total:       newMoneyDocument(p.Total),
	}
}

func (d priceDocument) toBreakdown() domainpricing.PriceBreakdown {
	return domainpricing.PriceBreakdown{
		Nights:      d.Nights,
		BaseNightly: d.BaseNightly.toMoney(),
		Subtotal:    d.Subtotal.toMoney(),
		CleaningFee: d.CleaningFee.toMoney(),
		ServiceFee:  d.ServiceFee.toMoney(),
		PetFee:      d.PetFee.toMoney(),
		PetDeposit:  d.PetDeposit.toMoney(),
		Taxes:       d.Taxes.toMoney(),
		Total:       d.Total.toMoney(),
	}
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	pets := make([]petDocument, 0, len(b.Pets.Pets))
	for _, p := range b.Pets.Pets {
		pets = append(pets, petDocument{Type: p.Type, Name: p.Name})
	}
	doc := bookingDocument{
		ID:          string(b.ID),
		Reference:   b.Reference,
		ListingID:   string(b.ListingID),
		HostID:      string(b.HostID),
		GuestID:     b.GuestID,
		Range:       newRangeDocument(b.Range),
		Nights:      b.Nights,
		Guests:      guestsDocument{Adults: b.Guests.Adults, Children: b.Guests.Children, Infants: b.Guests.Infants},
		TotalGuests: b.TotalGuests,
		Pets:        petsDocument{HasPets: b.Pets.HasPets, Count: b.Pets.Count, Pets: pets},
		Price:       newPriceDocument(b.Price),
		Status:      string(b.Status),
		Type:        string(b.Type),
		Payment: paymentDocument{
			IntentID:      b.Payment.IntentID,
			Status:        string(b.Payment.Status),
			Amount:        newMoneyDocument(b.Payment.Amount),
			Refunded:      newMoneyDocument(b.Payment.Refunded),
			RefundID:      b.Payment.RefundID,
			FailureReason: b.Payment.FailureReason,
			UpdatedAt:     b.Payment.UpdatedAt.UnixMilli(),
		},
		CancellationPolicy: string(b.CancellationPolicy),
		ExpiresAt:          optionalTimestamp(b.ExpiresAt),
		CancelReason:       b.CancelReason,
		CreatedAt:          b.CreatedAt.UnixMilli(),
		UpdatedAt:          b.UpdatedAt.UnixMilli(),
		Version:            b.Version,
	}
	if b.Refund != nil {
		doc.Refund = &refundDocument{
			Percent:    b.Refund.Percent,
			DaysBefore: b.Refund.DaysBefore,
			Amount:     newMoneyDocument(b.Refund.Amount),
			PetDeposit: newMoneyDocument(b.Refund.PetDeposit),
			Total:      newMoneyDocument(b.Refund.Total),
		}
	}
	return doc
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	pets := make([]domainbooking.Pet, 0, len(d.Pets.Pets))
	for _, p := range d.Pets.Pets {
		pets = append(pets, domainbooking.Pet{Type: p.Type, Name: p.Name})
	}
	b := &domainbooking.Booking{
		ID:          domainbooking.BookingID(d.ID),
		Reference:   d.Reference,
		ListingID:   domainlistings.ListingID(d.ListingID),
		HostID:      domainlistings.HostID(d.HostID),
		GuestID:     d.GuestID,
		Range:       d.Range.toRange(),
		Nights:      d.Nights,
		Guests:      domainbooking.GuestCounts{Adults: d.Guests.Adults, Children: d.Guests.Children, Infants: d.Guests.Infants},
		TotalGuests: d.TotalGuests,
		Pets:        domainbooking.PetDetails{HasPets: d.Pets.HasPets, Count: d.Pets.Count, Pets: pets},
		Price:       d.Price.toBreakdown(),
		Status:      domainbooking.Status(d.Status),
		Type:        domainbooking.Type(d.Type),
		Payment: domainbooking.Payment{
			IntentID:      d.Payment.IntentID,
			Status:        domainbooking.PaymentStatus(d.Payment.Status),
			Amount:        d.Payment.Amount.toMoney(),
			Refunded:      d.Payment.Refunded.toMoney(),
			RefundID:      d.Payment.RefundID,
			FailureReason: d.Payment.FailureReason,
			UpdatedAt:     timestampToTime(d.Payment.UpdatedAt),
		},
		CancellationPolicy: domainlistings.CancellationPolicy(d.CancellationPolicy),
		ExpiresAt:          optionalTime(d.ExpiresAt),
		CancelReason:       d.CancelReason,
		CreatedAt:          timestampToTime(d.CreatedAt),
		UpdatedAt:          timestampToTime(d.UpdatedAt),
		Version:            d.Version,
	}
	if d.Refund != nil {
		b.Refund = &domainbooking.Refund{
			Percent:    d.Refund.Percent,
			DaysBefore: d.Refund.DaysBefore,
			Amount:     d.Refund.Amount.toMoney(),
			PetDeposit: d.Refund.PetDeposit.toMoney(),
			Total:      d.Refund.Total.toMoney(),
		}
	}
	return b
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
