package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainavailability "staybook/internal/domain/availability"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

// ClaimRepository stores one occupancy document per listing. Claims are
// added with a single conditional upsert so that two overlapping bookings
// cannot both land, whatever the isolation of the surrounding transaction.
type ClaimRepository struct {
	col *mongo.Collection
}

func NewClaimRepository(db *mongo.Database) *ClaimRepository {
	return &ClaimRepository{col: db.Collection(claimsCollection)}
}

func (r *ClaimRepository) Calendar(ctx context.Context, id domainlistings.ListingID) (*domainavailability.Calendar, error) {
	var doc claimCalendarDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domainavailability.NewCalendar(id), nil
		}
		return nil, err
	}
	return doc.toCalendar(), nil
}

// Claim first pulls the booking's previous claim and any lapsed ones, then
// pushes the new claim only if no active claim of another booking overlaps
// it. When the guard filter does not match, the upsert collides with the
// existing _id and the duplicate key error is reported as an overlap.
func (r *ClaimRepository) Claim(ctx context.Context, id domainlistings.ListingID, claim domainavailability.Claim, now time.Time) error {
	nowMs := now.UTC().UnixMilli()
	prune := bson.M{"$pull": bson.M{"claims": bson.M{"$or": bson.A{
		bson.M{"booking_id": claim.BookingID},
		bson.M{"expires_at": bson.M{"$ne": nil, "$lte": nowMs}},
	}}}}
	if _, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, prune); err != nil {
		return err
	}

	filter := bson.M{
		"_id": id,
		"claims": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"booking_id": bson.M{"$ne": claim.BookingID},
			"check_in":   bson.M{"$lt": claim.Range.CheckOut.UnixMilli()},
			"check_out":  bson.M{"$gt": claim.Range.CheckIn.UnixMilli()},
			"$or": bson.A{
				bson.M{"expires_at": nil},
				bson.M{"expires_at": bson.M{"$gt": nowMs}},
			},
		}}},
	}
	update := bson.M{
		"$push": bson.M{"claims": newClaimDocument(claim)},
		"$inc":  bson.M{"version": 1},
	}
	res, err := r.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainavailability.ErrOverlappingRange
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainavailability.ErrOverlappingRange
	}
	return nil
}

func (r *ClaimRepository) Settle(ctx context.Context, id domainlistings.ListingID, bookingID string) error {
	filter := bson.M{"_id": id, "claims.booking_id": bookingID}
	update := bson.M{"$set": bson.M{"claims.$.expires_at": nil}, "$inc": bson.M{"version": 1}}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainavailability.ErrClaimNotFound
	}
	return nil
}

func (r *ClaimRepository) Drop(ctx context.Context, id domainlistings.ListingID, bookingID string) error {
	update := bson.M{"$pull": bson.M{"claims": bson.M{"booking_id": bookingID}}, "$inc": bson.M{"version": 1}}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id, "claims.booking_id": bookingID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainavailability.ErrClaimNotFound
	}
	return nil
}

type claimDocument struct {
	BookingID string `bson:"booking_id"`
	CheckIn   int64  `bson:"check_in"`
	CheckOut  int64  `bson:"check_out"`
	ExpiresAt *int64 `bson:"expires_at"`
	CreatedAt int64  `bson:"created_at"`
}

type claimCalendarDocument struct {
	ID      string          `bson:"_id"`
	Claims  []claimDocument `bson:"claims"`
	Version int64           `bson:"version"`
}

func newClaimDocument(c domainavailability.Claim) claimDocument {
	return claimDocument{
		BookingID: c.BookingID,
		CheckIn:   c.Range.CheckIn.UnixMilli(),
		CheckOut:  c.Range.CheckOut.UnixMilli(),
		ExpiresAt: optionalTimestamp(c.ExpiresAt),
		CreatedAt: c.CreatedAt.UnixMilli(),
	}
}

func (d claimCalendarDocument) toCalendar() *domainavailability.Calendar {
	cal := domainavailability.NewCalendar(domainlistings.ListingID(d.ID))
	cal.Version = d.Version
	for _, c := range d.Claims {
		cal.Claims = append(cal.Claims, domainavailability.Claim{
			BookingID: c.BookingID,
			Range:     daterange.DateRange{CheckIn: timestampToTime(c.CheckIn), CheckOut: timestampToTime(c.CheckOut)},
			ExpiresAt: optionalTime(c.ExpiresAt),
			CreatedAt: timestampToTime(c.CreatedAt),
		})
	}
	return cal
}

// BlockedDateRepository keeps blocked dates unique per (listing, event uid)
// through a unique index; deletes are soft.
type BlockedDateRepository struct {
	col *mongo.Collection
}

func NewBlockedDateRepository(db *mongo.Database) *BlockedDateRepository {
	return &BlockedDateRepository{col: db.Collection(blockedDatesCollection)}
}

func (r *BlockedDateRepository) Upsert(ctx context.Context, b domainavailability.BlockedDate) (bool, error) {
	if err := b.Validate(); err != nil {
		return false, err
	}
	now := b.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id := b.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := b.CreatedAt
	if created.IsZero() {
		created = now
	}
	filter := bson.M{"listing_id": b.ListingID, "event_uid": b.EventUID}
	update := bson.M{
		"$set": bson.M{
			"origin":      b.Origin,
			"calendar_id": b.CalendarID,
			"range":       newRangeDocument(b.Range),
			"summary":     b.Summary,
			"deleted":     false,
			"deleted_at":  nil,
			"updated_at":  now.UnixMilli(),
		},
		"$setOnInsert": bson.M{"_id": id, "created_at": created.UnixMilli()},
	}
	res, err := r.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (r *BlockedDateRepository) Active(ctx context.Context, id domainlistings.ListingID) ([]domainavailability.BlockedDate, error) {
	return r.find(ctx, bson.M{"listing_id": id, "deleted": false})
}

func (r *BlockedDateRepository) ActiveOverlapping(ctx context.Context, id domainlistings.ListingID, dr daterange.DateRange) ([]domainavailability.BlockedDate, error) {
	return r.find(ctx, bson.M{
		"listing_id":      id,
		"deleted":         false,
		"range.check_in":  bson.M{"$lt": dr.CheckOut.UnixMilli()},
		"range.check_out": bson.M{"$gt": dr.CheckIn.UnixMilli()},
	})
}

func (r *BlockedDateRepository) ByCalendar(ctx context.Context, calendarID string) ([]domainavailability.BlockedDate, error) {
	return r.find(ctx, bson.M{"calendar_id": calendarID})
}

func (r *BlockedDateRepository) SoftDelete(ctx context.Context, id domainlistings.ListingID, uid string, now time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"listing_id": id, "event_uid": uid, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "deleted_at": now.UTC().UnixMilli(), "updated_at": now.UTC().UnixMilli()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainavailability.ErrBlockedDateNotFound
	}
	return nil
}

func (r *BlockedDateRepository) SoftDeleteMissing(ctx context.Context, calendarID string, keep []string, now time.Time) (int, error) {
	if keep == nil {
		keep = []string{}
	}
	res, err := r.col.UpdateMany(ctx,
		bson.M{"calendar_id": calendarID, "deleted": false, "event_uid": bson.M{"$nin": keep}},
		bson.M{"$set": bson.M{"deleted": true, "deleted_at": now.UTC().UnixMilli(), "updated_at": now.UTC().UnixMilli()}},
	)
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

func (r *BlockedDateRepository) find(ctx context.Context, filter bson.M) ([]domainavailability.BlockedDate, error) {
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "range.check_in", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []blockedDateDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domainavailability.BlockedDate, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toBlockedDate())
	}
	return out, nil
}

type blockedDateDocument struct {
	ID         string        `bson:"_id"`
	ListingID  string        `bson:"listing_id"`
	Origin     string        `bson:"origin"`
	EventUID   string        `bson:"event_uid"`
	CalendarID string        `bson:"calendar_id"`
	Range      rangeDocument `bson:"range"`
	Summary    string        `bson:"summary"`
	Deleted    bool          `bson:"deleted"`
	DeletedAt  *int64        `bson:"deleted_at"`
	CreatedAt  int64         `bson:"created_at"`
	UpdatedAt  int64         `bson:"updated_at"`
}

func (d blockedDateDocument) toBlockedDate() domainavailability.BlockedDate {
	return domainavailability.BlockedDate{
		ID:         d.ID,
		ListingID:  domainlistings.ListingID(d.ListingID),
		Origin:     domainavailability.Origin(d.Origin),
		EventUID:   d.EventUID,
		CalendarID: d.CalendarID,
		Range:      d.Range.toRange(),
		Summary:    d.Summary,
		Deleted:    d.Deleted,
		DeletedAt:  optionalTime(d.DeletedAt),
		CreatedAt:  timestampToTime(d.CreatedAt),
		UpdatedAt:  timestampToTime(d.UpdatedAt),
	}
}

var (
	_ domainavailability.ClaimRepository       = (*ClaimRepository)(nil)
	_ domainavailability.BlockedDateRepository = (*BlockedDateRepository)(nil)
)
