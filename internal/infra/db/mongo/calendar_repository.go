package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domaincalendar "staybook/internal/domain/calendar"
	domainlistings "staybook/internal/domain/listings"
)

type CalendarRepository struct {
	col *mongo.Collection
}

func NewCalendarRepository(db *mongo.Database) *CalendarRepository {
	return &CalendarRepository{col: db.Collection(calendarsCollection)}
}

func (r *CalendarRepository) ByID(ctx context.Context, id domaincalendar.CalendarID) (*domaincalendar.ListingCalendar, error) {
	var doc calendarDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaincalendar.ErrCalendarNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *CalendarRepository) ByListing(ctx context.Context, listingID domainlistings.ListingID) ([]*domaincalendar.ListingCalendar, error) {
	cur, err := r.col.Find(ctx, bson.M{"listing_id": listingID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []calendarDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domaincalendar.ListingCalendar, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

// Save is a version compare-and-swap. A duplicate key on the (listing, url)
// index means another subscription already uses the url.
func (r *CalendarRepository) Save(ctx context.Context, cal *domaincalendar.ListingCalendar) error {
	doc := newCalendarDocument(cal)
	filter := bson.M{"_id": doc.ID, "version": cal.Version}
	doc.Version = cal.Version + 1
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return r.classifyDuplicate(ctx, cal)
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domaincalendar.ErrConcurrentUpdate
	}
	cal.Version = doc.Version
	return nil
}

func (r *CalendarRepository) classifyDuplicate(ctx context.Context, cal *domaincalendar.ListingCalendar) error {
	n, err := r.col.CountDocuments(ctx, bson.M{"listing_id": cal.ListingID, "url": cal.URL, "_id": bson.M{"$ne": cal.ID}})
	if err != nil {
		return err
	}
	if n > 0 {
		return domaincalendar.ErrCalendarExists
	}
	return domaincalendar.ErrConcurrentUpdate
}

func (r *CalendarRepository) Delete(ctx context.Context, id domaincalendar.CalendarID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domaincalendar.ErrCalendarNotFound
	}
	return nil
}

type calendarDocument struct {
	ID             string `bson:"_id"`
	ListingID      string `bson:"listing_id"`
	URL            string `bson:"url"`
	Name           string `bson:"name"`
	ETag           string `bson:"etag,omitempty"`
	LastModified   string `bson:"last_modified,omitempty"`
	LastSyncAt     *int64 `bson:"last_sync_at"`
	LastSyncStatus string `bson:"last_sync_status"`
	LastError      string `bson:"last_error,omitempty"`
	ImportedTotal  int    `bson:"imported_total"`
	RemovedTotal   int    `bson:"removed_total"`
	CreatedBy      string `bson:"created_by"`
	CreatedAt      int64  `bson:"created_at"`
	UpdatedAt      int64  `bson:"updated_at"`
	Version        int64  `bson:"version"`
}

func newCalendarDocument(c *domaincalendar.ListingCalendar) calendarDocument {
	return calendarDocument{
		ID:             string(c.ID),
		ListingID:      string(c.ListingID),
		URL:            c.URL,
		Name:           c.Name,
		ETag:           c.Validators.ETag,
		LastModified:   c.Validators.LastModified,
		LastSyncAt:     optionalTimestamp(c.LastSyncAt),
		LastSyncStatus: string(c.LastSyncStatus),
		LastError:      c.LastError,
		ImportedTotal:  c.ImportedTotal,
		RemovedTotal:   c.RemovedTotal,
		CreatedBy:      c.CreatedBy,
		CreatedAt:      c.CreatedAt.UnixMilli(),
		UpdatedAt:      c.UpdatedAt.UnixMilli(),
		Version:        c.Version,
	}
}

func (d calendarDocument) toAggregate() *domaincalendar.ListingCalendar {
	return &domaincalendar.ListingCalendar{
		ID:             domaincalendar.CalendarID(d.ID),
		ListingID:      domainlistings.ListingID(d.ListingID),
		URL:            d.URL,
		Name:           d.Name,
		Validators:     domaincalendar.Validators{ETag: d.ETag, LastModified: d.LastModified},
		LastSyncAt:     optionalTime(d.LastSyncAt),
		LastSyncStatus: domaincalendar.SyncStatus(d.LastSyncStatus),
		LastError:      d.LastError,
		ImportedTotal:  d.ImportedTotal,
		RemovedTotal:   d.RemovedTotal,
		CreatedBy:      d.CreatedBy,
		CreatedAt:      timestampToTime(d.CreatedAt),
		UpdatedAt:      timestampToTime(d.UpdatedAt),
		Version:        d.Version,
	}
}

var _ domaincalendar.Repository = (*CalendarRepository)(nil)
