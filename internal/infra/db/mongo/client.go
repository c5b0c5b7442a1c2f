package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Client struct {
	DB *mongo.Database
}

func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on for uniqueness
// and lookups. It is safe to call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		bookingsCollection: {
			{Keys: bsonKeys("reference"), Options: options.Index().SetUnique(true)},
			{Keys: bsonKeys("listing_id", "status")},
			{Keys: bsonKeys("guest_id")},
			{Keys: bsonKeys("host_id")},
			{Keys: bsonKeys("status", "expires_at")},
		},
		listingsCollection: {
			{Keys: bsonKeys("host_id")},
		},
		blockedDatesCollection: {
			{Keys: bsonKeys("listing_id", "event_uid"), Options: options.Index().SetUnique(true)},
			{Keys: bsonKeys("calendar_id", "deleted")},
		},
		calendarsCollection: {
			{Keys: bsonKeys("listing_id", "url"), Options: options.Index().SetUnique(true)},
		},
		pricingCollection: {
			{Keys: bsonKeys("scope", "scope_id"), Options: options.Index().SetUnique(true)},
		},
	}
	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}
