package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	domainavailability "staybook/internal/domain/availability"
	domaincalendar "staybook/internal/domain/calendar"
	domainpricing "staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
)

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestClaimRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	claim := domainavailability.Claim{
		BookingID: "bk-2",
		Range:     daterange.DateRange{CheckIn: day(10), CheckOut: day(12)},
		CreatedAt: day(1),
	}

	mt.Run("overlap reported from duplicate key", func(mt *mtest.T) {
		repo := NewClaimRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
		)
		err := repo.Claim(context.Background(), "lst-1", claim, day(1))
		if !errors.Is(err, domainavailability.ErrOverlappingRange) {
			t.Fatalf("err = %v", err)
		}
	})

	mt.Run("claim stored", func(mt *mtest.T) {
		repo := NewClaimRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)
		if err := repo.Claim(context.Background(), "lst-1", claim, day(1)); err != nil {
			t.Fatalf("claim: %v", err)
		}
	})

	mt.Run("settle unknown claim", func(mt *mtest.T) {
		repo := NewClaimRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		if err := repo.Settle(context.Background(), "lst-1", "bk-9"); !errors.Is(err, domainavailability.ErrClaimNotFound) {
			t.Fatalf("err = %v", err)
		}
	})

	mt.Run("calendar decodes claims", func(mt *mtest.T) {
		repo := NewClaimRepository(mt.DB)
		expires := day(2).UnixMilli()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "staybook.availability_calendars", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "lst-1"},
			{Key: "version", Value: int64(3)},
			{Key: "claims", Value: bson.A{bson.D{
				{Key: "booking_id", Value: "bk-1"},
				{Key: "check_in", Value: day(5).UnixMilli()},
				{Key: "check_out", Value: day(7).UnixMilli()},
				{Key: "expires_at", Value: expires},
				{Key: "created_at", Value: day(1).UnixMilli()},
			}}},
		}))
		cal, err := repo.Calendar(context.Background(), "lst-1")
		if err != nil {
			t.Fatalf("calendar: %v", err)
		}
		if len(cal.Claims) != 1 || cal.Claims[0].BookingID != "bk-1" {
			t.Fatalf("claims = %+v", cal.Claims)
		}
		if got := cal.Claims[0].Range.CheckIn; !got.Equal(day(5)) {
			t.Fatalf("check in = %s", got)
		}
		if cal.Claims[0].ExpiresAt == nil || !cal.Claims[0].ExpiresAt.Equal(day(2)) {
			t.Fatalf("expires = %v", cal.Claims[0].ExpiresAt)
		}
	})
}

func TestBlockedDateSoftDeleteMissing(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewBlockedDateRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		err := repo.SoftDelete(context.Background(), "lst-1", "ext-1", day(1))
		if !errors.Is(err, domainavailability.ErrBlockedDateNotFound) {
			t.Fatalf("err = %v", err)
		}
	})

	mt.Run("counts removed", func(mt *mtest.T) {
		repo := NewBlockedDateRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}, bson.E{Key: "nModified", Value: 2}))
		n, err := repo.SoftDeleteMissing(context.Background(), "cal-1", nil, day(1))
		if err != nil {
			t.Fatalf("soft delete: %v", err)
		}
		if n != 2 {
			t.Fatalf("removed = %d", n)
		}
	})
}

func TestCalendarRepositoryNotFound(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("by id", func(mt *mtest.T) {
		repo := NewCalendarRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "staybook.listing_calendars", mtest.FirstBatch))
		if _, err := repo.ByID(context.Background(), "cal-1"); !errors.Is(err, domaincalendar.ErrCalendarNotFound) {
			t.Fatalf("err = %v", err)
		}
	})

	mt.Run("delete", func(mt *mtest.T) {
		repo := NewCalendarRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		if err := repo.Delete(context.Background(), "cal-1"); !errors.Is(err, domaincalendar.ErrCalendarNotFound) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestPricingConfigRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get decodes fees", func(mt *mtest.T) {
		repo := NewPricingConfigRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "staybook.pricing_configs", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "listing:lst-1"},
			{Key: "scope", Value: "listing"},
			{Key: "scope_id", Value: "lst-1"},
			{Key: "service_fee", Value: bson.D{{Key: "mode", Value: "percentage"}, {Key: "value", Value: 12.5}, {Key: "is_free", Value: false}}},
			{Key: "cleaning_fee", Value: bson.D{{Key: "amount", Value: int64(40)}, {Key: "is_free", Value: false}}},
		}))
		cfg, err := repo.Get(context.Background(), domainpricing.ScopeListing, "lst-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if cfg.ServiceFee == nil || cfg.ServiceFee.Value != 12.5 {
			t.Fatalf("service fee = %+v", cfg.ServiceFee)
		}
		if cfg.CleaningFee == nil || cfg.CleaningFee.Amount != 40 || cfg.Tax != nil {
			t.Fatalf("config = %+v", cfg)
		}
	})

	mt.Run("missing", func(mt *mtest.T) {
		repo := NewPricingConfigRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "staybook.pricing_configs", mtest.FirstBatch))
		if _, err := repo.Get(context.Background(), domainpricing.ScopeGlobal, ""); !errors.Is(err, domainpricing.ErrConfigNotFound) {
			t.Fatalf("err = %v", err)
		}
	})

	mt.Run("upsert rejects bad scope", func(mt *mtest.T) {
		repo := NewPricingConfigRepository(mt.DB)
		err := repo.Upsert(context.Background(), &domainpricing.Config{Scope: domainpricing.ScopeHost})
		if !errors.Is(err, domainpricing.ErrScopeIDMissing) {
			t.Fatalf("err = %v", err)
		}
	})
}
