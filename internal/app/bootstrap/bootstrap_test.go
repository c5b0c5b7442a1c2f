package bootstrap_test

import (
	"errors"
	"slices"
	"testing"
	"time"

	"staybook/internal/app/bootstrap"
	"staybook/internal/infra/calendarfeed"
	"staybook/internal/infra/lock"
	"staybook/internal/infra/payments"
	"staybook/internal/infra/storage/memory"
)

func deps() bootstrap.Deps {
	return bootstrap.Deps{
		UoWFactory:  memory.Factory{Store: memory.NewStore()},
		Outbox:      memory.NewOutbox(),
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Payments:    payments.NewProcessor(nil),
		Fetcher:     calendarfeed.NewHTTPFetcher(time.Second),
		Codec:       calendarfeed.ICSCodec{},
		Locker:      lock.NewLocal(),
	}
}

func TestBuildRegistersEveryUseCase(t *testing.T) {
	app, err := bootstrap.Build(deps())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, key := range []string{
		"listings.create", "listings.update", "listings.activate", "listings.suspend", "listings.replace_overrides",
		"booking.create", "booking.update_status", "booking.cancel", "booking.expire_pending",
		"pricing.upsert_config",
		"calendar.add", "calendar.remove", "calendar.sync", "calendar.sync_listing", "calendar.publish_feed",
	} {
		if !slices.Contains(app.CommandKeys(), key) {
			t.Errorf("command %q not registered", key)
		}
	}
	for _, key := range []string{
		"listings.get", "listings.list_by_host",
		"booking.get", "booking.list", "booking.check_availability", "booking.calculate_price",
		"pricing.get_config", "pricing.get_effective",
		"calendar.list", "calendar.export",
		"availability.occupancy",
	} {
		if !slices.Contains(app.QueryKeys(), key) {
			t.Errorf("query %q not registered", key)
		}
	}
}

func TestBuildRequiresCoreDependencies(t *testing.T) {
	d := deps()
	d.Locker = nil
	if _, err := bootstrap.Build(d); !errors.Is(err, bootstrap.ErrMissingDependency) {
		t.Fatalf("missing locker err = %v", err)
	}
	d = deps()
	d.Outbox = nil
	if _, err := bootstrap.Build(d); !errors.Is(err, bootstrap.ErrMissingDependency) {
		t.Fatalf("missing outbox err = %v", err)
	}
	d = deps()
	d.Feeds = nil
	if _, err := bootstrap.Build(d); err != nil {
		t.Fatalf("feeds are optional: %v", err)
	}
}
