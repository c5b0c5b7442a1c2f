package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"staybook/internal/domain/shared/events"
)

type sample struct {
	ID string
	At time.Time
}

func (s sample) EventName() string     { return "sample.happened" }
func (s sample) AggregateID() string   { return s.ID }
func (s sample) OccurredAt() time.Time { return s.At }

type aggregate struct {
	events.EventRecorder
}

type failingBox struct{ adds int }

func (b *failingBox) Add(context.Context, EventRecord) error { b.adds++; return errors.New("down") }
func (b *failingBox) Flush(context.Context) error            { return nil }

type sliceBox struct{ records []EventRecord }

func (b *sliceBox) Add(_ context.Context, r EventRecord) error { b.records = append(b.records, r); return nil }
func (b *sliceBox) Flush(context.Context) error                { return nil }

func TestPublisherDrainsAggregates(t *testing.T) {
	box := &sliceBox{}
	agg := &aggregate{}
	agg.Record(sample{ID: "a-1", At: time.Unix(10, 0)})
	Publisher{Outbox: box, Encoder: JSONEventEncoder{IDGenerator: func() string { return "evt-1" }}}.Publish(context.Background(), agg)

	if len(box.records) != 1 || box.records[0].ID != "evt-1" || box.records[0].Name != "sample.happened" {
		t.Fatalf("records = %+v", box.records)
	}
	if len(agg.PendingEvents()) != 0 {
		t.Fatal("events not drained")
	}
}

func TestPublisherSwallowsFailures(t *testing.T) {
	box := &failingBox{}
	agg := &aggregate{}
	agg.Record(sample{ID: "a-1"})
	Publisher{Outbox: box}.Publish(context.Background(), agg)
	if box.adds != 1 {
		t.Fatalf("adds = %d", box.adds)
	}
}

func TestRecordedEventsCarryContextHeaders(t *testing.T) {
	box := &sliceBox{}
	ctx := WithHeader(context.Background(), "x-request-id", "req-7")
	ctx = WithHeader(ctx, "traceparent", "00-abc-def-01")
	ctx = WithHeader(ctx, "ignored", "")

	agg := &aggregate{}
	agg.Record(sample{ID: "a-1"})
	agg.Record(sample{ID: "a-1"})
	Publisher{Outbox: box}.Publish(ctx, agg)

	if len(box.records) != 2 {
		t.Fatalf("records = %d", len(box.records))
	}
	for _, rec := range box.records {
		if rec.Headers["x-request-id"] != "req-7" || rec.Headers["traceparent"] != "00-abc-def-01" {
			t.Fatalf("headers = %v", rec.Headers)
		}
		if _, ok := rec.Headers["ignored"]; ok {
			t.Fatal("empty header recorded")
		}
	}
	if len(HeadersFromContext(context.Background())) != 0 {
		t.Fatal("background context has headers")
	}
}
