package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	appoutbox "staybook/internal/app/outbox"
)

type fakeQueue struct {
	docs   []*EventDocument
	sent   []string
	failed map[string]string
	dead   []string
}

func (q *fakeQueue) Claim(context.Context, string) (*EventDocument, error) {
	if len(q.docs) == 0 {
		return nil, nil
	}
	doc := q.docs[0]
	q.docs = q.docs[1:]
	return doc, nil
}

func (q *fakeQueue) MarkSent(_ context.Context, id string) error {
	q.sent = append(q.sent, id)
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, id string, _ time.Time, msg string) error {
	if q.failed == nil {
		q.failed = map[string]string{}
	}
	q.failed[id] = msg
	return nil
}

func (q *fakeQueue) MarkDead(_ context.Context, id string, _ string) error {
	q.dead = append(q.dead, id)
	return nil
}

func (q *fakeQueue) ReleaseStale(context.Context, time.Duration) (int, error) { return 0, nil }

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	out  []published
	fail map[string]error
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if err := p.fail[key]; err != nil {
		return err
	}
	p.out = append(p.out, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func TestWorkerRelaysCloudEvents(t *testing.T) {
	q := &fakeQueue{docs: []*EventDocument{
		{ID: "ev-1", Name: "booking.confirmed", Aggregate: "bk-1", Payload: []byte(`{"booking_id":"bk-1"}`), Headers: map[string]string{"traceparent": "00-abc"}},
		{ID: "ev-2", Name: "calendar.synced", Aggregate: "cal-1", Payload: []byte(`{}`)},
		{ID: "ev-3", Name: "booking.cancelled", Aggregate: "bk-down", Payload: []byte(`{}`)},
	}}
	prod := &fakeProducer{fail: map[string]error{"bk-down": errors.New("broker down")}}
	w := &Worker{Store: q, Producer: prod, TopicPrefix: "staybook.", ID: "w-1"}

	sent, err := w.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if sent != 3 {
		t.Fatalf("claimed = %d", sent)
	}
	if len(q.sent) != 2 || q.failed["ev-3"] != "broker down" {
		t.Fatalf("sent %v failed %v", q.sent, q.failed)
	}
	if prod.out[0].topic != "staybook.booking.events.v1" || prod.out[1].topic != "staybook.calendar.events.v1" {
		t.Fatalf("topics %s %s", prod.out[0].topic, prod.out[1].topic)
	}

	var evt map[string]any
	if err := json.Unmarshal(prod.out[0].payload, &evt); err != nil {
		t.Fatal(err)
	}
	if evt["id"] != "ev-1" || evt["type"] != "booking.confirmed.v1" || evt["source"] != "app://staybook" {
		t.Fatalf("envelope = %v", evt)
	}
	if evt["traceparent"] != "00-abc" || prod.out[0].headers["ce-id"] != "ev-1" {
		t.Fatalf("trace not propagated: %v %v", evt, prod.out[0].headers)
	}
}

func TestWorkerRequiresDependencies(t *testing.T) {
	if err := (&Worker{}).Run(context.Background()); !errors.Is(err, ErrWorkerNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}

func TestEnvelopeDefaultsSource(t *testing.T) {
	rec := appoutbox.EventRecord{
		ID:         "evt-9",
		Name:       "booking.cancelled",
		Payload:    []byte(`{"guest_id":"guest-1"}`),
		OccurredAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Aggregate:  "bk-9",
	}
	raw, err := Envelope(rec, "")
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	var evt map[string]any
	if err := json.Unmarshal(raw, &evt); err != nil {
		t.Fatal(err)
	}
	if evt["source"] != "app://staybook" || evt["type"] != "booking.cancelled.v1" || evt["subject"] != "bk-9" {
		t.Fatalf("envelope = %v", evt)
	}
	if data, _ := evt["data"].(map[string]any); data["guest_id"] != "guest-1" {
		t.Fatalf("data = %v", evt["data"])
	}

	if _, err := Envelope(appoutbox.EventRecord{ID: "x", Name: "n", Payload: []byte("nope")}, "app://test"); err == nil {
		t.Fatal("expected malformed payload error")
	}
}

func TestWorkerDeadLettersExhaustedRecords(t *testing.T) {
	q := &fakeQueue{docs: []*EventDocument{
		{ID: "ev-1", Name: "booking.confirmed", Aggregate: "bk-1", Payload: []byte(`{}`), Attempts: 2},
		{ID: "ev-2", Name: "booking.confirmed", Aggregate: "bk-1", Payload: []byte(`{}`), Attempts: 0},
	}}
	prod := &fakeProducer{fail: map[string]error{"bk-1": errors.New("broker down")}}
	w := &Worker{Store: q, Producer: prod, MaxAttempts: 3}

	if _, err := w.ProcessBatch(context.Background()); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(q.dead) != 1 || q.dead[0] != "ev-1" {
		t.Fatalf("dead = %v", q.dead)
	}
	if _, ok := q.failed["ev-2"]; !ok || len(q.failed) != 1 {
		t.Fatalf("failed = %v", q.failed)
	}
}
