package notify

import (
	"context"
	"errors"
	"testing"

	"staybook/internal/infra/inbox"
)

type sent struct {
	to       string
	template string
}

type recordingNotifier struct {
	out []sent
	err error
}

func (n *recordingNotifier) Send(_ context.Context, to, template string, _ any) error {
	n.out = append(n.out, sent{to: to, template: template})
	return n.err
}

func TestHandlerDeliversOnce(t *testing.T) {
	n := &recordingNotifier{}
	h := Handler{Inbox: inbox.NewMemory(), Notifier: n}
	raw := []byte(`{"id":"ev-1","type":"booking.requested.v1","subject":"bk-1","data":{"guest_id":"guest-1"}}`)

	for i := 0; i < 2; i++ {
		if err := h.HandleEvent(context.Background(), raw); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if len(n.out) != 1 {
		t.Fatalf("sent %d notifications", len(n.out))
	}
	if n.out[0] != (sent{to: "guest-1", template: "booking_requested"}) {
		t.Fatalf("sent = %+v", n.out[0])
	}
}

func TestHandlerFallsBackToSubject(t *testing.T) {
	n := &recordingNotifier{err: errors.New("smtp down")}
	h := Handler{Notifier: n}
	raw := []byte(`{"id":"ev-2","type":"calendar.sync_failed.v1","subject":"cal-1","data":{"Reason":"timeout"}}`)
	if err := h.HandleEvent(context.Background(), raw); err != nil {
		t.Fatalf("notifier failure propagated: %v", err)
	}
	if len(n.out) != 1 || n.out[0].to != "cal-1" {
		t.Fatalf("sent = %+v", n.out)
	}
}

func TestHandlerIgnoresUnmappedAndRejectsMalformed(t *testing.T) {
	n := &recordingNotifier{}
	h := Handler{Notifier: n}
	if err := h.HandleEvent(context.Background(), []byte(`{"id":"ev-3","type":"calendar.synced.v1"}`)); err != nil {
		t.Fatalf("unmapped: %v", err)
	}
	if len(n.out) != 0 {
		t.Fatalf("unexpected notification %+v", n.out)
	}
	if err := h.HandleEvent(context.Background(), []byte(`not json`)); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("err = %v", err)
	}
}
