package memory

import (
	"context"
	"sync"

	appoutbox "staybook/internal/app/outbox"
)

// Outbox buffers event records until Flush hands them to Sink. Without a sink
// flushed records are kept and can be read back with Records.
type Outbox struct {
	mu      sync.Mutex
	pending []appoutbox.EventRecord
	flushed []appoutbox.EventRecord
	Sink    func(ctx context.Context, record appoutbox.EventRecord) error
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	pending := o.pending
	o.pending = nil
	o.mu.Unlock()
	for i, rec := range pending {
		if o.Sink == nil {
			continue
		}
		if err := o.Sink(ctx, rec); err != nil {
			o.mu.Lock()
			o.pending = append(pending[i:], o.pending...)
			o.mu.Unlock()
			return err
		}
	}
	o.mu.Lock()
	o.flushed = append(o.flushed, pending...)
	o.mu.Unlock()
	return nil
}

// Records returns every record added so far, flushed or not.
func (o *Outbox) Records() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(o.flushed)+len(o.pending))
	out = append(out, o.flushed...)
	return append(out, o.pending...)
}

// Names lists the event names of Records in order.
func (o *Outbox) Names() []string {
	records := o.Records()
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}
	return names
}

var _ appoutbox.Outbox = (*Outbox)(nil)
