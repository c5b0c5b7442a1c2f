package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"staybook/internal/domain/shared/events"
)

// EventRecord is one domain event serialized for relay. Headers travel with
// the event to the broker.
type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// Outbox stores records in the same unit of work as the state change that
// raised them. Flush hands buffered records on after commit.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

// JSONEventEncoder marshals the event struct as the payload.
type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, fmt.Errorf("outbox: encode %s: %w", ev.EventName(), err)
	}
	id := uuid.NewString
	if e.IDGenerator != nil {
		id = e.IDGenerator
	}
	return EventRecord{
		ID:         id(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt().UTC(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{},
	}, nil
}

type headersKey struct{}

// WithHeader returns a context whose recorded events carry name=value, e.g.
// the request id or trace parent of the call that raised them.
func WithHeader(ctx context.Context, name, value string) context.Context {
	if value == "" {
		return ctx
	}
	headers := maps.Clone(HeadersFromContext(ctx))
	if headers == nil {
		headers = map[string]string{}
	}
	headers[name] = value
	return context.WithValue(ctx, headersKey{}, headers)
}

func HeadersFromContext(ctx context.Context) map[string]string {
	headers, _ := ctx.Value(headersKey{}).(map[string]string)
	return headers
}

// RecordDomainEvents encodes evs in order and adds them to box. It stops at
// the first failure.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	ctxHeaders := HeadersFromContext(ctx)
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if len(ctxHeaders) > 0 {
			if rec.Headers == nil {
				rec.Headers = map[string]string{}
			}
			for k, v := range ctxHeaders {
				if _, set := rec.Headers[k]; !set {
					rec.Headers[k] = v
				}
			}
		}
		if err := box.Add(ctx, rec); err != nil {
			return fmt.Errorf("outbox: add %s: %w", rec.Name, err)
		}
	}
	return nil
}

// Publisher records the pending events of aggregates. Recording is best
// effort: failures are logged and never fail the operation that raised them.
type Publisher struct {
	Outbox  Outbox
	Encoder EventEncoder
	Logger  *slog.Logger
}

// EventSource is implemented by aggregates embedding events.EventRecorder.
type EventSource interface {
	Drain() []events.DomainEvent
}

func (p Publisher) Publish(ctx context.Context, sources ...EventSource) {
	for _, src := range sources {
		if src == nil {
			continue
		}
		evs := src.Drain()
		if err := RecordDomainEvents(ctx, p.Outbox, p.Encoder, evs); err != nil && p.Logger != nil {
			names := make([]string, 0, len(evs))
			for _, ev := range evs {
				names = append(names, ev.EventName())
			}
			p.Logger.WarnContext(ctx, "domain events not recorded", "events", names, "error", err)
		}
	}
}
