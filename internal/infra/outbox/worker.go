package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	appoutbox "staybook/internal/app/outbox"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

const defaultSource = "app://staybook"

// Queue is the relay side of the outbox.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*EventDocument, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
	MarkDead(ctx context.Context, id string, errMsg string) error
	ReleaseStale(ctx context.Context, lease time.Duration) (int, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker relays outbox records to the broker as CloudEvents. Delivery is at
// least once; consumers deduplicate on the event id header.
type Worker struct {
	Store       Queue
	Producer    Producer
	Interval    time.Duration
	Lease       time.Duration
	BatchSize   int
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	// MaxAttempts parks a record after that many failed publishes. Zero
	// retries forever.
	MaxAttempts int
	Logger      *slog.Logger
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := w.Store.ReleaseStale(ctx, w.lease()); err != nil {
				w.logger().Warn("outbox release stale failed", "error", err)
			} else if n > 0 {
				w.logger().Info("outbox records released", "count", n)
			}
			if _, err := w.ProcessBatch(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger().Error("outbox relay failed", "error", err)
			}
		}
	}
}

// ProcessBatch relays due records until none is left or the batch size is
// reached, and returns how many were sent.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	sent := 0
	for i := 0; i < w.batchSize(); i++ {
		ok, err := w.processOnce(ctx)
		if err != nil {
			return sent, err
		}
		if !ok {
			break
		}
		sent++
	}
	return sent, nil
}

// processOnce reports whether a record was claimed. Publish failures are
// rescheduled and do not stop the batch.
func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	doc, err := w.Store.Claim(ctx, w.ID)
	if err != nil || doc == nil {
		return false, err
	}
	topic := w.topicFor(doc.Name)
	payload, headers, err := w.formatPayload(doc)
	if err == nil {
		err = w.Producer.Publish(ctx, topic, doc.Aggregate, payload, headers)
	}
	if err != nil {
		attempts := doc.Attempts + 1
		if w.MaxAttempts > 0 && attempts >= w.MaxAttempts {
			w.logger().Error("outbox record dead-lettered", "event", doc.Name, "id", doc.ID, "attempts", attempts, "error", err)
			return true, w.Store.MarkDead(ctx, doc.ID, err.Error())
		}
		w.logger().Warn("outbox publish failed", "event", doc.Name, "id", doc.ID, "attempts", attempts, "error", err)
		if markErr := w.Store.MarkFailed(ctx, doc.ID, w.nextRetry(doc.Attempts), err.Error()); markErr != nil {
			return true, markErr
		}
		return true, nil
	}
	return true, w.Store.MarkSent(ctx, doc.ID)
}

func (w *Worker) formatPayload(doc *EventDocument) ([]byte, map[string]string, error) {
	payload, err := envelope(doc.ID, doc.Name, doc.Aggregate, doc.OccurredAt, doc.Payload, doc.Headers, w.source())
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-id":        doc.ID,
		"ce-type":      doc.Name,
	}
	for k, v := range doc.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// Envelope renders a record as the CloudEvents JSON the relay publishes.
func Envelope(rec appoutbox.EventRecord, source string) ([]byte, error) {
	if source == "" {
		source = defaultSource
	}
	return envelope(rec.ID, rec.Name, rec.Aggregate, rec.OccurredAt, rec.Payload, rec.Headers, source)
}

func envelope(id, name, aggregate string, occurredAt time.Time, raw []byte, headers map[string]string, source string) ([]byte, error) {
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              id,
		"type":            name + ".v1",
		"source":          source,
		"subject":         aggregate,
		"time":            occurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	return json.Marshal(evt)
}

// topicFor maps booking.confirmed to <prefix>booking.events.v1.
func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return TopicFor(w.TopicPrefix, base)
}

// TopicFor names the topic carrying events of one aggregate kind.
func TopicFor(prefix, aggregate string) string {
	return prefix + aggregate + ".events.v1"
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) lease() time.Duration {
	if w.Lease <= 0 {
		return time.Minute
	}
	return w.Lease
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 100
	}
	return w.BatchSize
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return defaultSource
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
