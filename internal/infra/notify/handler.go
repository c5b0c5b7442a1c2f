package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	"staybook/internal/app/policies"
	"staybook/internal/infra/inbox"
)

var ErrMalformedEvent = errors.New("notify: malformed cloud event")

// templates maps event types to notification templates. Events without a
// template are acknowledged and dropped.
var templates = map[string]string{
	"booking.requested.v1":    "booking_requested",
	"booking.confirmed.v1":    "booking_confirmed",
	"booking.declined.v1":     "booking_declined",
	"booking.cancelled.v1":    "booking_cancelled",
	"booking.expired.v1":      "booking_expired",
	"calendar.sync_failed.v1": "calendar_sync_failed",
}

type cloudEvent struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Subject string         `json:"subject"`
	Data    map[string]any `json:"data"`
}

// Handler turns relayed domain events into notifications. Each event id is
// delivered at most once per consumer through the inbox.
type Handler struct {
	Inbox    inbox.Inbox
	Notifier policies.Notifier
	Logger   *slog.Logger
}

func (h Handler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	return h.HandleEvent(ctx, msg.Value)
}

func (h Handler) HandleEvent(ctx context.Context, raw []byte) error {
	var evt cloudEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if evt.ID == "" || evt.Type == "" {
		return ErrMalformedEvent
	}
	template, ok := templates[evt.Type]
	if !ok {
		return nil
	}
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return err
		}
		if seen {
			h.logger().Debug("duplicate event skipped", "id", evt.ID, "type", evt.Type)
			return nil
		}
	}
	to := recipient(evt)
	if err := h.Notifier.Send(ctx, to, template, evt.Data); err != nil {
		h.logger().Warn("notification not sent", "template", template, "to", to, "error", err)
	}
	return nil
}

// recipient prefers the guest named in the payload and falls back to the
// event subject.
func recipient(evt cloudEvent) string {
	if guest, ok := evt.Data["guest_id"].(string); ok && strings.TrimSpace(guest) != "" {
		return guest
	}
	return evt.Subject
}

func (h Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
