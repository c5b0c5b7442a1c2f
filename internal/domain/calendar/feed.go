package calendar

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"staybook/internal/domain/shared/daterange"
)

// FeedEvent is one VEVENT read from an external feed. Start and End are zero
// when the event lacks them.
type FeedEvent struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
}

// Complete reports whether the event carries a usable interval.
func (e FeedEvent) Complete() bool {
	return !e.Start.IsZero() && !e.End.IsZero() && e.End.After(e.Start)
}

func (e FeedEvent) Range() daterange.DateRange {
	return daterange.DateRange{CheckIn: e.Start.UTC(), CheckOut: e.End.UTC()}
}

// StableUID returns the event uid, or a digest of its interval and summary
// when the feed omitted one.
func (e FeedEvent) StableUID() string {
	if uid := strings.TrimSpace(e.UID); uid != "" {
		return uid
	}
	h := sha1.New()
	h.Write([]byte(e.Start.UTC().Format(time.RFC3339)))
	h.Write([]byte{'|'})
	h.Write([]byte(e.End.UTC().Format(time.RFC3339)))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.TrimSpace(e.Summary)))
	return "synth-" + hex.EncodeToString(h.Sum(nil))
}

// ExportEvent is one VEVENT of an exported listing feed.
type ExportEvent struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	Stamp   time.Time
}

const (
	ReservedSummary     = "Reserved"
	NotAvailableSummary = "Not available"
)
