package calendarfeed

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"staybook/internal/app/policies"
	domaincalendar "staybook/internal/domain/calendar"
)

const (
	productID  = "-//staybook//listing availability//EN"
	dateLayout = "20060102"
)

var ErrNotCalendar = errors.New("calendarfeed: document is not an iCalendar feed")

// ICSCodec reads external feeds and writes listing feeds as all-day events.
type ICSCodec struct{}

func (ICSCodec) Parse(data []byte) ([]domaincalendar.FeedEvent, error) {
	if !strings.Contains(strings.ToUpper(string(data)), "BEGIN:VCALENDAR") {
		return nil, ErrNotCalendar
	}
	cal, err := ics.ParseCalendar(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotCalendar, err)
	}
	events := cal.Events()
	out := make([]domaincalendar.FeedEvent, 0, len(events))
	for _, ev := range events {
		if strings.EqualFold(propertyValue(ev, ics.ComponentPropertyStatus), "CANCELLED") {
			continue
		}
		// An event without DTEND comes back with a zero End and is skipped
		// by sync.
		start := eventTime(ev, ics.ComponentPropertyDtStart)
		end := eventTime(ev, ics.ComponentPropertyDtEnd)
		out = append(out, domaincalendar.FeedEvent{
			UID:     propertyValue(ev, ics.ComponentPropertyUniqueId),
			Summary: propertyValue(ev, ics.ComponentPropertySummary),
			Start:   start,
			End:     end,
		})
	}
	return out, nil
}

func (ICSCodec) Encode(name string, events []domaincalendar.ExportEvent) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}
	for _, e := range events {
		ev := cal.AddEvent(e.UID)
		ev.SetDtStampTime(e.Stamp.UTC())
		ev.SetAllDayStartAt(e.Start.UTC())
		ev.SetAllDayEndAt(e.End.UTC())
		ev.SetSummary(e.Summary)
	}
	return []byte(cal.Serialize()), nil
}

func propertyValue(ev *ics.VEvent, prop ics.ComponentProperty) string {
	p := ev.GetProperty(prop)
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.Value)
}

// eventTime reads DTSTART or DTEND. Date values are taken as UTC midnight;
// missing or unreadable values come back zero.
func eventTime(ev *ics.VEvent, prop ics.ComponentProperty) time.Time {
	raw := propertyValue(ev, prop)
	if raw == "" {
		return time.Time{}
	}
	if len(raw) == len(dateLayout) {
		t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	var (
		t   time.Time
		err error
	)
	if prop == ics.ComponentPropertyDtStart {
		t, err = ev.GetStartAt()
	} else {
		t, err = ev.GetEndAt()
	}
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

var _ policies.CalendarCodec = ICSCodec{}
