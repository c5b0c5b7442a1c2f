package memory

import (
	"context"
	"sort"
	"sync"

	domaincalendar "staybook/internal/domain/calendar"
	domainlistings "staybook/internal/domain/listings"
)

type CalendarRepository struct {
	mu    sync.RWMutex
	items map[domaincalendar.CalendarID]*domaincalendar.ListingCalendar
}

func NewCalendarRepository() *CalendarRepository {
	return &CalendarRepository{items: make(map[domaincalendar.CalendarID]*domaincalendar.ListingCalendar)}
}

func (r *CalendarRepository) ByID(ctx context.Context, id domaincalendar.CalendarID) (*domaincalendar.ListingCalendar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return nil, domaincalendar.ErrCalendarNotFound
	}
	return cloneCalendar(c), nil
}

func (r *CalendarRepository) ByListing(ctx context.Context, listingID domainlistings.ListingID) ([]*domaincalendar.ListingCalendar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domaincalendar.ListingCalendar, 0)
	for _, c := range r.items {
		if c.ListingID == listingID {
			out = append(out, cloneCalendar(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *CalendarRepository) Save(ctx context.Context, cal *domaincalendar.ListingCalendar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.items {
		if id != cal.ID && c.ListingID == cal.ListingID && c.URL == cal.URL {
			return domaincalendar.ErrCalendarExists
		}
	}
	stored := int64(0)
	if current, ok := r.items[cal.ID]; ok {
		stored = current.Version
	}
	if stored != cal.Version {
		return domaincalendar.ErrConcurrentUpdate
	}
	cal.Version++
	r.items[cal.ID] = cloneCalendar(cal)
	return nil
}

func (r *CalendarRepository) Delete(ctx context.Context, id domaincalendar.CalendarID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domaincalendar.ErrCalendarNotFound
	}
	delete(r.items, id)
	return nil
}

func cloneCalendar(c *domaincalendar.ListingCalendar) *domaincalendar.ListingCalendar {
	out := &domaincalendar.ListingCalendar{
		ID:             c.ID,
		ListingID:      c.ListingID,
		URL:            c.URL,
		Name:           c.Name,
		Validators:     c.Validators,
		LastSyncStatus: c.LastSyncStatus,
		LastError:      c.LastError,
		ImportedTotal:  c.ImportedTotal,
		RemovedTotal:   c.RemovedTotal,
		CreatedBy:      c.CreatedBy,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		Version:        c.Version,
	}
	if c.LastSyncAt != nil {
		at := *c.LastSyncAt
		out.LastSyncAt = &at
	}
	return out
}

var _ domaincalendar.Repository = (*CalendarRepository)(nil)
