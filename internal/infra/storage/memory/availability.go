package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domainavailability "staybook/internal/domain/availability"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

// ClaimRepository keeps one occupancy calendar per listing. The mutex plays
// the part of the conditional update in the mongo repository.
type ClaimRepository struct {
	mu        sync.Mutex
	calendars map[domainlistings.ListingID]*domainavailability.Calendar
}

func NewClaimRepository() *ClaimRepository {
	return &ClaimRepository{calendars: make(map[domainlistings.ListingID]*domainavailability.Calendar)}
}

func (r *ClaimRepository) Calendar(ctx context.Context, id domainlistings.ListingID) (*domainavailability.Calendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cal, ok := r.calendars[id]
	if !ok {
		return domainavailability.NewCalendar(id), nil
	}
	out := *cal
	out.Claims = append([]domainavailability.Claim(nil), cal.Claims...)
	return &out, nil
}

func (r *ClaimRepository) Claim(ctx context.Context, id domainlistings.ListingID, claim domainavailability.Claim, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cal, ok := r.calendars[id]
	if !ok {
		cal = domainavailability.NewCalendar(id)
		r.calendars[id] = cal
	}
	if err := cal.Add(claim, now); err != nil {
		return err
	}
	cal.Version++
	return nil
}

func (r *ClaimRepository) Settle(ctx context.Context, id domainlistings.ListingID, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cal, ok := r.calendars[id]
	if !ok {
		return domainavailability.ErrClaimNotFound
	}
	for i := range cal.Claims {
		if cal.Claims[i].BookingID == bookingID {
			cal.Claims[i].ExpiresAt = nil
			cal.Version++
			return nil
		}
	}
	return domainavailability.ErrClaimNotFound
}

func (r *ClaimRepository) Drop(ctx context.Context, id domainlistings.ListingID, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cal, ok := r.calendars[id]
	if !ok || !cal.Remove(bookingID) {
		return domainavailability.ErrClaimNotFound
	}
	cal.Version++
	return nil
}

type blockedKey struct {
	listing domainlistings.ListingID
	uid     string
}

// BlockedDateRepository stores blocked dates keyed by (listing, event uid).
type BlockedDateRepository struct {
	mu    sync.RWMutex
	items map[blockedKey]domainavailability.BlockedDate
}

func NewBlockedDateRepository() *BlockedDateRepository {
	return &BlockedDateRepository{items: make(map[blockedKey]domainavailability.BlockedDate)}
}

func (r *BlockedDateRepository) Upsert(ctx context.Context, b domainavailability.BlockedDate) (bool, error) {
	if err := b.Validate(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := blockedKey{listing: b.ListingID, uid: b.EventUID}
	current, ok := r.items[key]
	if ok {
		current.Origin = b.Origin
		current.CalendarID = b.CalendarID
		current.Range = b.Range
		current.Summary = b.Summary
		current.Deleted = false
		current.DeletedAt = nil
		current.UpdatedAt = b.UpdatedAt
		r.items[key] = current
		return false, nil
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Deleted = false
	b.DeletedAt = nil
	r.items[key] = b
	return true, nil
}

func (r *BlockedDateRepository) Active(ctx context.Context, id domainlistings.ListingID) ([]domainavailability.BlockedDate, error) {
	return r.filter(func(b domainavailability.BlockedDate) bool {
		return b.ListingID == id && b.Active()
	}), nil
}

func (r *BlockedDateRepository) ActiveOverlapping(ctx context.Context, id domainlistings.ListingID, dr daterange.DateRange) ([]domainavailability.BlockedDate, error) {
	return r.filter(func(b domainavailability.BlockedDate) bool {
		return b.ListingID == id && b.Active() && b.Range.Overlaps(dr)
	}), nil
}

// ByCalendar returns every entry of a calendar, soft-deleted ones included.
func (r *BlockedDateRepository) ByCalendar(ctx context.Context, calendarID string) ([]domainavailability.BlockedDate, error) {
	return r.filter(func(b domainavailability.BlockedDate) bool { return b.CalendarID == calendarID }), nil
}

func (r *BlockedDateRepository) SoftDelete(ctx context.Context, id domainlistings.ListingID, uid string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := blockedKey{listing: id, uid: uid}
	b, ok := r.items[key]
	if !ok || b.Deleted {
		return domainavailability.ErrBlockedDateNotFound
	}
	r.items[key] = markDeleted(b, now)
	return nil
}

func (r *BlockedDateRepository) SoftDeleteMissing(ctx context.Context, calendarID string, keep []string, now time.Time) (int, error) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, uid := range keep {
		keepSet[uid] = struct{}{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, b := range r.items {
		if b.CalendarID != calendarID || b.Deleted {
			continue
		}
		if _, ok := keepSet[b.EventUID]; ok {
			continue
		}
		r.items[key] = markDeleted(b, now)
		removed++
	}
	return removed, nil
}

func (r *BlockedDateRepository) filter(keep func(domainavailability.BlockedDate) bool) []domainavailability.BlockedDate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domainavailability.BlockedDate, 0)
	for _, b := range r.items {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.CheckIn.Equal(out[j].Range.CheckIn) {
			return out[i].EventUID < out[j].EventUID
		}
		return out[i].Range.CheckIn.Before(out[j].Range.CheckIn)
	})
	return out
}

func markDeleted(b domainavailability.BlockedDate, now time.Time) domainavailability.BlockedDate {
	at := now.UTC()
	b.Deleted = true
	b.DeletedAt = &at
	b.UpdatedAt = at
	return b
}

var (
	_ domainavailability.ClaimRepository       = (*ClaimRepository)(nil)
	_ domainavailability.BlockedDateRepository = (*BlockedDateRepository)(nil)
)
