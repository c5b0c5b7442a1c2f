package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

// ListingRepository keeps listings in memory. Saves are compare-and-swap on
// the listing version, like the mongo repository.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]*domainlistings.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{
		items: make(map[domainlistings.ListingID]*domainlistings.Listing),
	}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listing, ok := r.items[id]
	if !ok {
		return nil, domainlistings.ErrListingNotFound
	}
	return cloneListing(listing), nil
}

func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[listing.ID]
	stored := int64(0)
	if ok {
		stored = current.Version
	}
	if stored != listing.Version {
		return domainlistings.ErrConcurrentUpdate
	}
	listing.Version++
	r.items[listing.ID] = cloneListing(listing)
	return nil
}

func (r *ListingRepository) ListByHost(ctx context.Context, host domainlistings.HostID) ([]*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainlistings.Listing, 0)
	for _, l := range r.items {
		if l.Host == host {
			out = append(out, cloneListing(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *ListingRepository) ListIDs(ctx context.Context) ([]domainlistings.ListingID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]domainlistings.ListingID, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *ListingRepository) SetOverrides(ctx context.Context, id domainlistings.ListingID, expectedVersion int64, periods []domainlistings.OverridePeriod, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.items[id]
	if !ok {
		return domainlistings.ErrListingNotFound
	}
	if listing.Version != expectedVersion {
		return domainlistings.ErrConcurrentUpdate
	}
	next := cloneListing(listing)
	next.Overrides = cloneOverrides(periods)
	next.Version++
	next.UpdatedAt = now.UTC()
	r.items[id] = next
	return nil
}

func (r *ListingRepository) ReleaseOverride(ctx context.Context, id domainlistings.ListingID, dr daterange.DateRange, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.items[id]
	if !ok {
		return domainlistings.ErrListingNotFound
	}
	periods, found := domainlistings.RestoreBlocked(listing.Overrides, dr)
	if !found {
		return domainlistings.ErrOverrideNotFound
	}
	next := cloneListing(listing)
	next.Overrides = periods
	next.Version++
	next.UpdatedAt = now.UTC()
	r.items[id] = next
	return nil
}

func cloneListing(l *domainlistings.Listing) *domainlistings.Listing {
	out := &domainlistings.Listing{
		ID:                 l.ID,
		Host:               l.Host,
		Title:              l.Title,
		Description:        l.Description,
		Address:            l.Address,
		Currency:           l.Currency,
		NightlyPrice:       l.NightlyPrice,
		MinGuests:          l.MinGuests,
		MaxGuests:          l.MaxGuests,
		PetPolicy:          l.PetPolicy,
		CancellationPolicy: l.CancellationPolicy,
		InstantBook:        l.InstantBook,
		Overrides:          cloneOverrides(l.Overrides),
		State:              l.State,
		Version:            l.Version,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
	out.PetPolicy.AllowedTypes = append([]string(nil), l.PetPolicy.AllowedTypes...)
	return out
}

func cloneOverrides(periods []domainlistings.OverridePeriod) []domainlistings.OverridePeriod {
	out := make([]domainlistings.OverridePeriod, 0, len(periods))
	for _, p := range periods {
		c := p
		if p.SpecialPrice != nil {
			v := *p.SpecialPrice
			c.SpecialPrice = &v
		}
		out = append(out, c)
	}
	return out
}

var _ domainlistings.ListingRepository = (*ListingRepository)(nil)
