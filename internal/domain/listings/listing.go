package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/shared/money"
)

var (
	ErrListingNotFound   = errors.New("listings: not found")
	ErrGuestsLimit       = errors.New("listings: max guests must be at least 1 and not below min guests")
	ErrInvalidState      = errors.New("listings: invalid state transition")
	ErrTitleRequired     = errors.New("listings: title is required")
	ErrNightlyRate       = errors.New("listings: nightly price must be positive")
	ErrConcurrentUpdate  = errors.New("listings: concurrent update detected")
	ErrUnknownPolicy     = errors.New("listings: unknown cancellation policy")
	ErrOverridesOverlap  = errors.New("listings: availability override periods overlap")
	ErrOverrideNotFound  = errors.New("listings: no blocked override period matches the range")
	ErrNegativeCharge    = errors.New("listings: pet fee and deposit must be non-negative")
	ErrCurrencyInvalid   = errors.New("listings: currency must be a 3-letter code")
	ErrHostRequired      = errors.New("listings: host is required")
	ErrListingIDRequired = errors.New("listings: id is required")
)

type ListingID string
type HostID string

type ListingState string

const (
	ListingDraft     ListingState = "DRAFT"
	ListingActive    ListingState = "ACTIVE"
	ListingSuspended ListingState = "SUSPENDED"
)

type Address struct {
	Line1   string
	City    string
	Country string
}

type Listing struct {
	ID                 ListingID
	Host               HostID
	Title              string
	Description        string
	Address            Address
	Currency           string
	NightlyPrice       int64
	MinGuests          int
	MaxGuests          int
	PetPolicy          PetPolicy
	CancellationPolicy CancellationPolicy
	InstantBook        bool
	Overrides          []OverridePeriod
	State              ListingState
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	events.EventRecorder
}

type ListingRepository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	ListByHost(ctx context.Context, host HostID) ([]*Listing, error)
	ListIDs(ctx context.Context) ([]ListingID, error)
	// SetOverrides replaces the override periods only if the stored version still
	// equals expectedVersion.
	SetOverrides(ctx context.Context, id ListingID, expectedVersion int64, periods []OverridePeriod, now time.Time) error
	// ReleaseOverride flips the unavailable period exactly matching r back to
	// available as one targeted update.
	ReleaseOverride(ctx context.Context, id ListingID, r daterange.DateRange, now time.Time) error
}

// Details carries the host-editable attributes of a listing.
type Details struct {
	Title              string
	Description        string
	Address            Address
	Currency           string
	NightlyPrice       int64
	MinGuests          int
	MaxGuests          int
	PetPolicy          PetPolicy
	CancellationPolicy CancellationPolicy
	InstantBook        bool
}

func (d Details) validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrTitleRequired
	}
	if d.NightlyPrice <= 0 {
		return ErrNightlyRate
	}
	if len(strings.TrimSpace(d.Currency)) != 3 {
		return ErrCurrencyInvalid
	}
	if d.MaxGuests < 1 || d.MinGuests > d.MaxGuests {
		return ErrGuestsLimit
	}
	if d.PetPolicy.FeePerNight < 0 || d.PetPolicy.DepositPerPet < 0 {
		return ErrNegativeCharge
	}
	if !d.CancellationPolicy.Valid() {
		return ErrUnknownPolicy
	}
	return nil
}

func NewListing(id ListingID, host HostID, details Details, now time.Time) (*Listing, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, ErrListingIDRequired
	}
	if strings.TrimSpace(string(host)) == "" {
		return nil, ErrHostRequired
	}
	if err := details.validate(); err != nil {
		return nil, err
	}
	listing := &Listing{
		ID:        id,
		Host:      host,
		State:     ListingDraft,
		CreatedAt: now.UTC(),
	}
	listing.apply(details, now)
	listing.Record(ListingCreated{ListingID: listing.ID, HostID: listing.Host, At: listing.CreatedAt})
	return listing, nil
}

func (l *Listing) Update(details Details, now time.Time) error {
	if err := details.validate(); err != nil {
		return err
	}
	l.apply(details, now)
	l.Record(ListingUpdated{ListingID: l.ID, At: l.UpdatedAt})
	return nil
}

func (l *Listing) apply(d Details, now time.Time) {
	l.Title = strings.TrimSpace(d.Title)
	l.Description = strings.TrimSpace(d.Description)
	l.Address = d.Address
	l.Currency = strings.ToUpper(strings.TrimSpace(d.Currency))
	l.NightlyPrice = d.NightlyPrice
	l.MinGuests = d.MinGuests
	l.MaxGuests = d.MaxGuests
	l.PetPolicy = d.PetPolicy.normalized()
	l.CancellationPolicy = d.CancellationPolicy
	l.InstantBook = d.InstantBook
	l.UpdatedAt = now.UTC()
}

func (l *Listing) Activate(now time.Time) error {
	if l.State == ListingActive {
		return nil
	}
	l.State = ListingActive
	l.UpdatedAt = now.UTC()
	l.Record(ListingStateChanged{ListingID: l.ID, State: l.State, At: l.UpdatedAt})
	return nil
}

func (l *Listing) Suspend(now time.Time, reason string) error {
	if l.State != ListingActive {
		return ErrInvalidState
	}
	l.State = ListingSuspended
	l.UpdatedAt = now.UTC()
	l.Record(ListingStateChanged{ListingID: l.ID, State: l.State, Reason: reason, At: l.UpdatedAt})
	return nil
}

func (l *Listing) IsActive() bool {
	return l.State == ListingActive
}

// ReplaceOverrides swaps the host-declared override periods after checking that
// none of them overlap.
func (l *Listing) ReplaceOverrides(periods []OverridePeriod, now time.Time) error {
	sorted, err := NormalizeOverrides(periods)
	if err != nil {
		return err
	}
	l.Overrides = sorted
	l.UpdatedAt = now.UTC()
	l.Record(ListingUpdated{ListingID: l.ID, At: l.UpdatedAt})
	return nil
}

// NightlyPriceOn returns the effective nightly price for the night starting at t.
func (l *Listing) NightlyPriceOn(t time.Time) money.Money {
	if price, ok := SpecialPriceOn(l.Overrides, t); ok {
		return money.Money{Amount: price, Currency: l.Currency}
	}
	return money.Money{Amount: l.NightlyPrice, Currency: l.Currency}
}

// HasSpecialPricing reports whether any override period sets a nightly price.
func (l *Listing) HasSpecialPricing() bool {
	for _, p := range l.Overrides {
		if p.SpecialPrice != nil {
			return true
		}
	}
	return false
}
