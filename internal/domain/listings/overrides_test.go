package listings

import (
	"errors"
	"testing"
	"time"

	"staybook/internal/domain/shared/daterange"
)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func span(from, to int) daterange.DateRange {
	return daterange.DateRange{CheckIn: day(from), CheckOut: day(to)}
}

func price(v int64) *int64 { return &v }

func TestSplitForBlockCutsSpanningPeriodInThree(t *testing.T) {
	periods := []OverridePeriod{{Range: span(1, 31), Available: true, SpecialPrice: price(150)}}

	got := SplitForBlock(periods, span(10, 13))

	if len(got) != 3 {
		t.Fatalf("expected 3 periods, got %d: %+v", len(got), got)
	}
	want := []struct {
		r         daterange.DateRange
		available bool
	}{
		{span(1, 10), true},
		{span(10, 13), false},
		{span(13, 31), true},
	}
	for i, w := range want {
		if !got[i].Range.Equal(w.r) || got[i].Available != w.available {
			t.Fatalf("period %d = %+v, want range %+v available=%v", i, got[i], w.r, w.available)
		}
		if got[i].SpecialPrice == nil || *got[i].SpecialPrice != 150 {
			t.Fatalf("period %d lost its special price", i)
		}
	}
	if _, err := NormalizeOverrides(got); err != nil {
		t.Fatalf("split produced overlapping periods: %v", err)
	}
}

func TestSplitForBlockWithoutOverrideAddsBlockedPeriod(t *testing.T) {
	got := SplitForBlock(nil, span(4, 6))
	if len(got) != 1 || got[0].Available || !got[0].Range.Equal(span(4, 6)) {
		t.Fatalf("unexpected periods %+v", got)
	}
	if got[0].SpecialPrice != nil {
		t.Fatalf("blocked period must not invent a special price")
	}
}

func TestSplitForBlockIsIdempotent(t *testing.T) {
	periods := []OverridePeriod{{Range: span(1, 20), Available: true}}
	once := SplitForBlock(periods, span(5, 8))
	twice := SplitForBlock(once, span(5, 8))
	if len(once) != len(twice) {
		t.Fatalf("second split changed period count: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if !once[i].Range.Equal(twice[i].Range) || once[i].Available != twice[i].Available {
			t.Fatalf("period %d differs after second split", i)
		}
	}
}

func TestRestoreBlockedRequiresExactBounds(t *testing.T) {
	periods := SplitForBlock([]OverridePeriod{{Range: span(1, 20), Available: true}}, span(5, 8))

	if _, found := RestoreBlocked(periods, span(5, 9)); found {
		t.Fatalf("restore must not match a different range")
	}

	restored, found := RestoreBlocked(periods, span(5, 8))
	if !found {
		t.Fatalf("expected blocked period to be restored")
	}
	if len(restored) != 3 {
		t.Fatalf("fragments must stay split, got %d periods", len(restored))
	}
	for _, p := range restored {
		if !p.Available {
			t.Fatalf("period %+v still unavailable", p.Range)
		}
	}
}

func TestNormalizeOverridesRejectsOverlap(t *testing.T) {
	_, err := NormalizeOverrides([]OverridePeriod{
		{Range: span(10, 15), Available: true},
		{Range: span(1, 11), Available: false},
	})
	if !errors.Is(err, ErrOverridesOverlap) {
		t.Fatalf("expected ErrOverridesOverlap, got %v", err)
	}

	sorted, err := NormalizeOverrides([]OverridePeriod{
		{Range: span(10, 15), Available: true},
		{Range: span(1, 10), Available: false},
	})
	if err != nil {
		t.Fatalf("touching periods must be accepted: %v", err)
	}
	if !sorted[0].Range.Equal(span(1, 10)) {
		t.Fatalf("periods not sorted by start: %+v", sorted)
	}
}

func TestPetPolicyCheck(t *testing.T) {
	policy := PetPolicy{Allowed: true, AllowedTypes: []string{"dog"}, MaxPets: 2}
	cases := []struct {
		name   string
		policy PetPolicy
		count  int
		types  []string
		want   error
	}{
		{name: "no pets always fine", policy: PetPolicy{}, count: 0},
		{name: "pets disallowed", policy: PetPolicy{}, count: 1, types: []string{"dog"}, want: ErrPetsNotAllowed},
		{name: "over max", policy: policy, count: 3, types: []string{"dog", "dog", "dog"}, want: ErrTooManyPets},
		{name: "type not allowed", policy: policy, count: 1, types: []string{"Cat"}, want: ErrPetTypeNotAllowed},
		{name: "type allowed case-insensitive", policy: policy, count: 1, types: []string{"Dog"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.normalized().Check(tc.count, tc.types)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Check = %v, want %v", err, tc.want)
			}
		})
	}
}
