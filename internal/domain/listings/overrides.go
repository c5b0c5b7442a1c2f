package listings

import (
	"sort"
	"time"

	"staybook/internal/domain/shared/daterange"
)

// OverridePeriod is a host-declared date range with an explicit availability
// flag and an optional special nightly price.
type OverridePeriod struct {
	Range        daterange.DateRange
	Available    bool
	SpecialPrice *int64
}

func (p OverridePeriod) clone() OverridePeriod {
	out := p
	if p.SpecialPrice != nil {
		v := *p.SpecialPrice
		out.SpecialPrice = &v
	}
	return out
}

// NormalizeOverrides validates every range, sorts by start and rejects overlaps.
func NormalizeOverrides(periods []OverridePeriod) ([]OverridePeriod, error) {
	out := make([]OverridePeriod, 0, len(periods))
	for _, p := range periods {
		if err := p.Range.Validate(); err != nil {
			return nil, err
		}
		out = append(out, p.clone())
	}
	sortPeriods(out)
	for i := 1; i < len(out); i++ {
		if out[i-1].Range.Overlaps(out[i].Range) {
			return nil, ErrOverridesOverlap
		}
	}
	return out, nil
}

// SplitForBlock marks r unavailable. Every period overlapping r is cut into the
// fragments before and after r, which keep their flag and special price, and a
// single unavailable period covering exactly r is inserted. The special price of
// a period that fully contains r is carried onto the blocked period so that a
// later release restores the original pricing. Splitting an already blocked
// range again yields the same periods.
func SplitForBlock(periods []OverridePeriod, r daterange.DateRange) []OverridePeriod {
	out := make([]OverridePeriod, 0, len(periods)+2)
	blocked := OverridePeriod{Range: r, Available: false}
	for _, p := range periods {
		if !p.Range.Overlaps(r) {
			out = append(out, p.clone())
			continue
		}
		if p.Range.Contains(r) && p.SpecialPrice != nil {
			blocked.SpecialPrice = p.clone().SpecialPrice
		}
		before, after := p.Range.Remainders(r)
		if before != nil {
			frag := p.clone()
			frag.Range = *before
			out = append(out, frag)
		}
		if after != nil {
			frag := p.clone()
			frag.Range = *after
			out = append(out, frag)
		}
	}
	out = append(out, blocked)
	sortPeriods(out)
	return out
}

// RestoreBlocked flips the unavailable period whose bounds equal r back to
// available. Adjacent fragments are not merged back together.
func RestoreBlocked(periods []OverridePeriod, r daterange.DateRange) ([]OverridePeriod, bool) {
	out := make([]OverridePeriod, 0, len(periods))
	found := false
	for _, p := range periods {
		c := p.clone()
		if !found && !c.Available && c.Range.Equal(r) {
			c.Available = true
			found = true
		}
		out = append(out, c)
	}
	return out, found
}

// SpecialPriceOn returns the special nightly price of the period covering t.
func SpecialPriceOn(periods []OverridePeriod, t time.Time) (int64, bool) {
	for _, p := range periods {
		if p.SpecialPrice != nil && p.Range.ContainsDate(t) {
			return *p.SpecialPrice, true
		}
	}
	return 0, false
}

func sortPeriods(periods []OverridePeriod) {
	sort.SliceStable(periods, func(i, j int) bool {
		return periods[i].Range.CheckIn.Before(periods[j].Range.CheckIn)
	})
}
