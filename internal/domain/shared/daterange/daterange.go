package daterange

import (
	"errors"
	"math"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
)

const day = 24 * time.Hour

// DateRange is the half-open night interval [CheckIn, CheckOut).
type DateRange struct {
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: checkIn.UTC(), CheckOut: checkOut.UTC()}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

// Nights counts started days in the range, so a partial trailing day is a night.
func (dr DateRange) Nights() int {
	if !dr.CheckOut.After(dr.CheckIn) {
		return 0
	}
	return int(math.Ceil(dr.CheckOut.Sub(dr.CheckIn).Hours() / 24))
}

// Night returns the start instant of the i-th night.
func (dr DateRange) Night(i int) time.Time {
	return dr.CheckIn.Add(time.Duration(i) * day)
}

// Overlaps reports whether two half-open ranges share any instant. Touching
// boundaries (checkout == next checkin) do not overlap.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) Contains(other DateRange) bool {
	return !other.CheckIn.Before(dr.CheckIn) && !other.CheckOut.After(dr.CheckOut)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = t.UTC()
	return !t.Before(dr.CheckIn) && t.Before(dr.CheckOut)
}

func (dr DateRange) Equal(other DateRange) bool {
	return dr.CheckIn.Equal(other.CheckIn) && dr.CheckOut.Equal(other.CheckOut)
}

// Remainders returns the parts of dr left uncovered by cut: at most one
// fragment before cut and one after it.
func (dr DateRange) Remainders(cut DateRange) (before, after *DateRange) {
	if !dr.Overlaps(cut) {
		whole := dr
		return &whole, nil
	}
	if dr.CheckIn.Before(cut.CheckIn) {
		before = &DateRange{CheckIn: dr.CheckIn, CheckOut: cut.CheckIn}
	}
	if dr.CheckOut.After(cut.CheckOut) {
		after = &DateRange{CheckIn: cut.CheckOut, CheckOut: dr.CheckOut}
	}
	return before, after
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
