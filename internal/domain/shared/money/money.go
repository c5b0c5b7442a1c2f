package money

import (
	"errors"
	"math"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
)

// Money keeps amounts as integer billing units of the currency. Every line item
// is rounded to a whole unit when it is computed, never only at the end.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func New(amount int64, currency string) (Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	return Money{Amount: amount, Currency: code}, nil
}

// Must is New for fixtures; it panics on a bad currency.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func Zero(currency string) Money {
	return Money{Currency: strings.ToUpper(currency)}
}

func (m Money) Add(other Money) (Money, error) {
	return m.combine(other, other.Amount)
}

func (m Money) Sub(other Money) (Money, error) {
	return m.combine(other, -other.Amount)
}

func (m Money) Multiply(times int64) Money {
	m.Amount *= times
	return m
}

// Percent returns percent% of the amount rounded half away from zero.
func (m Money) Percent(percent float64) Money {
	m.Amount = RoundUnits(float64(m.Amount) * percent / 100)
	return m
}

func (m Money) IsZero() bool { return m.Amount == 0 }

// Sum adds values in order; all of them must share one currency.
func Sum(values ...Money) (Money, error) {
	var total Money
	for i, v := range values {
		if i == 0 {
			total = v
			continue
		}
		var err error
		if total, err = total.Add(v); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

func RoundUnits(v float64) int64 {
	return int64(math.Round(v))
}

func (m Money) combine(other Money, delta int64) (Money, error) {
	switch {
	case m.Currency == "" || other.Currency == "":
		return Money{}, ErrInvalidCurrency
	case m.Currency != other.Currency:
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount + delta, Currency: m.Currency}, nil
}
