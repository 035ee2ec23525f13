package transaction

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("amount must be a positive value with at most 2 decimal places")
	ErrAmountTooLarge  = errors.New("amount exceeds the maximum of 99999999.99")
	ErrInvalidCurrency = errors.New("currency must be a 3-letter uppercase code")
)

const amountScale = 2

// numeric(10,2) tops out just below 10^8.
var maxAmount = decimal.New(1, 8)

var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

type Amount struct {
	value decimal.Decimal
}

func NewAmount(d decimal.Decimal) (Amount, error) {
	if !d.IsPositive() {
		return Amount{}, ErrInvalidAmount
	}
	if !d.Round(amountScale).Equal(d) {
		return Amount{}, ErrInvalidAmount
	}
	if d.GreaterThanOrEqual(maxAmount) {
		return Amount{}, ErrAmountTooLarge
	}
	return Amount{value: d}, nil
}

func NewAmountFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, ErrInvalidAmount
	}
	return NewAmount(d)
}

func (a Amount) Value() decimal.Decimal { return a.value }

// String renders with the currency scale, e.g. "10.50".
func (a Amount) String() string { return a.value.StringFixed(amountScale) }

type Currency struct {
	value string
}

func NewCurrency(s string) (Currency, error) {
	if !currencyRegex.MatchString(s) {
		return Currency{}, ErrInvalidCurrency
	}
	return Currency{value: s}, nil
}

func (c Currency) Value() string { return c.value }
