package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Amount is a non-negative decimal quantity used for prices, discounts and totals.
// The zero value is a valid zero amount. Every constructor clamps negative inputs
// to zero, so arithmetic on Amount never yields a negative value.
type Amount struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{}

// NewAmount wraps d, clamping negatives to zero.
func NewAmount(d decimal.Decimal) Amount {
	if d.IsNegative() {
		return Zero
	}
	return Amount{d: d}
}

// AmountFromInt returns an Amount for a whole number of currency units.
func AmountFromInt(v int64) Amount {
	return NewAmount(decimal.NewFromInt(v))
}

// MustParseAmount parses s and panics on malformed input. Intended for constants and tests.
func MustParseAmount(s string) Amount {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return NewAmount(d)
}

// ParseAmount converts a loosely typed catalog value into an Amount.
// Missing, malformed, non-finite and negative values all yield zero.
func ParseAmount(v any) Amount {
	switch t := v.(type) {
	case nil:
		return Zero
	case Amount:
		return t
	case decimal.Decimal:
		return NewAmount(t)
	case int:
		return AmountFromInt(int64(t))
	case int32:
		return AmountFromInt(int64(t))
	case int64:
		return AmountFromInt(t)
	case float32:
		return parseFloat(float64(t))
	case float64:
		return parseFloat(t)
	case json.Number:
		return parseString(t.String())
	case string:
		return parseString(t)
	default:
		return Zero
	}
}

func parseFloat(f float64) Amount {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Zero
	}
	return NewAmount(decimal.NewFromFloat(f))
}

func parseString(s string) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero
	}
	return NewAmount(d)
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal { return a.d }

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }

// Sub subtracts b, clamping at zero.
func (a Amount) Sub(b Amount) Amount { return NewAmount(a.d.Sub(b.d)) }

// MulInt multiplies by a non-negative integer; negative factors yield zero.
func (a Amount) MulInt(n int) Amount { return NewAmount(a.d.Mul(decimal.NewFromInt(int64(n)))) }

// Percent returns p percent of a.
func (a Amount) Percent(p Amount) Amount { return Amount{d: a.d.Mul(p.d).Div(hundred)} }

// Round rounds half away from zero to the given number of decimal places.
func (a Amount) Round(places int32) Amount { return Amount{d: a.d.Round(places)} }

func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.d.GreaterThanOrEqual(b.d) }
func (a Amount) IsZero() bool { return a.d.IsZero() }
func (a Amount) IsPositive() bool { return a.d.IsPositive() }
func (a Amount) String() string { return a.d.String() }
func (a Amount) StringFixed(places int32) string { return a.d.StringFixed(places) }

// MinorUnits converts the amount to the smallest currency unit (e.g. paise),
// rounding to the nearest unit.
func (a Amount) MinorUnits() int64 {
	return a.d.Mul(hundred).Round(0).IntPart()
}

// AmountFromMinorUnits is the inverse of MinorUnits.
func AmountFromMinorUnits(v int64) Amount {
	return NewAmount(decimal.New(v, -2))
}

// MarshalJSON encodes the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.d.String()), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null. Anything else,
// including negative numbers, decodes to zero instead of failing the document.
func (a *Amount) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		*a = Zero
		return nil
	}
	*a = ParseAmount(raw)
	return nil
}
