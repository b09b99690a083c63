// Package portfolio values personal holdings against live prices.
//
// Amounts are kept as decimals so that repeated edits never accumulate
// float rounding; prices arrive as floats from the upstream API and are
// converted once per valuation.
package portfolio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for amounts that are not decimal numbers.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNegativeAmount is returned for holdings below zero.
	ErrNegativeAmount = errors.New("amount cannot be negative")
)

// Holdings maps coin id to the amount held.
type Holdings map[string]decimal.Decimal

// ParseAmount parses a holding amount. Empty input is zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w %q: %v", ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return d, nil
}

// FromStrings builds Holdings from persisted decimal strings, skipping
// zero amounts.
func FromStrings(raw map[string]string) (Holdings, error) {
	h := make(Holdings, len(raw))
	for id, s := range raw {
		d, err := ParseAmount(s)
		if err != nil {
			return nil, fmt.Errorf("holding %s: %w", id, err)
		}
		if !d.IsZero() {
			h[id] = d
		}
	}
	return h, nil
}

// Strings returns the holdings as decimal strings for persistence.
func (h Holdings) Strings() map[string]string {
	out := make(map[string]string, len(h))
	for id, d := range h {
		out[id] = d.String()
	}
	return out
}

// Set returns a copy of h with id set to amount. A zero amount removes id.
func (h Holdings) Set(id string, amount decimal.Decimal) Holdings {
	out := make(Holdings, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	if amount.IsZero() {
		delete(out, id)
	} else {
		out[id] = amount
	}
	return out
}

// Value returns amount x price.
func Value(amount decimal.Decimal, price float64) decimal.Decimal {
	return amount.Mul(decimal.NewFromFloat(price))
}

// Equity sums the value of every holding with a known price. prices maps
// coin id to its price in a single currency; coins without a price are
// skipped.
func Equity(h Holdings, prices map[string]float64) decimal.Decimal {
	total := decimal.Zero
	for id, amount := range h {
		price, ok := prices[id]
		if !ok {
			continue
		}
		total = total.Add(Value(amount, price))
	}
	return total
}

// Format renders amount in currency using the currency's symbol and
// fraction digits. Unknown currencies fall back to two decimals and the
// upper-cased code.
func Format(amount decimal.Decimal, currency string) string {
	code := strings.ToUpper(currency)
	cur := money.GetCurrency(code)
	if cur == nil {
		return amount.StringFixed(2) + " " + code
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return cur.Formatter().Format(minor)
}

// subUnitDigits is how many decimals prices below one unit keep.
const subUnitDigits = 6

// FormatPrice renders a unit price. Prices of one unit or more format like
// [Format]; smaller positive prices keep six decimals so sub-cent coins do
// not collapse to zero.
func FormatPrice(price decimal.Decimal, currency string) string {
	if price.IsZero() || price.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Format(price, currency)
	}
	code := strings.ToUpper(currency)
	digits := price.StringFixed(subUnitDigits)
	cur := money.GetCurrency(code)
	if cur == nil {
		return digits + " " + code
	}
	digits = strings.Replace(digits, ".", cur.Decimal, 1)
	return strings.NewReplacer("1", digits, "$", cur.Grapheme).Replace(cur.Template)
}

// Symbol returns the currency symbol, or the upper-cased code if unknown.
func Symbol(currency string) string {
	code := strings.ToUpper(currency)
	if cur := money.GetCurrency(code); cur != nil && cur.Grapheme != "" {
		return cur.Grapheme
	}
	return code
}
