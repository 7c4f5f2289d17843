// Package core provides the subscription ledger domain.
//
// This file normalizes textual prices. Store cells carry prices written by
// hand, by older revisions of the app and by spreadsheet locale formatting,
// so the parser accepts currency symbols, stray whitespace and either
// separator. ParsePrice reports failures; NormalizePrice collapses them to 0.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// PriceResult is the outcome of parsing a price. Err is nil on success.
type PriceResult struct {
	Value float64
	Err   error
}

// OK reports whether the price parsed.
func (r PriceResult) OK() bool {
	return r.Err == nil
}

// OrZero returns the parsed value, or 0 when parsing failed.
func (r PriceResult) OrZero() float64 {
	if r.Err != nil {
		return 0
	}
	return r.Value
}

var currencySymbols = []string{"€", "$", "EUR", "USD"}

// ParsePrice converts a raw price such as "2,99", "$2.99" or " 2.99 " into a
// non-negative amount.
//
// When both separators appear the last one is the decimal separator and the
// other is digit grouping ("1.234,56", "1,234.56"). A single comma is a
// decimal separator; repeated occurrences of one separator are grouping.
func ParsePrice(raw string) PriceResult {
	s := cleanPrice(raw)
	if s == "" {
		if strings.TrimSpace(raw) == "" {
			return PriceResult{Err: ErrEmptyPrice}
		}
		return PriceResult{Err: fmt.Errorf("%w: %q", ErrInvalidPrice, raw)}
	}
	s = normalizeSeparators(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return PriceResult{Err: fmt.Errorf("%w: %q", ErrInvalidPrice, raw)}
	}
	if d.IsNegative() {
		return PriceResult{Err: fmt.Errorf("%w: %q", ErrNegativePrice, raw)}
	}
	// Exponent forms such as "1e400" overflow to +Inf, which can be neither
	// summed nor stored back as text.
	v, _ := d.Float64()
	if !finite(v) {
		return PriceResult{Err: fmt.Errorf("%w: %q out of range", ErrInvalidPrice, raw)}
	}
	return PriceResult{Value: v}
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// NormalizePrice is the lenient form of ParsePrice: anything unparseable is 0.
func NormalizePrice(raw string) float64 {
	return ParsePrice(raw).OrZero()
}

// FormatPrice renders an amount in the canonical stored form: period as
// decimal separator, no grouping, shortest text that parses back exactly.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func cleanPrice(raw string) string {
	s := raw
	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	// Drops ASCII spaces as well as the no-break spaces used for grouping
	// in French number formatting.
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastDot >= 0 && strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}
