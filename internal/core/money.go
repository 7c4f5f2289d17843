package core

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Money formats amounts for display in one currency and locale.
type Money struct {
	Code    string
	unit    currency.Unit
	tag     language.Tag
	printer *message.Printer
}

// NewMoney builds a formatter. Unknown currency codes fall back to EUR and
// unparseable locales to French, matching the ledger's original audience.
func NewMoney(code, locale string) Money {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.EUR
		code = "EUR"
	}
	tag, err := language.Parse(strings.Replace(strings.TrimSpace(locale), "_", "-", 1))
	if err != nil {
		tag = language.French
	}
	return Money{
		Code:    code,
		unit:    unit,
		tag:     tag,
		printer: message.NewPrinter(tag),
	}
}

// Number renders an amount with exactly two decimals in the locale's
// separators, without a currency symbol.
func (m Money) Number(amount float64) string {
	return m.printer.Sprint(number.Decimal(amount, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// Format renders an amount with two decimals and the currency symbol. Symbol
// placement follows the locale's language: English puts it first.
func (m Money) Format(amount float64) string {
	symbol := m.printer.Sprint(currency.NarrowSymbol(m.unit))
	base, _ := m.tag.Base()
	if base.String() == "en" {
		return symbol + m.Number(amount)
	}
	return m.Number(amount) + " " + symbol
}
