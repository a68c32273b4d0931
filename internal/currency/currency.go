// Package currency holds the supported currency set and the per-currency
// decimal precision used for rounding stored amounts.
package currency

import (
	"fmt"
	"os"
	"sort"
	"strings"

	apperrors "orusfx/internal/errors"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Currency describes one supported code. Rate is the value of one unit of the
// table's base currency expressed in this currency; it seeds the static rate source.
type Currency struct {
	Code      string `yaml:"code"`
	Precision int32  `yaml:"precision"`
	Rate      string `yaml:"rate,omitempty"`
}

type tableFile struct {
	Base       string     `yaml:"base"`
	Currencies []Currency `yaml:"currencies"`
}

// Table is an immutable lookup of supported currencies.
type Table struct {
	base   string
	byCode map[string]Currency
}

var defaultCurrencies = []Currency{
	{Code: "USD", Precision: 2, Rate: "1"},
	{Code: "EUR", Precision: 2, Rate: "0.92"},
	{Code: "GBP", Precision: 2, Rate: "0.79"},
	{Code: "INR", Precision: 2, Rate: "83.5"},
	{Code: "JPY", Precision: 0, Rate: "151.2"},
	{Code: "KES", Precision: 2, Rate: "129.5"},
	{Code: "NGN", Precision: 2, Rate: "1550"},
	{Code: "AED", Precision: 2, Rate: "3.6725"},
}

// Default returns the built-in table with USD as base.
func Default() *Table {
	t, err := NewTable("USD", defaultCurrencies)
	if err != nil {
		panic(err)
	}
	return t
}

// NewTable validates and indexes the given currencies.
func NewTable(base string, currencies []Currency) (*Table, error) {
	t := &Table{
		base:   strings.ToUpper(strings.TrimSpace(base)),
		byCode: make(map[string]Currency, len(currencies)),
	}
	for _, c := range currencies {
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if len(code) != 3 {
			return nil, fmt.Errorf("currency %q: code must be 3 characters", c.Code)
		}
		if c.Precision < 0 || c.Precision > 8 {
			return nil, fmt.Errorf("currency %s: precision %d out of range", code, c.Precision)
		}
		if _, dup := t.byCode[code]; dup {
			return nil, fmt.Errorf("currency %s listed twice", code)
		}
		c.Code = code
		t.byCode[code] = c
	}
	if _, ok := t.byCode[t.base]; !ok {
		return nil, fmt.Errorf("base currency %s is not in the table", t.base)
	}
	return t, nil
}

// LoadFile reads a YAML currency table.
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read currency table: %w", err)
	}
	var f tableFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse currency table: %w", err)
	}
	return NewTable(f.Base, f.Currencies)
}

// Base returns the base currency code.
func (t *Table) Base() string { return t.base }

// Normalize upper-cases and trims code and checks it is supported.
func (t *Table) Normalize(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if _, ok := t.byCode[c]; !ok {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidCurrency, code)
	}
	return c, nil
}

func (t *Table) Supported(code string) bool {
	_, ok := t.byCode[code]
	return ok
}

// Precision returns the number of decimal places for code, 2 if unknown.
func (t *Table) Precision(code string) int32 {
	if c, ok := t.byCode[code]; ok {
		return c.Precision
	}
	return 2
}

// Round rounds amount half-to-even to the precision of code.
func (t *Table) Round(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.RoundBank(t.Precision(code))
}

// Exact reports whether amount fits the precision of code without rounding.
func (t *Table) Exact(amount decimal.Decimal, code string) bool {
	return amount.Equal(t.Round(amount, code))
}

// Codes returns the supported codes sorted.
func (t *Table) Codes() []string {
	out := make([]string, 0, len(t.byCode))
	for code := range t.byCode {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// StaticRates returns the configured base rates, skipping currencies without one.
func (t *Table) StaticRates() (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal, len(t.byCode))
	for code, c := range t.byCode {
		if c.Rate == "" {
			continue
		}
		r, err := decimal.NewFromString(c.Rate)
		if err != nil {
			return nil, fmt.Errorf("currency %s: bad rate %q: %w", code, c.Rate, err)
		}
		rates[code] = r
	}
	return rates, nil
}
