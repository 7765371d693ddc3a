// Package format renders money, dates and balance deltas for display.
package format

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jask/ledgerview/internal/ledger"
)

type style struct {
	tag      language.Tag
	symbol   string
	decimals int32
	sep      string
	suffix   bool
}

var styles = map[ledger.Currency]style{
	ledger.USD: {tag: language.AmericanEnglish, symbol: "$", decimals: 2, sep: "."},
	ledger.EUR: {tag: language.German, symbol: "€", decimals: 2, sep: ",", suffix: true},
	ledger.GBP: {tag: language.BritishEnglish, symbol: "£", decimals: 2, sep: "."},
	ledger.JPY: {tag: language.Japanese, symbol: "¥", decimals: 0, sep: "."},
}

// Symbol returns the display symbol for c, or the code itself when unknown.
func Symbol(c ledger.Currency) string {
	if s, ok := styles[c]; ok {
		return s.symbol
	}
	return string(c)
}

// Decimals returns the number of minor digits shown for c.
func Decimals(c ledger.Currency) int32 {
	if s, ok := styles[c]; ok {
		return s.decimals
	}
	return 2
}

// Money formats d in c's home locale: $1,234.56, 1.234,56 €, £1,234.56, ¥1,235.
func Money(d decimal.Decimal, c ledger.Currency) string {
	s, ok := styles[c]
	if !ok {
		return d.StringFixed(2) + " " + string(c)
	}
	sign := ""
	if d.Round(s.decimals).IsNegative() {
		sign = "-"
	}
	body := number(d.Abs(), s)
	if s.suffix {
		return sign + body + " " + s.symbol
	}
	return sign + s.symbol + body
}

// Delta formats a signed change, always carrying a sign: +$10.00, -¥500.
func Delta(d decimal.Decimal, c ledger.Currency) string {
	if d.Round(Decimals(c)).IsZero() {
		return Money(decimal.Zero, c)
	}
	if d.IsPositive() {
		return "+" + Money(d, c)
	}
	return Money(d, c)
}

// Amount formats d for an input field: fixed decimals, no grouping or symbol.
func Amount(d decimal.Decimal, c ledger.Currency) string {
	return d.StringFixed(Decimals(c))
}

// number groups the integer part with the locale printer and appends the
// fixed fraction. d must be non-negative.
func number(d decimal.Decimal, s style) string {
	fixed := d.StringFixed(s.decimals)
	intPart, frac, _ := strings.Cut(fixed, ".")
	n, err := decimal.NewFromString(intPart)
	if err != nil {
		return fixed
	}
	p := message.NewPrinter(s.tag)
	out := p.Sprintf("%d", n.IntPart())
	if frac != "" {
		out += s.sep + frac
	}
	return out
}

// Date layouts used across the UI.
const (
	DateLayout     = "Jan 2, 2006"
	DateTimeLayout = "Jan 2, 2006 15:04"
	InputLayout    = "2006-01-02"
)

// Date formats t with layout, or DateLayout when layout is empty. Zero times render as "-".
func Date(t time.Time, layout string) string {
	if t.IsZero() {
		return "-"
	}
	if layout == "" {
		layout = DateLayout
	}
	return t.Local().Format(layout)
}

// DateTime formats t with DateTimeLayout.
func DateTime(t time.Time) string { return Date(t, DateTimeLayout) }

// ParseDate reads a YYYY-MM-DD input in local time. Empty input yields the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(InputLayout, s, time.Local)
}

// EndOfDay moves t to the last nanosecond of its day, for inclusive end filters.
func EndOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
