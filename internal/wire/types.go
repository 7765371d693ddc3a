// Package wire holds the JSON shapes of the two backend contracts and their
// conversion to and from the canonical ledger schema.
//
// Variant A uses snake_case with entity_id/owner_id and treats deposits as
// account mutations. Variant B uses camelCase with id/accountId and treats
// deposits as transaction creation.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgerview/internal/ledger"
)

// Amount is a decimal that encodes as a bare JSON number and decodes from
// either a number or a quoted string.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d.
func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// Time decodes the timestamp layouts seen from both backends.
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// NewTime wraps t.
func NewTime(t time.Time) Time { return Time{Time: t} }

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}

func (t *Time) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}
	return fmt.Errorf("wire: unrecognised timestamp %q", s)
}

// ErrorBody is the structured error payload. Servers use detail; error and
// message are accepted as fallbacks.
type ErrorBody struct {
	Detail  Detail `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Text returns the most specific message in the body.
func (e ErrorBody) Text() string {
	switch {
	case e.Detail != "":
		return string(e.Detail)
	case e.Error != "":
		return e.Error
	}
	return e.Message
}

// Detail is a server error detail. Validation failures may send a list of
// {loc, msg} objects instead of a string; their messages are joined.
type Detail string

func (d *Detail) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = Detail(s)
		return nil
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(b, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		*d = Detail(strings.Join(msgs, "; "))
		return nil
	}
	*d = Detail(strings.TrimSpace(string(b)))
	return nil
}

// ParseTxType accepts either variant's spelling of a transaction type.
func ParseTxType(s string) (ledger.TxType, bool) {
	if t, ok := txTypeA[strings.ToLower(s)]; ok {
		return t, true
	}
	t, ok := txTypeB[strings.ToUpper(s)]
	return t, ok
}
