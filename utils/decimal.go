package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers, matching the original clients.
	decimal.MarshalJSONWithoutQuotes = true
}

// Amount is a money value that accepts JSON numbers as well as user-formatted
// strings such as "50000", "50,000" or "$ 50,000.50".
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) *Amount {
	return &Amount{Decimal: d}
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		a.Decimal = decimal.Zero
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := ParseAmount(s)
		if err != nil {
			return err
		}
		a.Decimal = d
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("invalid amount %s", string(b))
	}
	a.Decimal = d
	return nil
}

// ParseAmount strips thousands separators, a leading currency symbol and
// surrounding whitespace; what remains must be a plain decimal number.
func ParseAmount(value string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimSpace(strings.TrimLeft(s, "$€£"))
	if !neg && strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	}
	if s == "" || s[0] == '-' || s[0] == '+' {
		return decimal.Zero, fmt.Errorf("invalid amount %q", value)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}
