package projector

import (
	"strings"

	"github.com/shopspring/decimal"
)

var separators = strings.NewReplacer(".", "", ",", "", " ", "", "\u00a0", "")

// ParseAmount reads a money value as typed in the source sheets, where
// both "." and "," are digit-group separators. An optional "Rp" prefix is
// ignored.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	if len(s) > 2 && strings.EqualFold(s[:2], "rp") {
		s = s[2:]
	}
	d, err := decimal.NewFromString(separators.Replace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
