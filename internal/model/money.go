package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice converts a decimal price string ("99.90") into a decimal.
// Empty or malformed strings yield zero, matching how the store casts prices.
// Examples: "99.90" → 99.9, "" → 0, "abc" → 0
func ParsePrice(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseMinorUnits converts an amount expressed in minor units ("8990" with 2 minor digits)
// into a decimal in major units (89.90). The Store API reports all cart prices this way.
func ParseMinorUnits(s string, minorUnit int) decimal.Decimal {
	return ParsePrice(s).Shift(int32(-minorUnit))
}
