package domain

import (
	"fmt"
	"math"
)

// DollarsToCents converts a dollar amount to integer cents. Amounts with
// more than 2 decimal places are rejected rather than rounded, since the
// engine never rounds during matching. Uses math.Round to absorb
// floating-point representation artifacts (e.g. 1.10 * 1000 = 1099.999...).
func DollarsToCents(f float64) (int64, error) {
	scaled := math.Round(f * 1000)
	if math.Mod(scaled, 10) != 0 {
		return 0, fmt.Errorf("monetary values must have at most 2 decimal places")
	}
	return int64(math.Round(f * 100)), nil
}

// CentsToDollars converts integer cents back to a dollar amount for the
// JSON edge. All internal prices stay in cents.
func CentsToDollars(c int64) float64 {
	return float64(c) / 100.0
}
