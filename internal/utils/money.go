package utils

import "math"

// RoundCents rounds a monetary amount to two decimal places.
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// MinorUnits converts a decimal amount to integer minor units (cents).
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
