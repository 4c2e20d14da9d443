package service

import (
	"math"
	"time"
)

// HoursBetween returns the signed, fractional number of hours from start to end.
func HoursBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours()
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Cost is the price of parking from start to end at hourlyRate.
// Callers validate end > start.
func Cost(start, end time.Time, hourlyRate float64) float64 {
	return Round2(HoursBetween(start, end) * hourlyRate)
}
