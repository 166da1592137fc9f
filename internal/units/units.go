// Package units converts raw route metrics into the values shown to the user.
package units

import (
	"math"
	"strconv"
)

// Kilometers is a distance with one fractional digit.
type Kilometers float64

// Minutes is a whole number of minutes.
type Minutes int64

// MetersToKm converts meters to kilometers rounded half-up to one decimal.
func MetersToKm(m float64) Kilometers {
	return Kilometers(roundHalfUp(m/100) / 10)
}

// SecondsToMin converts seconds to minutes rounded half-up to an integer.
// 30s is one minute, 90s is two.
func SecondsToMin(s float64) Minutes {
	return Minutes(roundHalfUp(s / 60))
}

// roundHalfUp rounds to the nearest integer, ties towards +Inf.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func (k Kilometers) String() string {
	return strconv.FormatFloat(float64(k), 'f', 1, 64)
}

func (m Minutes) String() string {
	return strconv.FormatInt(int64(m), 10)
}
