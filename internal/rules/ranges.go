package rules

import "strings"

// VitalRange flags values outside (Min, Max) for key paths containing one of
// the hints. Bounds are inclusive: a value exactly at Min or Max is in range.
type VitalRange struct {
	Hints []string
	Min   float64
	Max   float64
}

// VitalRanges are placeholder clinical heuristics keyed on key-path
// substrings, checked in order (first hint match wins). These are not
// validated medical ranges; treat them as configurable constants and do not
// tighten them without domain sign-off.
var VitalRanges = []VitalRange{
	{Hints: []string{"sys", "sbp"}, Min: 50, Max: 250},   // systolic BP
	{Hints: []string{"dia", "dbp"}, Min: 30, Max: 150},   // diastolic BP
	{Hints: []string{"hr", "pulse"}, Min: 30, Max: 220},  // heart rate
	{Hints: []string{"temp"}, Min: 34, Max: 43},          // temperature, Celsius
	{Hints: nil, Min: -1_000_000, Max: 1_000_000},        // generic sanity bound
}

// isOutOfRange applies the first matching field-aware range to a numeric
// signal. The trailing hint-less entry always matches, so every value gets
// at least the generic sanity check.
func isOutOfRange(keyPath string, value float64) bool {
	k := strings.ToLower(keyPath)
	for _, r := range VitalRanges {
		if len(r.Hints) == 0 {
			return value < r.Min || value > r.Max
		}
		for _, hint := range r.Hints {
			if strings.Contains(k, hint) {
				return value < r.Min || value > r.Max
			}
		}
	}
	return false
}
