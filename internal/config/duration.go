package config

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	durationTermRe  = regexp.MustCompile(`(\d*\.?\d+)\s*(ms|s|m|h|d)`)
	durationShapeRe = regexp.MustCompile(`^(\d*\.?\d+\s*(ms|s|m|h|d)\s*)+$`)
)

var unitDurations = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
}

// ParseCompoundDuration parses lifetimes written as compound unit strings,
// e.g. "7d", "15m", or "1d 2h 30m". Units are ms, s, m, h, and d; values may
// be fractional and case does not matter. Malformed input yields zero rather
// than an error, so an unconfigured lifetime reads as "unknown".
func ParseCompoundDuration(value string) time.Duration {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" || !durationShapeRe.MatchString(trimmed) {
		return 0
	}

	var total time.Duration
	for _, match := range durationTermRe.FindAllStringSubmatch(trimmed, -1) {
		amount, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return 0
		}
		total += time.Duration(amount * float64(unitDurations[match[2]]))
	}
	return total
}
