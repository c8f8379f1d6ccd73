// Package dateparse parses relative and absolute date strings into cutoff
// timestamps for report filtering.
package dateparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseSince parses a date input string into the start of the matching day,
// for use as a "reports created since" cutoff. Uses the current time as the
// reference point.
//
// Supported formats:
//   - Exact dates: "2026-03-01"
//   - Relative ages: "7d", "2w", "1m" (that long ago)
//   - Day names: "monday", "tuesday", etc. (most recent occurrence)
//   - Keywords: "today", "yesterday", "last-week", "last-month"
func ParseSince(input string) (time.Time, error) {
	return ParseSinceFrom(input, time.Now())
}

// ParseSinceFrom parses a date input string relative to the given reference
// time. This variant enables deterministic testing with a fixed "now".
func ParseSinceFrom(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return time.Time{}, fmt.Errorf("empty date input")
	}

	// Exact date: YYYY-MM-DD
	if t, err := time.Parse("2006-01-02", input); err == nil {
		return t, nil
	}

	// Keywords
	switch input {
	case "today":
		return startOfDay(now), nil
	case "yesterday":
		return startOfDay(now.AddDate(0, 0, -1)), nil
	case "last-week":
		return startOfDay(now.AddDate(0, 0, -7)), nil
	case "last-month":
		return startOfDay(now.AddDate(0, -1, 0)), nil
	}

	// Relative ages: Nd, Nw, Nm
	if len(input) >= 2 {
		suffix := input[len(input)-1]
		numStr := input[:len(input)-1]
		n, err := strconv.Atoi(numStr)
		if err == nil && n >= 0 {
			switch suffix {
			case 'd':
				return startOfDay(now.AddDate(0, 0, -n)), nil
			case 'w':
				return startOfDay(now.AddDate(0, 0, -n*7)), nil
			case 'm':
				return startOfDay(now.AddDate(0, -n, 0)), nil
			default:
				return time.Time{}, fmt.Errorf("unknown relative unit %q in %q (use d, w, or m)", string(suffix), input)
			}
		}
	}

	// Day names: most recent occurrence of that weekday
	dayMap := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
	if target, ok := dayMap[input]; ok {
		daysBack := (int(now.Weekday()) - int(target) + 7) % 7
		if daysBack == 0 {
			daysBack = 7 // always step back to the previous occurrence
		}
		return startOfDay(now.AddDate(0, 0, -daysBack)), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %q", input)
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
