package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	MinutesPerDay = 24 * 60
	SecondsPerDay = 24 * 60 * 60

	// Returned by TimeToMinutes for malformed input, so that such
	// entries sort last and never compare as being in the past.
	MinutesInfinity = math.MaxInt
)

var ErrMalformedTime = errors.New("malformed time")

// Formats seconds since midnight as HH:MM. Seconds are truncated,
// not rounded. Offsets past 24h wrap around to the next day's wall
// clock.
func SecondsToTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	seconds %= SecondsPerDay
	h := seconds / 3600
	m := (seconds % 3600) / 60
	return fmt.Sprintf("%02d:%02d", h, m)
}

// Parses an HH:MM string into minutes since midnight.
func ParseClock(hhmm string) (int, error) {
	if len(hhmm) != 5 || hhmm[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, hhmm)
	}
	h, errH := strconv.Atoi(hhmm[0:2])
	m, errM := strconv.Atoi(hhmm[3:5])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, hhmm)
	}
	return h*60 + m, nil
}

// Minutes since midnight for an HH:MM string, or MinutesInfinity if
// the string can't be parsed.
func TimeToMinutes(hhmm string) int {
	m, err := ParseClock(hhmm)
	if err != nil {
		return MinutesInfinity
	}
	return m
}

// Minutes since local midnight at the given instant.
func NowMinutes(now time.Time) int {
	return now.Hour()*60 + now.Minute()
}

// The given instant formatted as HH:MM.
func NowFormatted(now time.Time) string {
	return now.Format("15:04")
}
