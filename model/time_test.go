package model

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecondsToTime(t *testing.T) {
	for _, tc := range []struct {
		seconds  int
		expected string
	}{
		{0, "00:00"},
		{59, "00:00"},
		{60, "00:01"},
		{3599, "00:59"},
		{8*3600 + 5*60 + 59, "08:05"},
		{23*3600 + 59*60, "23:59"},
		{24*3600 + 10*60, "00:10"},
		{-5, "00:00"},
	} {
		assert.Equal(t, tc.expected, SecondsToTime(tc.seconds), "seconds=%d", tc.seconds)
	}
}

func TestTimeToMinutes(t *testing.T) {
	assert.Equal(t, 0, TimeToMinutes("00:00"))
	assert.Equal(t, 485, TimeToMinutes("08:05"))
	assert.Equal(t, 1439, TimeToMinutes("23:59"))

	for _, malformed := range []string{"", "xx:yy", "8:05", "08-05", "24:00", "12:60", "08:05:00"} {
		assert.Equal(t, MinutesInfinity, TimeToMinutes(malformed), "input=%q", malformed)
	}
}

func TestParseClockError(t *testing.T) {
	_, err := ParseClock("xx:yy")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedTime)
}

func TestNowSnapshots(t *testing.T) {
	now := time.Date(2024, 3, 1, 23, 50, 42, 0, time.UTC)
	assert.Equal(t, 23*60+50, NowMinutes(now))
	assert.Equal(t, "23:50", NowFormatted(now))
}

func TestScheduleSortKey(t *testing.T) {
	schedules := []Schedule{
		{Time: "xx:yy"},
		{Time: "07:30", NextDay: true},
		{Time: "23:55"},
		{Time: "08:00"},
	}
	sort.SliceStable(schedules, func(i, j int) bool {
		return schedules[i].SortKey() < schedules[j].SortKey()
	})

	times := []string{}
	for _, s := range schedules {
		times = append(times, s.Time)
	}
	assert.Equal(t, []string{"08:00", "23:55", "07:30", "xx:yy"}, times)
}

func TestStopRoutePairKey(t *testing.T) {
	assert.Equal(t, "1234-G6", StopRoutePair{StopID: "1234", Route: "G6"}.Key())
}
