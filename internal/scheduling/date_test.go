package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDate(t *testing.T) {
	tests := []struct {
		name  string
		last  time.Time
		weeks int
		want  time.Time
	}{
		{"one week", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 1, time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)},
		{"eight weeks across year end", time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), 8, time.Date(2027, 1, 26, 0, 0, 0, 0, time.UTC)},
		{"leap day", time.Date(2028, 2, 22, 0, 0, 0, 0, time.UTC), 1, time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"max frequency", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 104, time.Date(2027, 12, 30, 0, 0, 0, 0, time.UTC)},
		{"time of day dropped", time.Date(2026, 3, 5, 23, 59, 0, 0, time.UTC), 2, time.Date(2026, 3, 19, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextDate(tt.last, tt.weeks))
		})
	}
}

func TestNextDate_KeepsLocalCalendarDate(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	// 02:00 on the 5th locally is still the 4th in UTC.
	last := time.Date(2026, 4, 5, 2, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC), NextDate(last, 1))
}

func TestNextDate_DSTDoesNotShiftDates(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// The clocks go forward on 2026-03-29.
	last := time.Date(2026, 3, 26, 0, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC), NextDate(last, 1))
}

func TestCatchUpSteps(t *testing.T) {
	assert.Equal(t, 0, catchUpSteps(today, today, 4))
	assert.Equal(t, 0, catchUpSteps(today.Add(weeks(2)), today, 4))
	assert.Equal(t, 1, catchUpSteps(today.AddDate(0, 0, -1), today, 4))
	assert.Equal(t, 1, catchUpSteps(today.Add(-weeks(4)), today, 4))
	assert.Equal(t, 2, catchUpSteps(today.Add(-weeks(4)).AddDate(0, 0, -1), today, 4))
}
