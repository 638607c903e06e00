package scheduling

import (
	"time"

	"github.com/ukydev/fleet-compliance/internal/models"
)

const daysPerWeek = 7

// DateOf truncates t to its calendar date, expressed as UTC midnight.
// The calendar date is taken in t's own location.
func DateOf(t time.Time) time.Time {
	return models.CalendarDate(t)
}

// NextDate returns the occurrence following lastDate in a series recurring
// every frequencyWeeks weeks. No weekend or holiday adjustment is applied.
func NextDate(lastDate time.Time, frequencyWeeks int) time.Time {
	return DateOf(lastDate).AddDate(0, 0, frequencyWeeks*daysPerWeek)
}

func dateKey(t time.Time) string {
	return DateOf(t).Format(time.DateOnly)
}

// daysBetween returns the whole calendar days from a to b (negative if b is before a).
func daysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}
