package normalize

import (
	"time"

	"github.com/ncruces/go-strftime"
)

var ordinalSuffixes = [...]string{"st", "nd", "rd"}

// OrdinalSuffix returns the English ordinal suffix for a day of the month.
// Days 4-20 and 24-30 take "th"; the rest are looked up by their last digit.
func OrdinalSuffix(day int) string {
	if 4 <= day && day <= 20 || 24 <= day && day <= 30 {
		return "th"
	}
	i := day%10 - 1
	if i < 0 || i >= len(ordinalSuffixes) {
		// not a calendar day
		return "th"
	}
	return ordinalSuffixes[i]
}

// FormatTimestamp renders t in UTC as e.g. "21st March 2024 - 02:30 PM UTC".
func FormatTimestamp(t time.Time) string {
	t = t.UTC()
	return strftime.Format("%d"+OrdinalSuffix(t.Day())+" %B %Y - %I:%M %p UTC", t)
}
