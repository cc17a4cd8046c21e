package shared

import "time"

const dateISO = "2006-01-02"

// ParseDate accepts YYYY-MM-DD or full RFC3339 and keeps only the date
// part; request spans are whole days.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		y, m, d := parsed.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(dateISO, value)
}
