package overtime

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	dateISO           = "2006-01-02"
	historyTimeFormat = "2006-01-02 15:04"
	clockFormat       = "15:04"

	// UnitHours claims are measured by clock span; any other unit counts
	// as a single fixed unit.
	UnitHours = "hours"
)

// TotalValue sizes a claim. Hour claims need both clock stamps and span
// strictly forward in the day; the result is rounded to two decimals.
func TotalValue(unit, startTime, endTime string) (decimal.Decimal, error) {
	if unit != UnitHours || startTime == "" || endTime == "" {
		return decimal.NewFromInt(1), nil
	}
	from, err := time.Parse(clockFormat, startTime)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: invalid time format, use HH:MM", ErrInvalidInput)
	}
	to, err := time.Parse(clockFormat, endTime)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: invalid time format, use HH:MM", ErrInvalidInput)
	}
	span := to.Sub(from)
	if span <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: end time must be after start time", ErrInvalidInput)
	}
	return decimal.NewFromFloat(span.Hours()).Round(2), nil
}

func historyLine(legend string, at time.Time) string {
	return fmt.Sprintf("\n> %s (%s)", legend, at.Format(historyTimeFormat))
}

func initialHistory(at time.Time) string {
	return fmt.Sprintf("Submitted (%s)", at.Format(historyTimeFormat))
}
