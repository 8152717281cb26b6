// internal/circulation/fees.go
package circulation

import (
	"math"
	"time"

	"librarydesk/internal/calendar"
)

// DayDifference counts whole calendar days between two dates. Reversed
// input yields a negative count.
func DayDifference(start, end time.Time) int {
	return calendar.DaysBetween(start, end)
}

// IsOverdue reports whether an open record has been out longer than the
// allowance on asOf.
func (p Policy) IsOverdue(r Record, asOf time.Time) bool {
	return r.Open() && DayDifference(r.BorrowDate, asOf) > p.AllowedDays
}

// OverdueFee charges FeePerDay for every day past the allowance, rounded to
// the cent. Closed records are charged up to their return date, open ones up
// to asOf.
func (p Policy) OverdueFee(r Record, asOf time.Time) float64 {
	end := asOf
	if r.Returned {
		end = r.ReturnDate
	}
	overdueDays := max(0, DayDifference(r.BorrowDate, end)-p.AllowedDays)
	return float64(cents(float64(overdueDays)*p.FeePerDay)) / 100
}

// cents converts an amount to whole cents.
func cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
