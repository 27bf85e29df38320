package booking

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// MaxNights is the longest stay a booking may cover. It keeps check-out arithmetic far from
// time overflow and the value inside the INTEGER column.
const MaxNights = 3650

// NormalizeDate drops the time-of-day and zone, keeping the calendar date as seen in t's location.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// DateRange is the occupied interval [CheckIn, CheckIn+Nights) in whole days.
type DateRange struct {
	CheckIn time.Time
	Nights  int
}

// NewDateRange builds a range starting on the calendar date of checkIn.
func NewDateRange(checkIn time.Time, nights int) DateRange {
	return DateRange{CheckIn: NormalizeDate(checkIn), Nights: nights}
}

// CheckOut is the first day no longer occupied.
func (r DateRange) CheckOut() time.Time {
	return r.CheckIn.AddDate(0, 0, r.Nights)
}

// Valid reports whether the range has a date and covers at least one night.
func (r DateRange) Valid() bool {
	return !r.CheckIn.IsZero() && r.Nights > 0
}

// Overlaps applies the half-open test: a < b+m && b < a+n.
// Invalid ranges never overlap anything.
func (r DateRange) Overlaps(o DateRange) bool {
	if !r.Valid() || !o.Valid() {
		return false
	}
	return r.CheckIn.Before(o.CheckOut()) && o.CheckIn.Before(r.CheckOut())
}

// Extend returns the range lengthened (or shortened, for negative days) by days nights.
func (r DateRange) Extend(days int) DateRange {
	return DateRange{CheckIn: r.CheckIn, Nights: r.Nights + days}
}

func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.CheckIn.Format(DateLayout), r.CheckOut().Format(DateLayout))
}

// Overlaps reports whether two stays contend for the same unit on some night.
func Overlaps(unitA string, a DateRange, unitB string, b DateRange) bool {
	if unitA != unitB {
		return false
	}
	return a.Overlaps(b)
}

// FirstOverlapping returns the first booking on unitID whose stay overlaps proposed, or nil.
func FirstOverlapping(bookings []*Booking, unitID string, proposed DateRange) *Booking {
	for _, bk := range bookings {
		if Overlaps(bk.UnitID(), bk.Range(), unitID, proposed) {
			return bk
		}
	}
	return nil
}
