package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/unitstay/service-booking/internal/domain"
)

// Booking is the aggregate root: one guest holding one unit for a run of nights.
type Booking struct {
	id             int64
	guestName      string
	unitID         string
	checkInDate    time.Time
	numberOfNights int

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewBooking creates an unsaved Booking. The store assigns the id on Save.
func NewBooking(guestName, unitID string, checkInDate time.Time, numberOfNights int) (*Booking, error) {
	if strings.TrimSpace(guestName) == "" {
		return nil, domain.NewValidationError("guest_name is required")
	}
	if strings.TrimSpace(unitID) == "" {
		return nil, domain.NewValidationError("unit_id is required")
	}
	if checkInDate.IsZero() {
		return nil, domain.NewValidationError("check_in_date is required")
	}
	if numberOfNights < 1 {
		return nil, domain.NewValidationError("number_of_nights must be at least 1")
	}
	if numberOfNights > MaxNights {
		return nil, domain.NewValidationError(fmt.Sprintf("number_of_nights must be at most %d", MaxNights))
	}

	now := time.Now().UTC()
	return &Booking{
		guestName:      guestName,
		unitID:         unitID,
		checkInDate:    NormalizeDate(checkInDate),
		numberOfNights: numberOfNights,
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id int64,
	guestName string,
	unitID string,
	checkInDate time.Time,
	numberOfNights int,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:             id,
		guestName:      guestName,
		unitID:         unitID,
		checkInDate:    NormalizeDate(checkInDate),
		numberOfNights: numberOfNights,
		version:        version,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// --- Getters ---

// ID returns the store-assigned identifier, or 0 before the first Save.
func (b *Booking) ID() int64 { return b.id }

// GuestName returns the name of the guest holding the booking.
func (b *Booking) GuestName() string { return b.guestName }

// UnitID returns the booked unit.
func (b *Booking) UnitID() string { return b.unitID }

// CheckInDate returns the first occupied night.
func (b *Booking) CheckInDate() time.Time { return b.checkInDate }

// NumberOfNights returns the length of the stay.
func (b *Booking) NumberOfNights() int { return b.numberOfNights }

// CheckOutDate returns the first day the unit is free again.
func (b *Booking) CheckOutDate() time.Time { return b.Range().CheckOut() }

// Range returns the occupied interval.
func (b *Booking) Range() DateRange {
	return DateRange{CheckIn: b.checkInDate, Nights: b.numberOfNights}
}

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// AssignID records the identifier generated by the store. It only takes effect once.
func (b *Booking) AssignID(id int64) {
	if b.id == 0 {
		b.id = id
	}
}

// ExtendedRange returns the stay as it would be after Extend(days), without changing the booking.
func (b *Booking) ExtendedRange(days int) (DateRange, error) {
	// Bound days before adding so the sum cannot wrap.
	if days > MaxNights || days < -MaxNights {
		return DateRange{}, domain.NewUnableToBookError(ReasonMaximumStay)
	}
	extended := b.Range().Extend(days)
	if extended.Nights < 1 {
		return DateRange{}, domain.NewUnableToBookError(ReasonMinimumStay)
	}
	if extended.Nights > MaxNights {
		return DateRange{}, domain.NewUnableToBookError(ReasonMaximumStay)
	}
	return extended, nil
}

// Extend changes the stay by days nights. Negative values shorten it.
func (b *Booking) Extend(days int) error {
	extended, err := b.ExtendedRange(days)
	if err != nil {
		return err
	}
	b.numberOfNights = extended.Nights
	b.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}
