package booking

import (
	"context"
	"strconv"
)

// BookingReader is the lookup surface the policy needs.
type BookingReader interface {
	// FindByID retrieves a booking by id; a missing booking is a *domain.NotFoundError.
	FindByID(ctx context.Context, id int64) (*Booking, error)

	// FindByGuestAndUnit returns any booking of guestName on unitID, or nil.
	FindByGuestAndUnit(ctx context.Context, guestName, unitID string) (*Booking, error)

	// FindByGuest returns any booking held by guestName, or nil.
	FindByGuest(ctx context.Context, guestName string) (*Booking, error)

	// FindByUnit lists the bookings on unitID, leaving out excludeID when set.
	FindByUnit(ctx context.Context, unitID string, excludeID *int64) ([]*Booking, error)
}

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	BookingReader

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByUnit returns booking counts grouped by unit (admin).
	CountByUnit(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking and assigns its id.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, booking *Booking) error

	// InTransaction runs fn against a repository bound to a single transaction.
	// fn's error rolls the transaction back and is returned unchanged.
	InTransaction(ctx context.Context, fn func(tx BookingRepository) error) error

	// Lock serialises concurrent transactions holding any of keys until the current
	// transaction ends. Outside a transaction, or where the store serialises writers
	// itself, it does nothing.
	Lock(ctx context.Context, keys ...string) error
}

// BookingLockKey is the Lock key guarding one booking. Take it before reading the booking
// so concurrent changes to it apply one after the other.
func BookingLockKey(id int64) string { return "booking:id:" + strconv.FormatInt(id, 10) }

// UnitLockKey is the Lock key guarding a unit's calendar.
func UnitLockKey(unitID string) string { return "booking:unit:" + unitID }

// GuestLockKey is the Lock key guarding a guest's bookings.
func GuestLockKey(guestName string) string { return "booking:guest:" + guestName }
