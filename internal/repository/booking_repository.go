package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/unitstay/service-booking/internal/domain"
	bookingDomain "github.com/unitstay/service-booking/internal/domain/booking"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	GuestName      string    `gorm:"not null;size:255;index:idx_bookings_guest_name"`
	UnitID         string    `gorm:"not null;size:255;index:idx_bookings_unit_id,priority:1"`
	CheckInDate    time.Time `gorm:"type:date;not null;index:idx_bookings_unit_id,priority:2"`
	NumberOfNights int       `gorm:"not null"`
	Version        int64     `gorm:"not null;default:1"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db   *gorm.DB
	inTx bool
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id int64) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model), nil
}

// FindByGuestAndUnit returns the guest's booking on the unit, or nil.
func (r *GormBookingRepository) FindByGuestAndUnit(ctx context.Context, guestName, unitID string) (*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("guest_name = ? AND unit_id = ?", guestName, unitID).
		Order("id ASC").
		Limit(1).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find booking by guest and unit: %w", err)
	}
	return firstBooking(models), nil
}

// FindByGuest returns any booking held by the guest, or nil.
func (r *GormBookingRepository) FindByGuest(ctx context.Context, guestName string) (*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("guest_name = ?", guestName).
		Order("id ASC").
		Limit(1).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find booking by guest: %w", err)
	}
	return firstBooking(models), nil
}

// FindByUnit lists the bookings on a unit ordered by check-in, skipping excludeID when set.
func (r *GormBookingRepository) FindByUnit(ctx context.Context, unitID string, excludeID *int64) ([]*bookingDomain.Booking, error) {
	query := r.db.WithContext(ctx).Where("unit_id = ?", unitID)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var models []BookingModel
	if err := query.Order("check_in_date ASC, id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find bookings for unit: %w", err)
	}
	return toDomainBookings(models), nil
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	return toDomainBookings(models), total, nil
}

// CountByUnit returns booking counts grouped by unit (admin).
func (r *GormBookingRepository) CountByUnit(ctx context.Context) (map[string]int64, error) {
	type unitCount struct {
		UnitID string
		Count  int64
	}
	var results []unitCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("unit_id, count(*) as count").
		Group("unit_id").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by unit: %w", err)
	}

	counts := make(map[string]int64, len(results))
	for _, uc := range results {
		counts[uc.UnitID] = uc.Count
	}
	return counts, nil
}

// Save persists a new booking and assigns the generated id.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)
	model.ID = 0

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	bk.AssignID(model.ID)
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)

	// IncrementVersion has already been called, so the stored row holds version-1.
	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"number_of_nights": model.NumberOfNights,
			"version":          model.Version,
			"updated_at":       model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}

	return nil
}

// InTransaction runs fn inside one database transaction. Nested calls reuse the outer one.
func (r *GormBookingRepository) InTransaction(ctx context.Context, fn func(tx bookingDomain.BookingRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormBookingRepository{db: tx, inTx: true})
	})
}

// Lock takes transaction-scoped postgres advisory locks on keys, in sorted order so two
// transactions asking for the same keys cannot deadlock. sqlite already runs one writer at a time.
func (r *GormBookingRepository) Lock(ctx context.Context, keys ...string) error {
	if !r.inTx || r.db.Dialector.Name() != "postgres" {
		return nil
	}

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for _, key := range sorted {
		if err := r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error; err != nil {
			return fmt.Errorf("failed to lock %s: %w", key, err)
		}
	}
	return nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	return &BookingModel{
		ID:             bk.ID(),
		GuestName:      bk.GuestName(),
		UnitID:         bk.UnitID(),
		CheckInDate:    bk.CheckInDate(),
		NumberOfNights: bk.NumberOfNights(),
		Version:        bk.Version(),
		CreatedAt:      bk.CreatedAt(),
		UpdatedAt:      bk.UpdatedAt(),
	}
}

func toDomainBooking(m *BookingModel) *bookingDomain.Booking {
	return bookingDomain.ReconstructBooking(
		m.ID,
		m.GuestName,
		m.UnitID,
		m.CheckInDate,
		m.NumberOfNights,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	)
}

func toDomainBookings(models []BookingModel) []*bookingDomain.Booking {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bookings[i] = toDomainBooking(&models[i])
	}
	return bookings
}

func firstBooking(models []BookingModel) *bookingDomain.Booking {
	if len(models) == 0 {
		return nil
	}
	return toDomainBooking(&models[0])
}
