package application

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/unitstay/service-booking/internal/domain"
	bookingDomain "github.com/unitstay/service-booking/internal/domain/booking"
	"github.com/unitstay/service-booking/internal/platform/kafka"
)

const eventSource = "service-booking"

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	GuestName      string `json:"guest_name" binding:"required"`
	UnitID         string `json:"unit_id" binding:"required"`
	CheckInDate    string `json:"check_in_date" binding:"required"`
	NumberOfNights *int   `json:"number_of_nights" binding:"required"`
}

// ExtendBookingRequest holds the data needed to extend a booking.
type ExtendBookingRequest struct {
	BookingID     *int64 `json:"booking_id" binding:"required"`
	ExtensionDays *int   `json:"extension_days" binding:"required"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID             int64     `json:"id"`
	GuestName      string    `json:"guest_name"`
	UnitID         string    `json:"unit_id"`
	CheckInDate    string    `json:"check_in_date"`
	CheckOutDate   string    `json:"check_out_date"`
	NumberOfNights int       `json:"number_of_nights"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EventPublisher publishes CloudEvents; *kafka.Producer and *kafka.NopProducer satisfy it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	repo     bookingDomain.BookingRepository
	policy   *bookingDomain.Policy
	producer EventPublisher
	logger   *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	policy *bookingDomain.Policy,
	producer EventPublisher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:     repo,
		policy:   policy,
		producer: producer,
		logger:   logger,
	}
}

// CreateBooking admits and stores a new booking. Policy rejections are *domain.UnableToBookError.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*BookingDTO, error) {
	if req.NumberOfNights == nil {
		return nil, domain.NewValidationError("number_of_nights is required")
	}
	checkIn, err := bookingDomain.ParseDate(req.CheckInDate)
	if err != nil {
		return nil, domain.NewValidationError("check_in_date must be a date formatted as YYYY-MM-DD")
	}

	bk, err := bookingDomain.NewBooking(req.GuestName, req.UnitID, checkIn, *req.NumberOfNights)
	if err != nil {
		return nil, err
	}

	candidate := bookingDomain.Candidate{
		GuestName: bk.GuestName(),
		UnitID:    bk.UnitID(),
		Range:     bk.Range(),
	}

	err = s.repo.InTransaction(ctx, func(tx bookingDomain.BookingRepository) error {
		if err := tx.Lock(ctx, bookingDomain.UnitLockKey(bk.UnitID()), bookingDomain.GuestLockKey(bk.GuestName())); err != nil {
			return err
		}

		verdict, err := s.policy.EvaluateNewBooking(ctx, tx, candidate)
		if err != nil {
			return err
		}
		if !verdict.Admissible {
			return domain.NewUnableToBookError(verdict.Reason)
		}

		return tx.Save(ctx, bk)
	})
	if err != nil {
		s.logFailure("booking rejected", err,
			zap.String("guest_name", candidate.GuestName),
			zap.String("unit_id", candidate.UnitID),
			zap.Stringer("range", candidate.Range),
		)
		return nil, err
	}

	s.logger.Info("booking created",
		zap.Int64("booking_id", bk.ID()),
		zap.String("unit_id", bk.UnitID()),
		zap.Stringer("range", bk.Range()),
	)

	evt := bookingDomain.BookingCreatedEvent{
		BookingID:      bk.ID(),
		GuestName:      bk.GuestName(),
		UnitID:         bk.UnitID(),
		CheckInDate:    bk.CheckInDate().Format(bookingDomain.DateLayout),
		CheckOutDate:   bk.CheckOutDate().Format(bookingDomain.DateLayout),
		NumberOfNights: bk.NumberOfNights(),
		OccurredAt:     time.Now().UTC(),
	}
	s.publishEvent(ctx, bookingDomain.TopicBookingEvents, bookingDomain.EventBookingCreated, bk.ID(), evt)

	result := toBookingDTO(bk)
	return &result, nil
}

// ExtendBooking changes a booking's length by extensionDays nights after re-checking unit
// availability. An unknown id is reported as *domain.UnableToBookError, not as not-found.
func (s *BookingService) ExtendBooking(ctx context.Context, bookingID int64, extensionDays int) (*BookingDTO, error) {
	var extended *bookingDomain.Booking

	err := s.repo.InTransaction(ctx, func(tx bookingDomain.BookingRepository) error {
		// Lock before reading: a concurrent extension of the same booking waits here and then
		// sees the committed row instead of failing the version check.
		if err := tx.Lock(ctx, bookingDomain.BookingLockKey(bookingID)); err != nil {
			return err
		}

		bk, err := tx.FindByID(ctx, bookingID)
		if err != nil {
			if domain.IsNotFound(err) {
				return domain.NewUnableToBookError(bookingDomain.ReasonBookingNotFound(bookingID))
			}
			return err
		}

		if err := tx.Lock(ctx, bookingDomain.UnitLockKey(bk.UnitID())); err != nil {
			return err
		}

		proposed, err := bk.ExtendedRange(extensionDays)
		if err != nil {
			return err
		}

		verdict, err := s.policy.EvaluateExtension(ctx, tx, bk, proposed)
		if err != nil {
			return err
		}
		if !verdict.Admissible {
			return domain.NewUnableToBookError(verdict.Reason)
		}

		// Mutate only after the check so a rejection leaves nothing to roll back.
		if err := bk.Extend(extensionDays); err != nil {
			return err
		}
		bk.IncrementVersion()
		if err := tx.Update(ctx, bk); err != nil {
			return err
		}

		extended = bk
		return nil
	})
	if err != nil {
		s.logFailure("extension rejected", err,
			zap.Int64("booking_id", bookingID),
			zap.Int("extension_days", extensionDays),
		)
		return nil, err
	}

	s.logger.Info("booking extended",
		zap.Int64("booking_id", extended.ID()),
		zap.Int("extension_days", extensionDays),
		zap.Int("number_of_nights", extended.NumberOfNights()),
	)

	evt := bookingDomain.BookingExtendedEvent{
		BookingID:      extended.ID(),
		UnitID:         extended.UnitID(),
		ExtensionDays:  extensionDays,
		NumberOfNights: extended.NumberOfNights(),
		CheckOutDate:   extended.CheckOutDate().Format(bookingDomain.DateLayout),
		OccurredAt:     time.Now().UTC(),
	}
	s.publishEvent(ctx, bookingDomain.TopicBookingEvents, bookingDomain.EventBookingExtended, extended.ID(), evt)

	result := toBookingDTO(extended)
	return &result, nil
}

// GetBooking retrieves a single booking by ID; a miss is a *domain.NotFoundError.
func (s *BookingService) GetBooking(ctx context.Context, bookingID int64) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// --- Admin methods ---

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByUnit        map[string]int64 `json:"by_unit"`
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}

	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByUnit(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByUnit:        counts,
	}, nil
}

// --- Helpers ---

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:             bk.ID(),
		GuestName:      bk.GuestName(),
		UnitID:         bk.UnitID(),
		CheckInDate:    bk.CheckInDate().Format(bookingDomain.DateLayout),
		CheckOutDate:   bk.CheckOutDate().Format(bookingDomain.DateLayout),
		NumberOfNights: bk.NumberOfNights(),
		Version:        bk.Version(),
		CreatedAt:      bk.CreatedAt(),
		UpdatedAt:      bk.UpdatedAt(),
	}
}

// logFailure logs business rejections at info and everything else at error.
func (s *BookingService) logFailure(msg string, err error, fields ...zap.Field) {
	var utb *domain.UnableToBookError
	if errors.As(err, &utb) {
		s.logger.Info(msg, append(fields, zap.String("reason", utb.Reason))...)
		return
	}
	s.logger.Error(msg, append(fields, zap.Error(err))...)
}

func (s *BookingService) publishEvent(ctx context.Context, topic, eventType string, bookingID int64, data interface{}) {
	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	cloudEvent.Subject = strconv.FormatInt(bookingID, 10)

	if err := s.producer.PublishEvent(ctx, topic, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
