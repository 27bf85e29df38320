package events

import (
	"context"
	"errors"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/unitstay/service-booking/internal/application"
	"github.com/unitstay/service-booking/internal/domain"
	bookingDomain "github.com/unitstay/service-booking/internal/domain/booking"
	"github.com/unitstay/service-booking/internal/platform/kafka"
)

// BookingExtender is the part of the booking service the consumer drives.
type BookingExtender interface {
	ExtendBooking(ctx context.Context, bookingID int64, extensionDays int) (*application.BookingDTO, error)
}

// ExtensionCommandConsumer listens to booking commands and applies extension requests.
type ExtensionCommandConsumer struct {
	consumer *kafka.Consumer
	service  BookingExtender
	logger   *zap.Logger
}

// NewExtensionCommandConsumer creates a new ExtensionCommandConsumer.
func NewExtensionCommandConsumer(
	brokers []string,
	groupID string,
	service BookingExtender,
	logger *zap.Logger,
) *ExtensionCommandConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, bookingDomain.TopicBookingCommands, logger,
		kafka.WithDeadLetterTopic(bookingDomain.TopicBookingCommandsDLQ),
	)
	return &ExtensionCommandConsumer{
		consumer: consumer,
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming booking commands. This blocks until the context is cancelled.
func (c *ExtensionCommandConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *ExtensionCommandConsumer) Close() error {
	return c.consumer.Close()
}

func (c *ExtensionCommandConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from booking commands topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case bookingDomain.CommandExtensionRequested:
		return c.handleExtensionRequested(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled booking command type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *ExtensionCommandConsumer) handleExtensionRequested(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var cmd bookingDomain.ExtensionRequestedCommand
	if err := cloudEvent.ParseData(&cmd); err != nil {
		c.logger.Error("failed to parse ExtensionRequestedCommand data",
			zap.String("event_id", cloudEvent.ID),
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	c.logger.Info("processing extension request",
		zap.Int64("booking_id", cmd.BookingID),
		zap.Int("extension_days", cmd.ExtensionDays),
		zap.String("requested_by", cmd.RequestedBy),
	)

	result, err := c.service.ExtendBooking(ctx, cmd.BookingID, cmd.ExtensionDays)
	if err != nil {
		var utb *domain.UnableToBookError
		if errors.As(err, &utb) {
			// A rejection is final; retrying the command cannot change the answer.
			c.logger.Info("extension request rejected",
				zap.Int64("booking_id", cmd.BookingID),
				zap.String("reason", utb.Reason),
			)
			return nil
		}
		c.logger.Error("failed to extend booking from command",
			zap.Int64("booking_id", cmd.BookingID),
			zap.Error(err),
		)
		return err // retried, then dead-lettered
	}

	c.logger.Info("booking extended from command",
		zap.Int64("booking_id", result.ID),
		zap.Int("number_of_nights", result.NumberOfNights),
	)
	return nil
}
