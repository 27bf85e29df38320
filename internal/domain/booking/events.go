package booking

import "time"

// Kafka topics.
const (
	TopicBookingEvents   = "booking.events"
	TopicBookingCommands = "booking.commands"
	// TopicBookingCommandsDLQ receives commands that kept failing after retries.
	TopicBookingCommandsDLQ = "booking.commands.dlq"
)

// CloudEvent types.
const (
	EventBookingCreated       = "booking.created"
	EventBookingExtended      = "booking.extended"
	CommandExtensionRequested = "booking.extension_requested"
)

// BookingCreatedEvent is published after a booking is committed.
type BookingCreatedEvent struct {
	BookingID      int64     `json:"booking_id"`
	GuestName      string    `json:"guest_name"`
	UnitID         string    `json:"unit_id"`
	CheckInDate    string    `json:"check_in_date"`
	CheckOutDate   string    `json:"check_out_date"`
	NumberOfNights int       `json:"number_of_nights"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// BookingExtendedEvent is published after an extension is committed.
type BookingExtendedEvent struct {
	BookingID      int64     `json:"booking_id"`
	UnitID         string    `json:"unit_id"`
	ExtensionDays  int       `json:"extension_days"`
	NumberOfNights int       `json:"number_of_nights"`
	CheckOutDate   string    `json:"check_out_date"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ExtensionRequestedCommand asks the service to extend a booking, e.g. from a channel manager.
type ExtensionRequestedCommand struct {
	BookingID     int64  `json:"booking_id"`
	ExtensionDays int    `json:"extension_days"`
	RequestedBy   string `json:"requested_by,omitempty"`
}
