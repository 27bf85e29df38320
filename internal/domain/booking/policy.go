package booking

import (
	"context"
	"fmt"

	"github.com/unitstay/service-booking/internal/domain"
)

// Reasons reported to callers. They are part of the public API.
const (
	ReasonOK                          = "OK"
	ReasonSameGuestSameUnit           = "The given guest name cannot book the same unit multiple times"
	ReasonSameGuestMultipleUnits      = "The same guest cannot be in multiple units at the same time"
	ReasonUnitOccupied                = "For the given date range, the unit is already occupied"
	ReasonUnitUnavailableForExtension = "The unit is not available for the requested extension."
	ReasonMinimumStay                 = "A booking must cover at least one night"
	ReasonMaximumStay                 = "A booking cannot cover more than 3650 nights"
)

// ReasonBookingNotFound is the rejection for extending an unknown booking.
func ReasonBookingNotFound(id int64) string {
	return fmt.Sprintf("Booking with ID %d does not exist.", id)
}

// Candidate is a booking request that has not been admitted yet.
type Candidate struct {
	GuestName string
	UnitID    string
	Range     DateRange
}

// Verdict is the outcome of a policy evaluation.
type Verdict struct {
	Admissible bool
	Reason     string
}

func admit() Verdict { return Verdict{Admissible: true, Reason: ReasonOK} }

func deny(reason string) Verdict { return Verdict{Admissible: false, Reason: reason} }

// Rule is one admissibility check. Violated reports whether the candidate breaks it.
type Rule struct {
	Name     string
	Reason   string
	Violated func(ctx context.Context, r BookingReader, c Candidate) (bool, error)
}

// Policy decides whether new bookings and extensions are admissible.
type Policy struct {
	rules      []Rule
	failOpen   bool
	onFailOpen func(unitID string, err error)
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithOverlapFailOpen makes a failed overlap lookup count as "no overlap".
// onSwallow receives every swallowed error; it may be nil.
// A store outage then admits bookings that may double-book a unit.
func WithOverlapFailOpen(onSwallow func(unitID string, err error)) PolicyOption {
	return func(p *Policy) {
		p.failOpen = true
		p.onFailOpen = onSwallow
	}
}

// NewPolicy creates a Policy with the standard rule set.
func NewPolicy(opts ...PolicyOption) *Policy {
	p := &Policy{}
	for _, opt := range opts {
		opt(p)
	}
	p.rules = []Rule{
		{
			Name:   "same_guest_same_unit",
			Reason: ReasonSameGuestSameUnit,
			Violated: func(ctx context.Context, r BookingReader, c Candidate) (bool, error) {
				bk, err := r.FindByGuestAndUnit(ctx, c.GuestName, c.UnitID)
				return bk != nil, err
			},
		},
		{
			// Not date-scoped: any booking held by the guest blocks another one.
			Name:   "same_guest_multiple_units",
			Reason: ReasonSameGuestMultipleUnits,
			Violated: func(ctx context.Context, r BookingReader, c Candidate) (bool, error) {
				bk, err := r.FindByGuest(ctx, c.GuestName)
				return bk != nil, err
			},
		},
		{
			Name:   "unit_available",
			Reason: ReasonUnitOccupied,
			Violated: func(ctx context.Context, r BookingReader, c Candidate) (bool, error) {
				bk, err := p.FindOverlappingBooking(ctx, r, c.UnitID, c.Range, nil)
				return bk != nil, err
			},
		},
	}
	return p
}

// Rules returns the checks in evaluation order.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// EvaluateNewBooking runs the rules in order and stops at the first violation.
// A non-nil error means the evaluation itself failed and the verdict is meaningless.
func (p *Policy) EvaluateNewBooking(ctx context.Context, r BookingReader, c Candidate) (Verdict, error) {
	for _, rule := range p.rules {
		violated, err := rule.Violated(ctx, r, c)
		if err != nil {
			return Verdict{}, fmt.Errorf("evaluating %s: %w", rule.Name, err)
		}
		if violated {
			return deny(rule.Reason), nil
		}
	}
	return admit(), nil
}

// EvaluateExtension re-checks only unit availability for the extended stay, ignoring the
// booking's own row. The guest rules are not re-run.
func (p *Policy) EvaluateExtension(ctx context.Context, r BookingReader, bk *Booking, extended DateRange) (Verdict, error) {
	id := bk.ID()
	overlapping, err := p.FindOverlappingBooking(ctx, r, bk.UnitID(), extended, &id)
	if err != nil {
		return Verdict{}, fmt.Errorf("evaluating extension of booking %d: %w", id, err)
	}
	if overlapping != nil {
		return deny(ReasonUnitUnavailableForExtension), nil
	}
	return admit(), nil
}

// FindOverlappingBooking returns a booking on unitID overlapping proposed, or nil.
// Store failures are returned as *domain.AvailabilityError unless the policy fails open.
func (p *Policy) FindOverlappingBooking(ctx context.Context, r BookingReader, unitID string, proposed DateRange, excludeID *int64) (*Booking, error) {
	bookings, err := r.FindByUnit(ctx, unitID, excludeID)
	if err != nil {
		if p.failOpen {
			if p.onFailOpen != nil {
				p.onFailOpen(unitID, err)
			}
			return nil, nil
		}
		return nil, domain.NewAvailabilityError(unitID, err)
	}
	return FirstOverlapping(bookings, unitID, proposed), nil
}
