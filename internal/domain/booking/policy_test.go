package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unitstay/service-booking/internal/domain"
)

// sliceReader is a BookingReader over a fixed set of bookings.
type sliceReader struct {
	bookings  []*Booking
	unitErr   error
	guestErr  error
	unitCalls int
}

func (r *sliceReader) FindByID(_ context.Context, id int64) (*Booking, error) {
	for _, bk := range r.bookings {
		if bk.ID() == id {
			return bk, nil
		}
	}
	return nil, domain.NewNotFoundError("Booking", "x")
}

func (r *sliceReader) FindByGuestAndUnit(_ context.Context, guestName, unitID string) (*Booking, error) {
	for _, bk := range r.bookings {
		if bk.GuestName() == guestName && bk.UnitID() == unitID {
			return bk, nil
		}
	}
	return nil, nil
}

func (r *sliceReader) FindByGuest(_ context.Context, guestName string) (*Booking, error) {
	if r.guestErr != nil {
		return nil, r.guestErr
	}
	for _, bk := range r.bookings {
		if bk.GuestName() == guestName {
			return bk, nil
		}
	}
	return nil, nil
}

func (r *sliceReader) FindByUnit(_ context.Context, unitID string, excludeID *int64) ([]*Booking, error) {
	r.unitCalls++
	if r.unitErr != nil {
		return nil, r.unitErr
	}
	var out []*Booking
	for _, bk := range r.bookings {
		if bk.UnitID() != unitID {
			continue
		}
		if excludeID != nil && bk.ID() == *excludeID {
			continue
		}
		out = append(out, bk)
	}
	return out, nil
}

func guestAUnit1() *Booking {
	return ReconstructBooking(1, "GuestA", "1", days(0), 5, 1, day0, day0)
}

func TestPolicy_RuleOrder(t *testing.T) {
	rules := NewPolicy().Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, "same_guest_same_unit", rules[0].Name)
	assert.Equal(t, "same_guest_multiple_units", rules[1].Name)
	assert.Equal(t, "unit_available", rules[2].Name)
}

func TestPolicy_EvaluateNewBooking(t *testing.T) {
	existing := []*Booking{guestAUnit1()}

	tests := []struct {
		name      string
		candidate Candidate
		want      Verdict
	}{
		{
			name:      "empty unit admits",
			candidate: Candidate{GuestName: "GuestB", UnitID: "2", Range: NewDateRange(days(0), 5)},
			want:      Verdict{Admissible: true, Reason: ReasonOK},
		},
		{
			name:      "same guest same unit, even on other dates",
			candidate: Candidate{GuestName: "GuestA", UnitID: "1", Range: NewDateRange(days(40), 2)},
			want:      Verdict{Reason: ReasonSameGuestSameUnit},
		},
		{
			name:      "same guest other unit",
			candidate: Candidate{GuestName: "GuestA", UnitID: "2", Range: NewDateRange(days(0), 5)},
			want:      Verdict{Reason: ReasonSameGuestMultipleUnits},
		},
		{
			name:      "same guest other unit, far future",
			candidate: Candidate{GuestName: "GuestA", UnitID: "2", Range: NewDateRange(days(365), 1)},
			want:      Verdict{Reason: ReasonSameGuestMultipleUnits},
		},
		{
			name:      "other guest same dates",
			candidate: Candidate{GuestName: "GuestB", UnitID: "1", Range: NewDateRange(days(0), 5)},
			want:      Verdict{Reason: ReasonUnitOccupied},
		},
		{
			name:      "other guest overlapping",
			candidate: Candidate{GuestName: "GuestB", UnitID: "1", Range: NewDateRange(days(1), 5)},
			want:      Verdict{Reason: ReasonUnitOccupied},
		},
		{
			name:      "other guest back to back",
			candidate: Candidate{GuestName: "GuestB", UnitID: "1", Range: NewDateRange(days(5), 5)},
			want:      Verdict{Admissible: true, Reason: ReasonOK},
		},
		{
			name:      "other guest checking out on arrival day",
			candidate: Candidate{GuestName: "GuestB", UnitID: "1", Range: NewDateRange(days(-3), 3)},
			want:      Verdict{Admissible: true, Reason: ReasonOK},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPolicy().EvaluateNewBooking(context.Background(), &sliceReader{bookings: existing}, tt.candidate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPolicy_EvaluateNewBooking_ShortCircuits(t *testing.T) {
	r := &sliceReader{bookings: []*Booking{guestAUnit1()}}

	got, err := NewPolicy().EvaluateNewBooking(context.Background(), r, Candidate{GuestName: "GuestA", UnitID: "1", Range: NewDateRange(days(0), 5)})
	require.NoError(t, err)
	assert.Equal(t, ReasonSameGuestSameUnit, got.Reason)
	assert.Zero(t, r.unitCalls, "availability must not be checked after an earlier rule denies")
}

func TestPolicy_EvaluateNewBooking_GuestLookupError(t *testing.T) {
	boom := errors.New("db down")
	r := &sliceReader{guestErr: boom}

	_, err := NewPolicy().EvaluateNewBooking(context.Background(), r, Candidate{GuestName: "GuestA", UnitID: "1", Range: NewDateRange(days(0), 1)})
	assert.ErrorIs(t, err, boom)
}

func TestPolicy_OverlapLookupFailsClosedByDefault(t *testing.T) {
	boom := errors.New("db down")
	r := &sliceReader{unitErr: boom}

	_, err := NewPolicy().EvaluateNewBooking(context.Background(), r, Candidate{GuestName: "GuestA", UnitID: "1", Range: NewDateRange(days(0), 1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAvailabilityUnknown)
	assert.ErrorIs(t, err, boom)

	var aErr *domain.AvailabilityError
	require.True(t, errors.As(err, &aErr))
	assert.Equal(t, "1", aErr.UnitID)
}

func TestPolicy_OverlapLookupFailOpen(t *testing.T) {
	boom := errors.New("db down")
	r := &sliceReader{unitErr: boom}

	var swallowed []error
	policy := NewPolicy(WithOverlapFailOpen(func(unitID string, err error) {
		assert.Equal(t, "1", unitID)
		swallowed = append(swallowed, err)
	}))

	got, err := policy.EvaluateNewBooking(context.Background(), r, Candidate{GuestName: "GuestA", UnitID: "1", Range: NewDateRange(days(0), 1)})
	require.NoError(t, err)
	assert.True(t, got.Admissible)
	assert.Equal(t, []error{boom}, swallowed)
}

func TestPolicy_EvaluateExtension(t *testing.T) {
	a := guestAUnit1()
	b := ReconstructBooking(2, "GuestB", "1", days(7), 5, 1, day0, day0)
	r := &sliceReader{bookings: []*Booking{a, b}}
	policy := NewPolicy()

	t.Run("excludes itself", func(t *testing.T) {
		got, err := policy.EvaluateExtension(context.Background(), r, a, a.Range().Extend(2))
		require.NoError(t, err)
		assert.True(t, got.Admissible)
	})

	t.Run("runs into the next stay", func(t *testing.T) {
		got, err := policy.EvaluateExtension(context.Background(), r, a, a.Range().Extend(3))
		require.NoError(t, err)
		assert.Equal(t, Verdict{Reason: ReasonUnitUnavailableForExtension}, got)
	})

	t.Run("shortening is always free", func(t *testing.T) {
		got, err := policy.EvaluateExtension(context.Background(), r, b, b.Range().Extend(-4))
		require.NoError(t, err)
		assert.True(t, got.Admissible)
	})
}

func TestPolicy_FindOverlappingBooking_ExcludesID(t *testing.T) {
	a := guestAUnit1()
	r := &sliceReader{bookings: []*Booking{a}}
	id := a.ID()

	found, err := NewPolicy().FindOverlappingBooking(context.Background(), r, "1", a.Range(), nil)
	require.NoError(t, err)
	assert.Equal(t, a, found)

	found, err = NewPolicy().FindOverlappingBooking(context.Background(), r, "1", a.Range(), &id)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestReasonBookingNotFound(t *testing.T) {
	assert.Equal(t, "Booking with ID 999999 does not exist.", ReasonBookingNotFound(999999))
}
