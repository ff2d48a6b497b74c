// README: Trip/booking aggregates, status definitions, and the transition table.
package trip

import (
	"errors"
	"time"

	"tandem/internal/types"
)

type TripStatus string

const (
	TripOpen      TripStatus = "open"
	TripLocked    TripStatus = "locked"
	TripCancelled TripStatus = "cancelled"
)

type BookingStatus string

const (
	BookingPending          BookingStatus = "pending"
	BookingAccepted         BookingStatus = "accepted"
	BookingRejected         BookingStatus = "rejected"
	BookingCancelledByRider BookingStatus = "cancelled_by_rider"
)

var (
	ErrTripNotFound     = errors.New("trip not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrTripClosed       = errors.New("trip closed")
	ErrTripNotOpen      = errors.New("trip not open")
	ErrTripFull         = errors.New("trip full")
	ErrTripCancelled    = errors.New("trip cancelled")
	ErrAlreadyRequested = errors.New("seat already requested")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrConflict         = errors.New("trip state conflict")
	ErrBadRequest       = errors.New("bad request")
)

// Trip is an instantiated departure of a route template. seats_taken is only
// ever mutated through conditional UPDATEs so 0 <= SeatsTaken <= SeatsTotal
// holds under concurrent bookings.
type Trip struct {
	ID              types.ID
	CarpoolerID     types.ID
	RouteTemplateID types.ID
	DepartureAt     time.Time
	SeatsTotal      int
	SeatsTaken      int
	Status          TripStatus
	StatusVersion   int
	CreatedAt       time.Time
	CancelledAt     *time.Time
}

// TripStop is an ordered waypoint of a trip, optionally anchored to a
// pickup point.
type TripStop struct {
	ID            types.ID
	TripID        types.ID
	Seq           int
	Label         string
	Position      types.Point
	PickupPointID *types.ID
}

// Booking is a rider's claim on a trip. At most one non-terminal
// (pending/accepted) booking may exist per (trip, rider) pair; the store
// enforces this with a partial unique index.
type Booking struct {
	ID            types.ID
	TripID        types.ID
	RiderID       types.ID
	PickupPointID *types.ID
	Status        BookingStatus
	StatusVersion int
	CreatedAt     time.Time
	DecidedAt     *time.Time
	CancelledAt   *time.Time
}

// IsTerminal reports whether the booking can no longer change status.
func (b *Booking) IsTerminal() bool {
	return b.Status == BookingRejected || b.Status == BookingCancelledByRider
}

// Event records one status transition for audit/history.
type Event struct {
	ID         int64
	TripID     types.ID
	BookingID  *types.ID
	FromStatus string
	ToStatus   string
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// bookingTransitions represents the booking state flow as code.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:  {BookingAccepted, BookingRejected, BookingCancelledByRider},
	BookingAccepted: {BookingCancelledByRider},
}

// CanTransitionBooking reports whether a booking may move from one status
// to another. Terminal statuses have no outgoing transitions.
func CanTransitionBooking(from, to BookingStatus) bool {
	next, ok := bookingTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
