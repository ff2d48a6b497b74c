// README: Trip lifecycle service: seat requests, driver decisions, joins, and cancellations.
package trip

import (
	"context"
	"log"
	"time"

	"tandem/internal/types"
)

// seatRetryAttempts bounds internal retries when an optimistic update loses
// a race; once exhausted the failure surfaces as ErrConflict.
const seatRetryAttempts = 3

// Store is the persistence contract for the lifecycle manager. Every seat
// mutation it exposes is a single atomic unit against the backing store.
type Store interface {
	CreateTrip(ctx context.Context, t *Trip, stops []TripStop) error
	GetTrip(ctx context.Context, id types.ID) (*Trip, error)
	// CancelTrip moves the trip to cancelled iff its status and version
	// still match; reports whether the row was updated.
	CancelTrip(ctx context.Context, id types.ID, from TripStatus, version int) (bool, error)

	// ClaimSeat atomically checks capacity and increments seats_taken,
	// locking the trip when the last seat goes; reports whether a seat
	// was claimed. Only OPEN trips can be claimed.
	ClaimSeat(ctx context.Context, id types.ID) (bool, error)
	// ReleaseSeat atomically decrements seats_taken and reopens a locked
	// trip. A cancelled trip is left untouched.
	ReleaseSeat(ctx context.Context, id types.ID) error
	// JoinTrip claims a seat and inserts an accepted booking in one unit
	// of work; both happen or neither does. Returns ErrTripNotFound,
	// ErrTripFull (no free seat, including a trip locked by filling up),
	// ErrTripNotOpen (cancelled), or ErrAlreadyRequested on failure.
	JoinTrip(ctx context.Context, b *Booking) error

	// CreateBooking inserts a pending booking; returns ErrAlreadyRequested
	// when a non-terminal booking already exists for the (trip, rider) pair.
	CreateBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, id types.ID) (*Booking, error)
	// ActiveBookingForRider returns the rider's non-terminal booking on a
	// trip, or ErrBookingNotFound.
	ActiveBookingForRider(ctx context.Context, tripID, riderID types.ID) (*Booking, error)
	// UpdateBookingStatus is an optimistic compare-and-set on status and
	// version; reports whether the row was updated.
	UpdateBookingStatus(ctx context.Context, id types.ID, from, to BookingStatus, version int) (bool, error)
	ListBookingsForTrip(ctx context.Context, tripID types.ID) ([]Booking, error)
	ListTripStops(ctx context.Context, tripID types.ID) ([]TripStop, error)

	AppendEvent(ctx context.Context, e *Event) error
}

// AvailabilityChecker is the advisory hook trip creation uses to warn when a
// departure falls outside every active availability window.
type AvailabilityChecker interface {
	HasActiveWindowAt(ctx context.Context, routeTemplateID types.ID, t time.Time) (bool, error)
}

// SeatDefaulter resolves a driver's default seat count when a trip is
// published without one.
type SeatDefaulter interface {
	DefaultSeatsFor(ctx context.Context, userID types.ID) (int, error)
}

type Service struct {
	store        Store
	availability AvailabilityChecker
	seats        SeatDefaulter
}

// NewService creates the lifecycle manager. availability and seats may be
// nil; a nil availability skips the advisory window check, a nil seats makes
// an explicit seat count mandatory.
func NewService(store Store, availability AvailabilityChecker, seats SeatDefaulter) *Service {
	return &Service{store: store, availability: availability, seats: seats}
}

type StopInput struct {
	Label         string
	Position      types.Point
	PickupPointID *types.ID
}

type CreateTripCommand struct {
	CarpoolerID     types.ID
	RouteTemplateID types.ID
	DepartureAt     time.Time
	SeatsTotal      int
	Stops           []StopInput
}

// CreateTrip publishes a trip. A zero SeatsTotal falls back to the driver's
// profile default seat count.
func (s *Service) CreateTrip(ctx context.Context, cmd CreateTripCommand) (types.ID, error) {
	if cmd.CarpoolerID == "" || cmd.RouteTemplateID == "" || cmd.SeatsTotal < 0 {
		return "", ErrBadRequest
	}
	if cmd.DepartureAt.IsZero() {
		return "", ErrBadRequest
	}
	if cmd.SeatsTotal == 0 {
		if s.seats == nil {
			return "", ErrBadRequest
		}
		n, err := s.seats.DefaultSeatsFor(ctx, cmd.CarpoolerID)
		if err != nil || n < 1 {
			return "", ErrBadRequest
		}
		cmd.SeatsTotal = n
	}

	if s.availability != nil {
		covered, err := s.availability.HasActiveWindowAt(ctx, cmd.RouteTemplateID, cmd.DepartureAt)
		if err == nil && !covered {
			// Advisory only: the driver may still publish outside a window.
			log.Printf("trip: departure %s outside active availability for route %s",
				cmd.DepartureAt.Format(time.RFC3339), cmd.RouteTemplateID)
		}
	}

	now := time.Now()
	t := &Trip{
		ID:              types.NewID(),
		CarpoolerID:     cmd.CarpoolerID,
		RouteTemplateID: cmd.RouteTemplateID,
		DepartureAt:     cmd.DepartureAt,
		SeatsTotal:      cmd.SeatsTotal,
		SeatsTaken:      0,
		Status:          TripOpen,
		CreatedAt:       now,
	}
	stops := make([]TripStop, len(cmd.Stops))
	for i, in := range cmd.Stops {
		stops[i] = TripStop{
			ID:            types.NewID(),
			TripID:        t.ID,
			Seq:           i,
			Label:         in.Label,
			Position:      in.Position,
			PickupPointID: in.PickupPointID,
		}
	}
	if err := s.store.CreateTrip(ctx, t, stops); err != nil {
		return "", err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		TripID:     t.ID,
		FromStatus: "",
		ToStatus:   string(TripOpen),
		ActorType:  "driver",
		ActorID:    &cmd.CarpoolerID,
		CreatedAt:  now,
	})
	return t.ID, nil
}

type CancelTripCommand struct {
	TripID      types.ID
	CarpoolerID types.ID
}

// CancelTrip moves a trip to its terminal cancelled state. The trip is kept
// for history; existing bookings stay as they are and the trip never accepts
// seats again.
func (s *Service) CancelTrip(ctx context.Context, cmd CancelTripCommand) error {
	for attempt := 0; attempt < seatRetryAttempts; attempt++ {
		t, err := s.store.GetTrip(ctx, cmd.TripID)
		if err != nil {
			return err
		}
		if t.CarpoolerID != cmd.CarpoolerID {
			return ErrTripNotFound
		}
		if t.Status == TripCancelled {
			return ErrTripCancelled
		}
		ok, err := s.store.CancelTrip(ctx, t.ID, t.Status, t.StatusVersion)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		_ = s.store.AppendEvent(ctx, &Event{
			TripID:     t.ID,
			FromStatus: string(t.Status),
			ToStatus:   string(TripCancelled),
			ActorType:  "driver",
			ActorID:    &cmd.CarpoolerID,
			CreatedAt:  time.Now(),
		})
		return nil
	}
	return ErrConflict
}

func (s *Service) GetTrip(ctx context.Context, id types.ID) (*Trip, error) {
	return s.store.GetTrip(ctx, id)
}

func (s *Service) GetBooking(ctx context.Context, id types.ID) (*Booking, error) {
	return s.store.GetBooking(ctx, id)
}

func (s *Service) ListBookings(ctx context.Context, tripID types.ID) ([]Booking, error) {
	return s.store.ListBookingsForTrip(ctx, tripID)
}

func (s *Service) ListStops(ctx context.Context, tripID types.ID) ([]TripStop, error) {
	return s.store.ListTripStops(ctx, tripID)
}

type RequestSeatCommand struct {
	TripID        types.ID
	RiderID       types.ID
	PickupPointID *types.ID
}

// RequestSeat creates a pending booking. Seat accounting is untouched until
// the driver decides.
func (s *Service) RequestSeat(ctx context.Context, cmd RequestSeatCommand) (*Booking, error) {
	if cmd.TripID == "" || cmd.RiderID == "" {
		return nil, ErrBadRequest
	}
	t, err := s.store.GetTrip(ctx, cmd.TripID)
	if err != nil {
		return nil, err
	}
	if t.Status != TripOpen && t.Status != TripLocked {
		return nil, ErrTripClosed
	}

	b := &Booking{
		ID:            types.NewID(),
		TripID:        cmd.TripID,
		RiderID:       cmd.RiderID,
		PickupPointID: cmd.PickupPointID,
		Status:        BookingPending,
		CreatedAt:     time.Now(),
	}
	if err := s.store.CreateBooking(ctx, b); err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		TripID:     cmd.TripID,
		BookingID:  &b.ID,
		FromStatus: "",
		ToStatus:   string(BookingPending),
		ActorType:  "rider",
		ActorID:    &cmd.RiderID,
		CreatedAt:  b.CreatedAt,
	})
	return b, nil
}

type DecideCommand struct {
	BookingID types.ID
	DriverID  types.ID
	Accept    bool
}

// Decide resolves a pending booking. Only the trip's own driver may decide;
// anyone else sees ErrBookingNotFound. Accepting claims a seat atomically and
// locks the trip when the last seat goes; rejecting changes no seat counts.
func (s *Service) Decide(ctx context.Context, cmd DecideCommand) (*Booking, error) {
	if cmd.Accept {
		return s.decideAccept(ctx, cmd)
	}
	return s.decideReject(ctx, cmd)
}

func (s *Service) decideAccept(ctx context.Context, cmd DecideCommand) (*Booking, error) {
	for attempt := 0; attempt < seatRetryAttempts; attempt++ {
		b, err := s.store.GetBooking(ctx, cmd.BookingID)
		if err != nil {
			return nil, err
		}
		if !CanTransitionBooking(b.Status, BookingAccepted) {
			return nil, ErrInvalidState
		}
		t, err := s.store.GetTrip(ctx, b.TripID)
		if err != nil {
			return nil, err
		}
		if t.CarpoolerID != cmd.DriverID {
			return nil, ErrBookingNotFound
		}
		if t.Status == TripCancelled {
			return nil, ErrTripCancelled
		}
		if t.SeatsTaken >= t.SeatsTotal {
			return nil, ErrTripFull
		}

		claimed, err := s.store.ClaimSeat(ctx, b.TripID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Lost the last seat to a concurrent claim, or the trip was
			// cancelled underneath us; re-read to classify.
			t, err := s.store.GetTrip(ctx, b.TripID)
			if err != nil {
				return nil, err
			}
			if t.Status == TripCancelled {
				return nil, ErrTripCancelled
			}
			return nil, ErrTripFull
		}

		ok, err := s.store.UpdateBookingStatus(ctx, b.ID, b.Status, BookingAccepted, b.StatusVersion)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Booking changed concurrently (e.g. rider cancelled); give the
			// seat back and retry against the fresh state.
			if relErr := s.store.ReleaseSeat(ctx, b.TripID); relErr != nil {
				return nil, relErr
			}
			continue
		}

		_ = s.store.AppendEvent(ctx, &Event{
			TripID:     b.TripID,
			BookingID:  &b.ID,
			FromStatus: string(BookingPending),
			ToStatus:   string(BookingAccepted),
			ActorType:  "driver",
			ActorID:    &cmd.DriverID,
			CreatedAt:  time.Now(),
		})
		return s.store.GetBooking(ctx, b.ID)
	}
	return nil, ErrConflict
}

func (s *Service) decideReject(ctx context.Context, cmd DecideCommand) (*Booking, error) {
	for attempt := 0; attempt < seatRetryAttempts; attempt++ {
		b, err := s.store.GetBooking(ctx, cmd.BookingID)
		if err != nil {
			return nil, err
		}
		if !CanTransitionBooking(b.Status, BookingRejected) {
			return nil, ErrInvalidState
		}
		t, err := s.store.GetTrip(ctx, b.TripID)
		if err != nil {
			return nil, err
		}
		if t.CarpoolerID != cmd.DriverID {
			return nil, ErrBookingNotFound
		}
		ok, err := s.store.UpdateBookingStatus(ctx, b.ID, b.Status, BookingRejected, b.StatusVersion)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		_ = s.store.AppendEvent(ctx, &Event{
			TripID:     b.TripID,
			BookingID:  &b.ID,
			FromStatus: string(BookingPending),
			ToStatus:   string(BookingRejected),
			ActorType:  "driver",
			ActorID:    &cmd.DriverID,
			CreatedAt:  time.Now(),
		})
		return s.store.GetBooking(ctx, b.ID)
	}
	return nil, ErrConflict
}

type CancelByRiderCommand struct {
	BookingID types.ID
	RiderID   types.ID
}

// CancelByRider cancels the rider's own booking. Cancelling an accepted
// booking frees the seat and forces a locked trip back to open.
func (s *Service) CancelByRider(ctx context.Context, cmd CancelByRiderCommand) (*Booking, error) {
	for attempt := 0; attempt < seatRetryAttempts; attempt++ {
		b, err := s.store.GetBooking(ctx, cmd.BookingID)
		if err != nil {
			return nil, err
		}
		if b.RiderID != cmd.RiderID {
			return nil, ErrBookingNotFound
		}
		if !CanTransitionBooking(b.Status, BookingCancelledByRider) {
			return nil, ErrInvalidState
		}
		wasAccepted := b.Status == BookingAccepted

		ok, err := s.store.UpdateBookingStatus(ctx, b.ID, b.Status, BookingCancelledByRider, b.StatusVersion)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if wasAccepted {
			if err := s.store.ReleaseSeat(ctx, b.TripID); err != nil {
				return nil, err
			}
		}
		_ = s.store.AppendEvent(ctx, &Event{
			TripID:     b.TripID,
			BookingID:  &b.ID,
			FromStatus: string(b.Status),
			ToStatus:   string(BookingCancelledByRider),
			ActorType:  "rider",
			ActorID:    &cmd.RiderID,
			CreatedAt:  time.Now(),
		})
		return s.store.GetBooking(ctx, b.ID)
	}
	return nil, ErrConflict
}

type JoinTripCommand struct {
	TripID        types.ID
	RiderID       types.ID
	PickupPointID *types.ID
}

// JoinTrip is the direct-accept shortcut: the capacity check and the seat
// increment happen in one atomic unit in the store, so two racing joins on
// the last seat resolve to exactly one accepted booking and one ErrTripFull.
func (s *Service) JoinTrip(ctx context.Context, cmd JoinTripCommand) (*Booking, error) {
	if cmd.TripID == "" || cmd.RiderID == "" {
		return nil, ErrBadRequest
	}
	now := time.Now()
	b := &Booking{
		ID:            types.NewID(),
		TripID:        cmd.TripID,
		RiderID:       cmd.RiderID,
		PickupPointID: cmd.PickupPointID,
		Status:        BookingAccepted,
		CreatedAt:     now,
		DecidedAt:     &now,
	}
	if err := s.store.JoinTrip(ctx, b); err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		TripID:     cmd.TripID,
		BookingID:  &b.ID,
		FromStatus: "",
		ToStatus:   string(BookingAccepted),
		ActorType:  "rider",
		ActorID:    &cmd.RiderID,
		CreatedAt:  now,
	})
	return b, nil
}

type LeaveTripCommand struct {
	TripID  types.ID
	RiderID types.ID
}

// LeaveTrip is the inverse of JoinTrip: it cancels the rider's non-terminal
// booking and, if it was accepted, frees the seat.
func (s *Service) LeaveTrip(ctx context.Context, cmd LeaveTripCommand) (*Booking, error) {
	if cmd.TripID == "" || cmd.RiderID == "" {
		return nil, ErrBadRequest
	}
	b, err := s.store.ActiveBookingForRider(ctx, cmd.TripID, cmd.RiderID)
	if err != nil {
		return nil, err
	}
	return s.CancelByRider(ctx, CancelByRiderCommand{BookingID: b.ID, RiderID: cmd.RiderID})
}
