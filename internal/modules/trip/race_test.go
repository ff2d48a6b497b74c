// README: Concurrency tests for seat accounting. Run with -race.
package trip

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tandem/internal/types"
)

func TestConcurrentJoinsLastSeat(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, nil, nil)
	tripID := newTestTrip(t, svc, 1)

	const riders = 8
	var wg sync.WaitGroup
	results := make([]error, riders)
	for i := 0; i < riders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.JoinTrip(ctx, JoinTripCommand{
				TripID:  tripID,
				RiderID: riderID(i),
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	var won, full int
	for _, err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrTripFull):
			full++
		default:
			t.Errorf("unexpected join error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("winners = %d, want exactly 1", won)
	}
	// Every loser of the last-seat race sees fullness, not the lock.
	if full != riders-1 {
		t.Errorf("ErrTripFull losers = %d, want %d", full, riders-1)
	}

	trip, _ := svc.GetTrip(ctx, tripID)
	if trip.SeatsTaken != 1 || trip.Status != TripLocked {
		t.Errorf("trip = %s/%d taken, want locked/1", trip.Status, trip.SeatsTaken)
	}
}

func TestConcurrentAcceptsNeverOverbook(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, nil, nil)
	tripID := newTestTrip(t, svc, 2)

	const pending = 6
	bookings := make([]*Booking, pending)
	for i := 0; i < pending; i++ {
		b, err := svc.RequestSeat(ctx, RequestSeatCommand{TripID: tripID, RiderID: riderID(i)})
		if err != nil {
			t.Fatalf("RequestSeat %d: %v", i, err)
		}
		bookings[i] = b
	}

	var wg sync.WaitGroup
	results := make([]error, pending)
	for i := 0; i < pending; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Decide(ctx, DecideCommand{
				BookingID: bookings[i].ID,
				DriverID:  "driver-1",
				Accept:    true,
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	var accepted int
	for _, err := range results {
		if err == nil {
			accepted++
		} else if !errors.Is(err, ErrTripFull) {
			t.Errorf("unexpected accept error: %v", err)
		}
	}
	if accepted != 2 {
		t.Errorf("accepted = %d, want 2", accepted)
	}

	trip, _ := svc.GetTrip(ctx, tripID)
	if trip.SeatsTaken != 2 || trip.Status != TripLocked {
		t.Errorf("trip = %s/%d taken, want locked/2", trip.Status, trip.SeatsTaken)
	}
}

func TestConcurrentJoinAndCancel(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, nil, nil)
	tripID := newTestTrip(t, svc, 4)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		svc.JoinTrip(ctx, JoinTripCommand{TripID: tripID, RiderID: "rider-1"})
	}()
	go func() {
		defer wg.Done()
		time.Sleep(time.Millisecond)
		svc.CancelTrip(ctx, CancelTripCommand{TripID: tripID, CarpoolerID: "driver-1"})
	}()
	wg.Wait()

	trip, _ := svc.GetTrip(ctx, tripID)
	if trip.Status != TripCancelled {
		t.Fatalf("trip status = %s, want cancelled", trip.Status)
	}
	// Whatever the interleaving, seat count stays within bounds.
	if trip.SeatsTaken < 0 || trip.SeatsTaken > trip.SeatsTotal {
		t.Errorf("seats taken %d out of [0,%d]", trip.SeatsTaken, trip.SeatsTotal)
	}
}

func riderID(i int) types.ID {
	return types.ID("rider-" + string(rune('a'+i)))
}
