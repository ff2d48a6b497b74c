// README: HTTP-level tests for the trip lifecycle routes.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tandem/internal/http/handlers"
	"tandem/internal/http/middleware"
	"tandem/internal/modules/trip"
	"tandem/internal/types"
)

// fakeTripStore is an in-memory trip.Store with the same atomicity rules as
// the SQL store.
type fakeTripStore struct {
	mu       sync.Mutex
	trips    map[types.ID]*trip.Trip
	stops    map[types.ID][]trip.TripStop
	bookings map[types.ID]*trip.Booking
}

func newFakeTripStore() *fakeTripStore {
	return &fakeTripStore{
		trips:    make(map[types.ID]*trip.Trip),
		stops:    make(map[types.ID][]trip.TripStop),
		bookings: make(map[types.ID]*trip.Booking),
	}
}

func (f *fakeTripStore) CreateTrip(_ context.Context, t *trip.Trip, stops []trip.TripStop) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.trips[t.ID] = &cp
	f.stops[t.ID] = append([]trip.TripStop(nil), stops...)
	return nil
}

func (f *fakeTripStore) GetTrip(_ context.Context, id types.ID) (*trip.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trips[id]
	if !ok {
		return nil, trip.ErrTripNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTripStore) CancelTrip(_ context.Context, id types.ID, from trip.TripStatus, version int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trips[id]
	if !ok || t.Status != from || t.StatusVersion != version {
		return false, nil
	}
	now := time.Now()
	t.Status = trip.TripCancelled
	t.StatusVersion++
	t.CancelledAt = &now
	return true, nil
}

func (f *fakeTripStore) ClaimSeat(_ context.Context, id types.ID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claimLocked(id), nil
}

func (f *fakeTripStore) claimLocked(id types.ID) bool {
	t, ok := f.trips[id]
	if !ok || t.Status != trip.TripOpen || t.SeatsTaken >= t.SeatsTotal {
		return false
	}
	t.SeatsTaken++
	t.StatusVersion++
	if t.SeatsTaken >= t.SeatsTotal {
		t.Status = trip.TripLocked
	}
	return true
}

func (f *fakeTripStore) ReleaseSeat(_ context.Context, id types.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trips[id]
	if !ok || t.SeatsTaken == 0 || t.Status == trip.TripCancelled {
		return nil
	}
	t.SeatsTaken--
	t.StatusVersion++
	if t.Status == trip.TripLocked {
		t.Status = trip.TripOpen
	}
	return nil
}

func (f *fakeTripStore) JoinTrip(_ context.Context, b *trip.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trips[b.TripID]
	if !ok {
		return trip.ErrTripNotFound
	}
	if !f.claimLocked(b.TripID) {
		if t.Status != trip.TripCancelled && t.SeatsTaken >= t.SeatsTotal {
			return trip.ErrTripFull
		}
		return trip.ErrTripNotOpen
	}
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeTripStore) CreateBooking(_ context.Context, b *trip.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.bookings {
		if existing.TripID == b.TripID && existing.RiderID == b.RiderID && !existing.IsTerminal() {
			return trip.ErrAlreadyRequested
		}
	}
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeTripStore) GetBooking(_ context.Context, id types.ID) (*trip.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, trip.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeTripStore) ActiveBookingForRider(_ context.Context, tripID, riderID types.ID) (*trip.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.TripID == tripID && b.RiderID == riderID && !b.IsTerminal() {
			cp := *b
			return &cp, nil
		}
	}
	return nil, trip.ErrBookingNotFound
}

func (f *fakeTripStore) UpdateBookingStatus(_ context.Context, id types.ID, from, to trip.BookingStatus, version int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.Status != from || b.StatusVersion != version {
		return false, nil
	}
	b.Status = to
	b.StatusVersion++
	return true, nil
}

func (f *fakeTripStore) ListBookingsForTrip(_ context.Context, tripID types.ID) ([]trip.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []trip.Booking
	for _, b := range f.bookings {
		if b.TripID == tripID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeTripStore) ListTripStops(_ context.Context, tripID types.ID) ([]trip.TripStop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]trip.TripStop(nil), f.stops[tripID]...), nil
}

func (f *fakeTripStore) AppendEvent(_ context.Context, _ *trip.Event) error { return nil }

func buildTripRouter(store trip.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := trip.NewService(store, nil, nil)
	r := gin.New()
	api := r.Group("/api", middleware.Session())
	h := handlers.NewTripHandler(svc)
	api.POST("/trips", h.Create)
	api.GET("/trips/:id", h.Get)
	api.POST("/trips/:id/cancel", h.Cancel)
	api.POST("/trips/:id/requests", h.RequestSeat)
	api.POST("/trips/:id/join", h.Join)
	api.POST("/bookings/:id/decide", h.Decide)
	return r
}

func doRequest(r *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTripRoutes_RequireIdentity(t *testing.T) {
	r := buildTripRouter(newFakeTripStore())
	w := doRequest(r, http.MethodPost, "/api/trips", "", map[string]any{})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without X-User-ID, got %d", w.Code)
	}
}

func TestTripRoutes_CreateAndGet(t *testing.T) {
	r := buildTripRouter(newFakeTripStore())

	w := doRequest(r, http.MethodPost, "/api/trips", "driver-1", map[string]any{
		"route_template_id": "route-1",
		"departure_at":      time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"seats_total":       2,
		"stops": []map[string]any{
			{"label": "gate A", "lat": 25.0330, "lng": 121.5654},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create trip: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var created struct {
		TripID string `json:"trip_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.TripID == "" {
		t.Fatalf("bad create response: %s", w.Body.String())
	}

	w = doRequest(r, http.MethodGet, "/api/trips/"+created.TripID, "driver-1", nil)
	if w.Code != http.StatusOK {
		t.Errorf("get trip: expected 200, got %d", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/api/trips/nonexistent", "driver-1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get missing trip: expected 404, got %d", w.Code)
	}
}

func TestTripRoutes_SeatFlow(t *testing.T) {
	r := buildTripRouter(newFakeTripStore())

	w := doRequest(r, http.MethodPost, "/api/trips", "driver-1", map[string]any{
		"route_template_id": "route-1",
		"departure_at":      time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"seats_total":       1,
	})
	var created struct {
		TripID string `json:"trip_id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	w = doRequest(r, http.MethodPost, "/api/trips/"+created.TripID+"/requests", "rider-1", map[string]any{})
	if w.Code != http.StatusCreated {
		t.Fatalf("request seat: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var booked struct {
		BookingID string `json:"booking_id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &booked)

	w = doRequest(r, http.MethodPost, "/api/bookings/"+booked.BookingID+"/decide", "driver-1", map[string]any{"accept": true})
	if w.Code != http.StatusOK {
		t.Fatalf("decide: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	// Trip is now locked; a direct join conflicts.
	w = doRequest(r, http.MethodPost, "/api/trips/"+created.TripID+"/join", "rider-2", map[string]any{})
	if w.Code != http.StatusConflict {
		t.Errorf("join on locked trip: expected 409, got %d", w.Code)
	}
}

func TestTripRoutes_CancelByOwnerOnly(t *testing.T) {
	r := buildTripRouter(newFakeTripStore())

	w := doRequest(r, http.MethodPost, "/api/trips", "driver-1", map[string]any{
		"route_template_id": "route-1",
		"departure_at":      time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"seats_total":       2,
	})
	var created struct {
		TripID string `json:"trip_id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	w = doRequest(r, http.MethodPost, "/api/trips/"+created.TripID+"/cancel", "stranger", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("cancel by stranger: expected 404, got %d", w.Code)
	}

	w = doRequest(r, http.MethodPost, "/api/trips/"+created.TripID+"/cancel", "driver-1", nil)
	if w.Code != http.StatusOK {
		t.Errorf("cancel by owner: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
}
