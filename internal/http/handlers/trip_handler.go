// README: Trip lifecycle handlers: publish, cancel, seat requests, decisions, join/leave.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tandem/internal/http/middleware"
	"tandem/internal/modules/trip"
	"tandem/internal/types"
)

type TripHandler struct {
	trip *trip.Service
}

func NewTripHandler(svc *trip.Service) *TripHandler {
	return &TripHandler{trip: svc}
}

type tripStopReq struct {
	Label         string  `json:"label"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	PickupPointID string  `json:"pickup_point_id,omitempty"`
}

type createTripReq struct {
	RouteTemplateID string        `json:"route_template_id"`
	DepartureAt     time.Time     `json:"departure_at"`
	SeatsTotal      int           `json:"seats_total"`
	Stops           []tripStopReq `json:"stops"`
}

// Create handles POST /api/trips.
func (h *TripHandler) Create(c *gin.Context) {
	var req createTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := trip.CreateTripCommand{
		CarpoolerID:     types.ID(middleware.CallerID(c)),
		RouteTemplateID: types.ID(req.RouteTemplateID),
		DepartureAt:     req.DepartureAt,
		SeatsTotal:      req.SeatsTotal,
	}
	for _, s := range req.Stops {
		in := trip.StopInput{
			Label:    s.Label,
			Position: types.Point{Lat: s.Lat, Lng: s.Lng},
		}
		if s.PickupPointID != "" {
			id := types.ID(s.PickupPointID)
			in.PickupPointID = &id
		}
		cmd.Stops = append(cmd.Stops, in)
	}
	id, err := h.trip.CreateTrip(c.Request.Context(), cmd)
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"trip_id": id, "status": trip.TripOpen})
}

// Get handles GET /api/trips/:id.
func (h *TripHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return
	}
	t, err := h.trip.GetTrip(c.Request.Context(), types.ID(id))
	if err != nil {
		writeTripError(c, err)
		return
	}
	stops, err := h.trip.ListStops(c.Request.Context(), t.ID)
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"trip": t, "stops": stops})
}

// Cancel handles POST /api/trips/:id/cancel.
func (h *TripHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return
	}
	err := h.trip.CancelTrip(c.Request.Context(), trip.CancelTripCommand{
		TripID:      types.ID(id),
		CarpoolerID: types.ID(middleware.CallerID(c)),
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": trip.TripCancelled})
}

// ListBookings handles GET /api/trips/:id/bookings.
func (h *TripHandler) ListBookings(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return
	}
	bookings, err := h.trip.ListBookings(c.Request.Context(), types.ID(id))
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"bookings": bookings})
}

type requestSeatReq struct {
	PickupPointID string `json:"pickup_point_id,omitempty"`
}

// RequestSeat handles POST /api/trips/:id/requests.
func (h *TripHandler) RequestSeat(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return
	}
	var req requestSeatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := trip.RequestSeatCommand{
		TripID:  types.ID(id),
		RiderID: types.ID(middleware.CallerID(c)),
	}
	if req.PickupPointID != "" {
		pid := types.ID(req.PickupPointID)
		cmd.PickupPointID = &pid
	}
	b, err := h.trip.RequestSeat(c.Request.Context(), cmd)
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"booking_id": b.ID, "status": b.Status})
}

type decideReq struct {
	Accept bool `json:"accept"`
}

// Decide handles POST /api/bookings/:id/decide.
func (h *TripHandler) Decide(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing booking id")
		return
	}
	var req decideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	b, err := h.trip.Decide(c.Request.Context(), trip.DecideCommand{
		BookingID: types.ID(id),
		DriverID:  types.ID(middleware.CallerID(c)),
		Accept:    req.Accept,
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"booking_id": b.ID, "status": b.Status})
}

// CancelBooking handles POST /api/bookings/:id/cancel.
func (h *TripHandler) CancelBooking(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing booking id")
		return
	}
	b, err := h.trip.CancelByRider(c.Request.Context(), trip.CancelByRiderCommand{
		BookingID: types.ID(id),
		RiderID:   types.ID(middleware.CallerID(c)),
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"booking_id": b.ID, "status": b.Status})
}

type joinTripReq struct {
	PickupPointID string `json:"pickup_point_id,omitempty"`
}

// Join handles POST /api/trips/:id/join.
func (h *TripHandler) Join(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return
	}
	var req joinTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := trip.JoinTripCommand{
		TripID:  types.ID(id),
		RiderID: types.ID(middleware.CallerID(c)),
	}
	if req.PickupPointID != "" {
		pid := types.ID(req.PickupPointID)
		cmd.PickupPointID = &pid
	}
	b, err := h.trip.JoinTrip(c.Request.Context(), cmd)
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"booking_id": b.ID, "status": b.Status})
}

// Leave handles POST /api/trips/:id/leave.
func (h *TripHandler) Leave(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing trip id")
		return
	}
	b, err := h.trip.LeaveTrip(c.Request.Context(), trip.LeaveTripCommand{
		TripID:  types.ID(id),
		RiderID: types.ID(middleware.CallerID(c)),
	})
	if err != nil {
		writeTripError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"booking_id": b.ID, "status": b.Status})
}
