// README: Matching handlers: nearby stops, best-route match, along-route stops.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tandem/internal/http/middleware"
	"tandem/internal/modules/matching"
	"tandem/internal/types"
)

type MatchingHandler struct {
	matching *matching.Service
}

func NewMatchingHandler(svc *matching.Service) *MatchingHandler {
	return &MatchingHandler{matching: svc}
}

// NearestStops handles GET /api/stops/nearby?lat=&lng=&radius_m=&limit=&with_trip=.
func (h *MatchingHandler) NearestStops(c *gin.Context) {
	lat, ok1 := queryFloat(c, "lat")
	lng, ok2 := queryFloat(c, "lng")
	if !ok1 || !ok2 {
		writeError(c, http.StatusBadRequest, "missing or invalid lat/lng")
		return
	}
	radius, _ := queryFloat(c, "radius_m")
	limit, _ := queryInt(c, "limit")
	withTrip := c.Query("with_trip") == "true"

	out, err := h.matching.NearestStops(c.Request.Context(), matching.NearestStopsQuery{
		Center:       types.Point{Lat: lat, Lng: lng},
		RadiusMeters: radius,
		Limit:        limit,
		RequireTrip:  withTrip,
	})
	if err != nil {
		writeMatchingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"stops": out})
}

type matchRoutesReq struct {
	OriginLat      float64 `json:"origin_lat"`
	OriginLng      float64 `json:"origin_lng"`
	DestinationLat float64 `json:"destination_lat"`
	DestinationLng float64 `json:"destination_lng"`
	MaxEndpointM   float64 `json:"max_endpoint_m"`
	Limit          int     `json:"limit"`
}

// MatchRoutes handles POST /api/matches/routes.
func (h *MatchingHandler) MatchRoutes(c *gin.Context) {
	var req matchRoutesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	res, err := h.matching.MatchRoutes(c.Request.Context(), matching.MatchRoutesQuery{
		RiderID:           types.ID(middleware.CallerID(c)),
		Origin:            types.Point{Lat: req.OriginLat, Lng: req.OriginLng},
		Destination:       types.Point{Lat: req.DestinationLat, Lng: req.DestinationLng},
		MaxEndpointMeters: req.MaxEndpointM,
		Limit:             req.Limit,
	})
	if err != nil {
		writeMatchingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// StopsAlongRoute handles GET /api/stops/along-route?from_lat=&from_lng=&to_lat=&to_lng=&buffer_m=&limit=.
func (h *MatchingHandler) StopsAlongRoute(c *gin.Context) {
	fromLat, ok1 := queryFloat(c, "from_lat")
	fromLng, ok2 := queryFloat(c, "from_lng")
	toLat, ok3 := queryFloat(c, "to_lat")
	toLng, ok4 := queryFloat(c, "to_lng")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		writeError(c, http.StatusBadRequest, "missing or invalid route endpoints")
		return
	}
	buffer, _ := queryFloat(c, "buffer_m")
	limit, _ := queryInt(c, "limit")

	out, err := h.matching.StopsAlongRoute(c.Request.Context(), matching.AlongRouteQuery{
		From:         types.Point{Lat: fromLat, Lng: fromLng},
		To:           types.Point{Lat: toLat, Lng: toLng},
		BufferMeters: buffer,
		Limit:        limit,
	})
	if err != nil {
		writeMatchingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"stops": out})
}

func queryFloat(c *gin.Context, key string) (float64, bool) {
	v := c.Query(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func queryInt(c *gin.Context, key string) (int, bool) {
	v := c.Query(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
