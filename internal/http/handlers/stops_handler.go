// README: Stop management handlers: sites, pickup points, generated stops.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tandem/internal/http/middleware"
	"tandem/internal/modules/stops"
	"tandem/internal/types"
)

type StopsHandler struct {
	stops *stops.Service
}

func NewStopsHandler(svc *stops.Service) *StopsHandler {
	return &StopsHandler{stops: svc}
}

type createSiteReq struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// CreateSite handles POST /api/sites.
func (h *StopsHandler) CreateSite(c *gin.Context) {
	var req createSiteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.stops.CreateSite(c.Request.Context(), stops.CreateSiteCommand{
		Code:     req.Code,
		Name:     req.Name,
		Address:  req.Address,
		Position: types.Point{Lat: req.Lat, Lng: req.Lng},
	})
	if err != nil {
		writeStopsError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"site_id": id})
}

type createPickupPointReq struct {
	SiteID string  `json:"site_id"`
	Label  string  `json:"label"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

// CreatePickupPoint handles POST /api/pickup-points.
func (h *StopsHandler) CreatePickupPoint(c *gin.Context) {
	var req createPickupPointReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.stops.CreatePickupPoint(c.Request.Context(), stops.CreatePickupPointCommand{
		SiteID:   types.ID(req.SiteID),
		Label:    req.Label,
		Position: types.Point{Lat: req.Lat, Lng: req.Lng},
	})
	if err != nil {
		writeStopsError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"pickup_point_id": id})
}

type setActiveReq struct {
	Active bool `json:"active"`
}

// SetPickupPointActive handles PATCH /api/pickup-points/:id/active.
func (h *StopsHandler) SetPickupPointActive(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing pickup point id")
		return
	}
	var req setActiveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.stops.SetPickupPointActive(c.Request.Context(), types.ID(id), req.Active); err != nil {
		writeStopsError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"pickup_point_id": id, "active": req.Active})
}

type saveGeneratedStopReq struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

// SaveGeneratedStop handles POST /api/stops/generated.
func (h *StopsHandler) SaveGeneratedStop(c *gin.Context) {
	var req saveGeneratedStopReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.stops.SaveGeneratedStop(c.Request.Context(), stops.SaveGeneratedStopCommand{
		RiderID:  types.ID(middleware.CallerID(c)),
		Label:    req.Label,
		Position: types.Point{Lat: req.Lat, Lng: req.Lng},
	})
	if err != nil {
		writeStopsError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"stop_id": id})
}
