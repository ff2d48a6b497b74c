// README: Carpooler handlers: profiles, route templates, availability windows.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tandem/internal/http/middleware"
	"tandem/internal/modules/carpooler"
	"tandem/internal/types"
)

type CarpoolerHandler struct {
	carpooler *carpooler.Service
}

func NewCarpoolerHandler(svc *carpooler.Service) *CarpoolerHandler {
	return &CarpoolerHandler{carpooler: svc}
}

type createProfileReq struct {
	VehicleMake  string `json:"vehicle_make"`
	VehicleModel string `json:"vehicle_model"`
	VehiclePlate string `json:"vehicle_plate"`
	DefaultSeats int    `json:"default_seats"`
}

// CreateProfile handles POST /api/carpoolers.
func (h *CarpoolerHandler) CreateProfile(c *gin.Context) {
	var req createProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.carpooler.CreateProfile(c.Request.Context(), carpooler.CreateProfileCommand{
		UserID:       types.ID(middleware.CallerID(c)),
		VehicleMake:  req.VehicleMake,
		VehicleModel: req.VehicleModel,
		VehiclePlate: req.VehiclePlate,
		DefaultSeats: req.DefaultSeats,
	})
	if err != nil {
		writeCarpoolerError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"carpooler_id": id})
}

type createRouteReq struct {
	FromLabel  string  `json:"from_label"`
	FromLat    float64 `json:"from_lat"`
	FromLng    float64 `json:"from_lng"`
	ToLabel    string  `json:"to_label"`
	ToLat      float64 `json:"to_lat"`
	ToLng      float64 `json:"to_lng"`
	FromSiteID string  `json:"from_site_id,omitempty"`
	ToSiteID   string  `json:"to_site_id,omitempty"`
}

// CreateRoute handles POST /api/routes.
func (h *CarpoolerHandler) CreateRoute(c *gin.Context) {
	var req createRouteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := carpooler.CreateRouteTemplateCommand{
		CarpoolerID: types.ID(middleware.CallerID(c)),
		FromLabel:   req.FromLabel,
		From:        types.Point{Lat: req.FromLat, Lng: req.FromLng},
		ToLabel:     req.ToLabel,
		To:          types.Point{Lat: req.ToLat, Lng: req.ToLng},
	}
	if req.FromSiteID != "" {
		id := types.ID(req.FromSiteID)
		cmd.FromSiteID = &id
	}
	if req.ToSiteID != "" {
		id := types.ID(req.ToSiteID)
		cmd.ToSiteID = &id
	}
	id, err := h.carpooler.CreateRouteTemplate(c.Request.Context(), cmd)
	if err != nil {
		writeCarpoolerError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"route_template_id": id})
}

type createAvailabilityReq struct {
	RouteTemplateID string     `json:"route_template_id"`
	Kind            string     `json:"kind"`
	StartAt         *time.Time `json:"start_at,omitempty"`
	EndAt           *time.Time `json:"end_at,omitempty"`
	WeekdayMask     int        `json:"weekday_mask,omitempty"`
	TimeWindowStart string     `json:"time_window_start,omitempty"`
	TimeWindowEnd   string     `json:"time_window_end,omitempty"`
}

// CreateAvailability handles POST /api/availabilities.
func (h *CarpoolerHandler) CreateAvailability(c *gin.Context) {
	var req createAvailabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.carpooler.CreateAvailability(c.Request.Context(), carpooler.CreateAvailabilityCommand{
		CarpoolerID:     types.ID(middleware.CallerID(c)),
		RouteTemplateID: types.ID(req.RouteTemplateID),
		Kind:            carpooler.AvailabilityKind(req.Kind),
		StartAt:         req.StartAt,
		EndAt:           req.EndAt,
		WeekdayMask:     req.WeekdayMask,
		TimeWindowStart: req.TimeWindowStart,
		TimeWindowEnd:   req.TimeWindowEnd,
	})
	if err != nil {
		writeCarpoolerError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"availability_id": id})
}

// ToggleAvailability handles POST /api/availabilities/:id/toggle.
func (h *CarpoolerHandler) ToggleAvailability(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing availability id")
		return
	}
	active, err := h.carpooler.ToggleAvailability(c.Request.Context(), types.ID(id))
	if err != nil {
		writeCarpoolerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"availability_id": id, "active": active})
}

// ListAvailabilities handles GET /api/availabilities.
func (h *CarpoolerHandler) ListAvailabilities(c *gin.Context) {
	out, err := h.carpooler.ListAvailabilities(c.Request.Context(), types.ID(middleware.CallerID(c)))
	if err != nil {
		writeCarpoolerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"availabilities": out})
}
