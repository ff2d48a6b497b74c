// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tandem/internal/http/handlers"
	"tandem/internal/http/middleware"
	"tandem/internal/modules/carpooler"
	"tandem/internal/modules/matching"
	"tandem/internal/modules/stops"
	"tandem/internal/modules/trip"
)

type ServerDeps struct {
	Stops     *stops.Service
	Carpooler *carpooler.Service
	Matching  *matching.Service
	Trip      *trip.Service
}

// NewRouter wires the gin engine with all module handlers. Every /api route
// requires a caller identity; /health does not.
func NewRouter(deps ServerDeps) http.Handler {
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Session())

	stopsHandler := handlers.NewStopsHandler(deps.Stops)
	api.POST("/sites", stopsHandler.CreateSite)
	api.POST("/pickup-points", stopsHandler.CreatePickupPoint)
	api.PATCH("/pickup-points/:id/active", stopsHandler.SetPickupPointActive)
	api.POST("/stops/generated", stopsHandler.SaveGeneratedStop)

	matchingHandler := handlers.NewMatchingHandler(deps.Matching)
	api.GET("/stops/nearby", matchingHandler.NearestStops)
	api.GET("/stops/along-route", matchingHandler.StopsAlongRoute)
	api.POST("/matches/routes", matchingHandler.MatchRoutes)

	carpoolerHandler := handlers.NewCarpoolerHandler(deps.Carpooler)
	api.POST("/carpoolers", carpoolerHandler.CreateProfile)
	api.POST("/routes", carpoolerHandler.CreateRoute)
	api.POST("/availabilities", carpoolerHandler.CreateAvailability)
	api.POST("/availabilities/:id/toggle", carpoolerHandler.ToggleAvailability)
	api.GET("/availabilities", carpoolerHandler.ListAvailabilities)

	tripHandler := handlers.NewTripHandler(deps.Trip)
	api.POST("/trips", tripHandler.Create)
	api.GET("/trips/:id", tripHandler.Get)
	api.POST("/trips/:id/cancel", tripHandler.Cancel)
	api.GET("/trips/:id/bookings", tripHandler.ListBookings)
	api.POST("/trips/:id/requests", tripHandler.RequestSeat)
	api.POST("/trips/:id/join", tripHandler.Join)
	api.POST("/trips/:id/leave", tripHandler.Leave)
	api.POST("/bookings/:id/decide", tripHandler.Decide)
	api.POST("/bookings/:id/cancel", tripHandler.CancelBooking)

	return r
}
