// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tandem/internal/modules/carpooler"
	"tandem/internal/modules/matching"
	"tandem/internal/modules/stops"
	"tandem/internal/modules/trip"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeTripError(c *gin.Context, err error) {
	switch err {
	case trip.ErrBadRequest:
		writeError(c, http.StatusBadRequest, err.Error())
	case trip.ErrTripNotFound, trip.ErrBookingNotFound:
		writeError(c, http.StatusNotFound, err.Error())
	case trip.ErrTripFull, trip.ErrTripClosed, trip.ErrTripNotOpen,
		trip.ErrTripCancelled, trip.ErrAlreadyRequested,
		trip.ErrInvalidState, trip.ErrConflict:
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeStopsError(c *gin.Context, err error) {
	switch err {
	case stops.ErrBadRequest:
		writeError(c, http.StatusBadRequest, err.Error())
	case stops.ErrNotFound:
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeCarpoolerError(c *gin.Context, err error) {
	switch err {
	case carpooler.ErrBadRequest:
		writeError(c, http.StatusBadRequest, err.Error())
	case carpooler.ErrNotFound:
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeMatchingError(c *gin.Context, err error) {
	switch err {
	case matching.ErrBadRequest:
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
