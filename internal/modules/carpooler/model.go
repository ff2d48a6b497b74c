// README: Carpooler profile, route template, and availability entities.
package carpooler

import (
	"errors"
	"time"

	"tandem/internal/types"
)

var (
	ErrNotFound   = errors.New("carpooler record not found")
	ErrBadRequest = errors.New("bad request")
)

// Profile is the driver-side record, one-to-one with a user. It holds
// vehicle metadata and the default seat count used when a trip omits one.
type Profile struct {
	ID           types.ID
	UserID       types.ID
	VehicleMake  string
	VehicleModel string
	VehiclePlate string
	DefaultSeats int
	CreatedAt    time.Time
}

// RouteTemplate is a driver-declared origin/destination pair. Site anchors
// are optional.
type RouteTemplate struct {
	ID          types.ID
	CarpoolerID types.ID
	FromLabel   string
	From        types.Point
	ToLabel     string
	To          types.Point
	FromSiteID  *types.ID
	ToSiteID    *types.ID
	CreatedAt   time.Time
}

// AvailabilityKind discriminates one-off windows from recurring patterns.
type AvailabilityKind string

const (
	KindOneOff    AvailabilityKind = "one_off"
	KindRecurring AvailabilityKind = "recurring"
)

// Availability is an offered driving window tied to a route template.
// ONE_OFF rows use StartAt/EndAt; RECURRING rows use WeekdayMask (bit 0 =
// Sunday, matching time.Weekday) plus an HH:MM time-of-day window.
type Availability struct {
	ID              types.ID
	CarpoolerID     types.ID
	RouteTemplateID types.ID
	Kind            AvailabilityKind
	StartAt         *time.Time
	EndAt           *time.Time
	WeekdayMask     int
	TimeWindowStart string
	TimeWindowEnd   string
	IsActive        bool
	CreatedAt       time.Time
}

// CoversTime reports whether t falls inside this availability window.
// Inactive rows never cover anything.
func (a *Availability) CoversTime(t time.Time) bool {
	if !a.IsActive {
		return false
	}
	switch a.Kind {
	case KindOneOff:
		if a.StartAt == nil || a.EndAt == nil {
			return false
		}
		return !t.Before(*a.StartAt) && !t.After(*a.EndAt)
	case KindRecurring:
		if a.WeekdayMask&(1<<int(t.Weekday())) == 0 {
			return false
		}
		hhmm := t.Format("15:04")
		return a.TimeWindowStart <= hhmm && hhmm <= a.TimeWindowEnd
	}
	return false
}
