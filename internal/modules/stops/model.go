// README: Site, pickup point, and generated stop entities.
package stops

import (
	"errors"
	"time"

	"tandem/internal/types"
)

var (
	ErrNotFound   = errors.New("stop not found")
	ErrBadRequest = errors.New("bad request")
)

// Site is a named physical location that owns pickup points.
type Site struct {
	ID        types.ID
	Code      string
	Name      string
	Address   string
	Position  types.Point
	CreatedAt time.Time
}

// PickupPoint is a coordinate belonging to a Site. Inactive points are
// excluded from matching and trip pickup selection.
type PickupPoint struct {
	ID        types.ID
	SiteID    types.ID
	Label     string
	Position  types.Point
	IsActive  bool
	CreatedAt time.Time
}

// GeneratedStop is a client-proposed stop persisted for later matching reuse.
type GeneratedStop struct {
	ID        types.ID
	RiderID   types.ID
	Label     string
	Position  types.Point
	CreatedAt time.Time
}

// StopCandidate is a pickup point returned by the candidate prefilter,
// optionally carrying the next OPEN trip that serves it.
type StopCandidate struct {
	PickupPoint
	TripID *types.ID
}
