// README: Matching engine result types.
package matching

import (
	"errors"
	"time"

	"tandem/internal/modules/carpooler"
	"tandem/internal/modules/stops"
)

var ErrBadRequest = errors.New("bad request")

// StopMatch is a pickup point paired with its exact distance to the query
// anchor (a point for nearby queries, a segment for along-route queries).
type StopMatch struct {
	Stop           stops.StopCandidate `json:"stop"`
	DistanceMeters float64             `json:"distance_meters"`
}

// RouteMatch scores a route template against a rider's origin/destination.
// Score is the sum of both endpoint distances; lower is better.
type RouteMatch struct {
	Route                carpooler.RouteTemplate `json:"route"`
	OriginDistanceMeters float64                 `json:"origin_distance_meters"`
	DestDistanceMeters   float64                 `json:"dest_distance_meters"`
	Score                float64                 `json:"score"`
}

// TravelEstimate is an optional enrichment attached to the chosen match.
type TravelEstimate struct {
	Duration time.Duration `json:"duration"`
	Distance string        `json:"distance"`
}

// MatchResult is the full outcome of a best-route query. Chosen always
// equals LocalBest unless the external oracle both ran and returned a valid
// pick, in which case UsedOracle is true. OracleAttempted records that an
// oracle call was issued even when it failed or timed out and the result
// fell back to the local ranking.
type MatchResult struct {
	Matches         []RouteMatch    `json:"matches"`
	LocalBest       *RouteMatch     `json:"local_best,omitempty"`
	Chosen          *RouteMatch     `json:"chosen,omitempty"`
	UsedOracle      bool            `json:"used_oracle"`
	OracleAttempted bool            `json:"oracle_attempted"`
	Estimate        *TravelEstimate `json:"estimate,omitempty"`
}
