// README: Matching engine: nearby stops, best-route matching with an optional
// external ranking oracle, and along-route stop discovery.
package matching

import (
	"context"
	"fmt"
	"log"
	"time"

	"tandem/internal/ai"
	"tandem/internal/config"
	"tandem/internal/geo"
	"tandem/internal/modules/carpooler"
	"tandem/internal/modules/stops"
	"tandem/internal/types"
)

// CandidateSource provides the coarse bounding-box prefilter. It must return
// a superset of the stops within any radius whose box was derived from it;
// the engine applies the exact distance filter afterwards.
type CandidateSource interface {
	PickupPointsInBox(ctx context.Context, box geo.Box) ([]stops.StopCandidate, error)
}

// RouteSource lists the declared route templates, oldest first. Iteration
// order decides ties between equal-score matches.
type RouteSource interface {
	ListRouteTemplates(ctx context.Context) ([]carpooler.RouteTemplate, error)
}

// QuotaGate limits how often a rider may invoke the external oracle.
type QuotaGate interface {
	UseToken(ctx context.Context, riderID string) error
}

// TravelEstimator enriches the chosen match with a driving estimate.
type TravelEstimator interface {
	GetTravelEstimate(ctx context.Context, origin, destination string) (time.Duration, string, error)
}

// ResultCache is the optional nearby-stop cache. Implementations must treat
// failures as misses.
type ResultCache interface {
	GetNearestStops(ctx context.Context, center types.Point, radiusMeters float64, limit int, requireTrip bool) ([]StopMatch, bool)
	SetNearestStops(ctx context.Context, center types.Point, radiusMeters float64, limit int, requireTrip bool, matches []StopMatch)
}

type Service struct {
	candidates CandidateSource
	routes     RouteSource
	defaults   config.MatchingConfig

	cache         ResultCache
	ranker        ai.Ranker
	quota         QuotaGate
	oracleTimeout time.Duration
	estimator     TravelEstimator
}

func NewService(candidates CandidateSource, routes RouteSource, defaults config.MatchingConfig) *Service {
	return &Service{candidates: candidates, routes: routes, defaults: defaults}
}

// WithCache enables the nearby-stop result cache.
func (s *Service) WithCache(cache ResultCache) *Service {
	s.cache = cache
	return s
}

// WithOracle enables external re-ranking of best-route candidates. quota may
// be nil to rank without a per-rider budget.
func (s *Service) WithOracle(ranker ai.Ranker, quota QuotaGate, timeout time.Duration) *Service {
	s.ranker = ranker
	s.quota = quota
	s.oracleTimeout = timeout
	return s
}

// WithEstimator enables travel estimates on the chosen match.
func (s *Service) WithEstimator(estimator TravelEstimator) *Service {
	s.estimator = estimator
	return s
}

type NearestStopsQuery struct {
	Center       types.Point
	RadiusMeters float64
	Limit        int
	// RequireTrip keeps only stops served by an upcoming open trip.
	RequireTrip bool
}

// NearestStops returns active pickup points within the radius, closest first.
// The bounding-box prefilter never excludes a stop inside the radius; the
// exact haversine check trims the corners afterwards.
func (s *Service) NearestStops(ctx context.Context, q NearestStopsQuery) ([]StopMatch, error) {
	if !validPoint(q.Center) {
		return nil, ErrBadRequest
	}
	if q.RadiusMeters <= 0 {
		q.RadiusMeters = s.defaults.DefaultRadiusMeters
	}
	if q.Limit <= 0 {
		q.Limit = s.defaults.DefaultLimit
	}

	if s.cache != nil {
		if cached, ok := s.cache.GetNearestStops(ctx, q.Center, q.RadiusMeters, q.Limit, q.RequireTrip); ok {
			return cached, nil
		}
	}

	box := geo.BoundingBox(q.Center, q.RadiusMeters)
	candidates, err := s.candidates.PickupPointsInBox(ctx, box)
	if err != nil {
		return nil, err
	}

	matches := make([]StopMatch, 0, len(candidates))
	for _, c := range candidates {
		if q.RequireTrip && c.TripID == nil {
			continue
		}
		d := geo.PointDistanceMeters(q.Center, c.Position)
		if d > q.RadiusMeters {
			continue
		}
		matches = append(matches, StopMatch{Stop: c, DistanceMeters: d})
	}
	geo.SortByDistance(matches, func(m StopMatch) float64 { return m.DistanceMeters })
	if len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	if s.cache != nil {
		s.cache.SetNearestStops(ctx, q.Center, q.RadiusMeters, q.Limit, q.RequireTrip, matches)
	}
	return matches, nil
}

type MatchRoutesQuery struct {
	RiderID     types.ID
	Origin      types.Point
	Destination types.Point
	// MaxEndpointMeters bounds how far both route endpoints may sit from
	// the rider's own endpoints. Zero means no bound: every template is
	// scored and ranked.
	MaxEndpointMeters float64
	Limit             int
}

// MatchRoutes scores every route template against the rider's origin and
// destination and returns the candidates ordered by score. When the oracle is
// configured and the rider has quota, it may override the local pick; every
// oracle failure silently falls back to the local best.
func (s *Service) MatchRoutes(ctx context.Context, q MatchRoutesQuery) (*MatchResult, error) {
	if !validPoint(q.Origin) || !validPoint(q.Destination) {
		return nil, ErrBadRequest
	}
	if q.Limit <= 0 {
		q.Limit = s.defaults.DefaultLimit
	}

	routes, err := s.routes.ListRouteTemplates(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]RouteMatch, 0, len(routes))
	for _, r := range routes {
		od := geo.PointDistanceMeters(q.Origin, r.From)
		dd := geo.PointDistanceMeters(q.Destination, r.To)
		if q.MaxEndpointMeters > 0 && (od > q.MaxEndpointMeters || dd > q.MaxEndpointMeters) {
			continue
		}
		matches = append(matches, RouteMatch{
			Route:                r,
			OriginDistanceMeters: od,
			DestDistanceMeters:   dd,
			Score:                od + dd,
		})
	}
	geo.SortByDistance(matches, func(m RouteMatch) float64 { return m.Score })
	if len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	result := &MatchResult{Matches: matches}
	if len(matches) == 0 {
		return result, nil
	}
	result.LocalBest = &matches[0]
	result.Chosen = &matches[0]

	if s.ranker != nil && len(matches) > 1 {
		idx, attempted, ok := s.consultOracle(ctx, q, matches)
		result.OracleAttempted = attempted
		if ok {
			result.Chosen = &matches[idx]
			result.UsedOracle = true
		}
	}

	if s.estimator != nil {
		s.attachEstimate(ctx, result)
	}
	return result, nil
}

// consultOracle asks the external ranker to pick among the locally ranked
// candidates. Quota exhaustion, timeouts, transport errors, and out-of-range
// answers all degrade to the local ranking. attempted reports whether an
// oracle call was actually issued; a quota denial never reaches the oracle.
func (s *Service) consultOracle(ctx context.Context, q MatchRoutesQuery, matches []RouteMatch) (idx int, attempted, ok bool) {
	if s.quota != nil {
		if err := s.quota.UseToken(ctx, string(q.RiderID)); err != nil {
			return 0, false, false
		}
	}

	octx := ctx
	if s.oracleTimeout > 0 {
		var cancel context.CancelFunc
		octx, cancel = context.WithTimeout(ctx, s.oracleTimeout)
		defer cancel()
	}

	req := ai.RankRequest{Origin: q.Origin, Destination: q.Destination}
	for _, m := range matches {
		req.Candidates = append(req.Candidates, ai.RankCandidate{
			Label:          m.Route.FromLabel + " to " + m.Route.ToLabel,
			From:           m.Route.From,
			To:             m.Route.To,
			DistanceMeters: m.Score,
		})
	}

	pick, err := s.ranker.PickBest(octx, req)
	if err != nil {
		log.Printf("matching: oracle unavailable, using local ranking: %v", err)
		return 0, true, false
	}
	if pick < 1 || pick > len(matches) {
		log.Printf("matching: oracle index %d out of range, using local ranking", pick)
		return 0, true, false
	}
	return pick - 1, true, true
}

func (s *Service) attachEstimate(ctx context.Context, result *MatchResult) {
	r := result.Chosen.Route
	origin := fmt.Sprintf("%f,%f", r.From.Lat, r.From.Lng)
	destination := fmt.Sprintf("%f,%f", r.To.Lat, r.To.Lng)
	dur, dist, err := s.estimator.GetTravelEstimate(ctx, origin, destination)
	if err != nil {
		log.Printf("matching: travel estimate unavailable: %v", err)
		return
	}
	result.Estimate = &TravelEstimate{Duration: dur, Distance: dist}
}

type AlongRouteQuery struct {
	From         types.Point
	To           types.Point
	BufferMeters float64
	Limit        int
}

// StopsAlongRoute returns active pickup points within bufferMeters of the
// straight segment between the route endpoints, closest first.
func (s *Service) StopsAlongRoute(ctx context.Context, q AlongRouteQuery) ([]StopMatch, error) {
	if !validPoint(q.From) || !validPoint(q.To) {
		return nil, ErrBadRequest
	}
	if q.BufferMeters <= 0 {
		q.BufferMeters = s.defaults.DefaultRadiusMeters
	}
	if q.Limit <= 0 {
		q.Limit = s.defaults.DefaultLimit
	}

	box := geo.BoundingBoxForRoute(q.From, q.To, q.BufferMeters)
	candidates, err := s.candidates.PickupPointsInBox(ctx, box)
	if err != nil {
		return nil, err
	}

	matches := make([]StopMatch, 0, len(candidates))
	for _, c := range candidates {
		d := geo.SegmentDistanceMeters(c.Position, q.From, q.To)
		if d > q.BufferMeters {
			continue
		}
		matches = append(matches, StopMatch{Stop: c, DistanceMeters: d})
	}
	geo.SortByDistance(matches, func(m StopMatch) float64 { return m.DistanceMeters })
	if len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

func validPoint(p types.Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
