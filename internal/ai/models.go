package ai

import "tandem/internal/types"

// RankCandidate is one entry of the ranked list sent to the oracle.
type RankCandidate struct {
	Label          string
	From           types.Point
	To             types.Point
	DistanceMeters float64
}

// RankRequest carries the rider's origin/destination pair and the locally
// ranked candidate routes. The oracle only ever sees this reduced list,
// never the full route population.
type RankRequest struct {
	Origin      types.Point
	Destination types.Point
	Candidates  []RankCandidate
}
