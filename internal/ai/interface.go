package ai

import (
	"context"
)

// Ranker is a pluggable re-ranking strategy consulted with an already-ranked
// candidate list. Implementations may call out to external services; callers
// must treat every error as non-fatal and fall back to their local ranking.
type Ranker interface {
	// PickBest returns the 1-based index of the preferred candidate in
	// req.Candidates. Callers validate the index against the list bounds
	// before using it.
	PickBest(ctx context.Context, req RankRequest) (int, error)
}
