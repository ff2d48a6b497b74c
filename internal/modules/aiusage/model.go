package aiusage

import "errors"

// ErrInsufficientTokens is returned when a rider has no oracle calls left for the current month.
var ErrInsufficientTokens = errors.New("insufficient tokens")

// DefaultTokens is the number of ranking-oracle calls granted per month.
const DefaultTokens = 50
