// README: Redis-backed cache for nearby-stop query results (cache-aside).
package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tandem/internal/types"
)

// Cache stores serialized nearby-stop responses under a key derived from the
// query parameters. Reads and writes are best effort: any Redis failure is
// treated as a miss so matching keeps working without the cache.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewCache(redis *redis.Client, ttl time.Duration) *Cache {
	return &Cache{redis: redis, ttl: ttl}
}

// nearestKey rounds coordinates to ~1m granularity so nearby repeat queries
// from the same client hit the same entry.
func nearestKey(center types.Point, radiusMeters float64, limit int, requireTrip bool) string {
	return fmt.Sprintf("match:nearest:%.5f:%.5f:%.0f:%d:%t",
		center.Lat, center.Lng, radiusMeters, limit, requireTrip)
}

func (c *Cache) GetNearestStops(ctx context.Context, center types.Point, radiusMeters float64, limit int, requireTrip bool) ([]StopMatch, bool) {
	raw, err := c.redis.Get(ctx, nearestKey(center, radiusMeters, limit, requireTrip)).Bytes()
	if err != nil {
		return nil, false
	}
	var out []StopMatch
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (c *Cache) SetNearestStops(ctx context.Context, center types.Point, radiusMeters float64, limit int, requireTrip bool, matches []StopMatch) {
	raw, err := json.Marshal(matches)
	if err != nil {
		return
	}
	c.redis.Set(ctx, nearestKey(center, radiusMeters, limit, requireTrip), raw, c.ttl)
}
