// README: Pure geographic computation: great-circle distance, point-to-segment
// distance, and degree-space bounding boxes for candidate prefiltering.
package geo

import (
	"math"

	"tandem/internal/types"
)

const (
	earthRadiusM = 6371000.0
	// metersPerDegLat is the approximate length of one degree of latitude.
	metersPerDegLat = 111320.0
)

// PointDistanceMeters returns the great-circle (haversine) distance in meters
// between two points in decimal degrees. Identical inputs yield exactly 0.
func PointDistanceMeters(a, b types.Point) float64 {
	if a == b {
		return 0
	}

	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusM * c
}

// SegmentDistanceMeters returns the shortest distance in meters from p to the
// segment [a,b]. The segment is projected onto a local planar frame anchored at
// its mean latitude; the projection parameter is clamped to [0,1] so the
// answer never falls outside the segment. A degenerate segment (a == b)
// reduces to the point distance.
func SegmentDistanceMeters(p, a, b types.Point) float64 {
	if a == b {
		return PointDistanceMeters(p, a)
	}

	meanLat := degreesToRadians((a.Lat + b.Lat) / 2)
	lngScale := metersPerDegLat * math.Cos(meanLat)

	// Planar coordinates in meters relative to a.
	px := (p.Lng - a.Lng) * lngScale
	py := (p.Lat - a.Lat) * metersPerDegLat
	bx := (b.Lng - a.Lng) * lngScale
	by := (b.Lat - a.Lat) * metersPerDegLat

	segLenSq := bx*bx + by*by
	if segLenSq == 0 {
		// Degenerate in the planar frame (e.g. both endpoints on a pole).
		return PointDistanceMeters(p, a)
	}

	t := (px*bx + py*by) / segLenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	dx := px - t*bx
	dy := py - t*by
	return math.Sqrt(dx*dx + dy*dy)
}

// Box is an axis-aligned latitude/longitude rectangle.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Contains reports whether pt falls inside the box (inclusive).
func (b Box) Contains(pt types.Point) bool {
	return pt.Lat >= b.MinLat && pt.Lat <= b.MaxLat &&
		pt.Lng >= b.MinLng && pt.Lng <= b.MaxLng
}

// BoundingBox returns a degree-space box guaranteed to contain every point
// within radiusMeters of center. The box is a conservative prefilter: it may
// include points outside the radius but never excludes one within it.
func BoundingBox(center types.Point, radiusMeters float64) Box {
	latBuf := radiusMeters / metersPerDegLat

	cosLat := math.Cos(degreesToRadians(center.Lat))
	// Near the poles cos(lat) approaches 0; cap the divisor so the box
	// stays a superset instead of dividing by zero.
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lngBuf := radiusMeters / (metersPerDegLat * cosLat)

	return Box{
		MinLat: center.Lat - latBuf,
		MaxLat: center.Lat + latBuf,
		MinLng: center.Lng - lngBuf,
		MaxLng: center.Lng + lngBuf,
	}
}

// BoundingBoxForRoute returns a box containing every point within bufferMeters
// of the segment [a,b], by buffering the segment's own bounding rectangle.
func BoundingBoxForRoute(a, b types.Point, bufferMeters float64) Box {
	boxA := BoundingBox(a, bufferMeters)
	boxB := BoundingBox(b, bufferMeters)
	return Box{
		MinLat: math.Min(boxA.MinLat, boxB.MinLat),
		MaxLat: math.Max(boxA.MaxLat, boxB.MaxLat),
		MinLng: math.Min(boxA.MinLng, boxB.MinLng),
		MaxLng: math.Max(boxA.MaxLng, boxB.MaxLng),
	}
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// SortByDistance performs an insertion sort (fine for small N) on any slice
// where each element exposes a distance via the accessor function. The sort
// is stable: equal distances keep their original order.
func SortByDistance[T any](items []T, dist func(T) float64) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && dist(items[j]) > dist(key) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}
