package optimizer

import (
	"math"
)

const (
	// KmPerDegree converts a radius to a degree margin. Applied to longitude
	// as well as latitude; this is a planar approximation.
	KmPerDegree = 111.0

	// NearbyThresholdSq is the squared-degree catchment used by nearby deals
	// (0.045 degrees, roughly 5 km at the service's latitudes).
	NearbyThresholdSq = 0.002025
)

// BoundingBox is an axis-aligned lat/lng rectangle, inclusive on all edges.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// BoxFromRadius returns the box of margin radiusKm/111 degrees around a point.
// The box is a superset of the circle: its corners lie outside radiusKm.
func BoxFromRadius(center Location, radiusKm float64) BoundingBox {
	return boxFromMargin(center, radiusKm/KmPerDegree)
}

// NearbyBox returns the smallest box containing the nearby deals catchment.
func NearbyBox(center Location) BoundingBox {
	return boxFromMargin(center, math.Sqrt(NearbyThresholdSq))
}

func boxFromMargin(center Location, d float64) BoundingBox {
	return BoundingBox{
		MinLat: center.Latitude - d,
		MaxLat: center.Latitude + d,
		MinLng: center.Longitude - d,
		MaxLng: center.Longitude + d,
	}
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// SquaredDegreeDistance returns (Δlat)² + (Δlng)² in squared degrees.
func SquaredDegreeDistance(center Location, lat, lng float64) float64 {
	dLat := lat - center.Latitude
	dLng := lng - center.Longitude
	return dLat*dLat + dLng*dLng
}

// InNearbyCatchment reports whether a store lies strictly inside the
// nearby deals threshold. Unlike the bounding box this is a circle test.
func InNearbyCatchment(center Location, lat, lng float64) bool {
	return SquaredDegreeDistance(center, lat, lng) < NearbyThresholdSq
}

// HaversineKm calculates the great-circle distance between two points in kilometers.
// Informational only: it never decides whether a store is in range.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0 // Earth radius km
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
