// Package geo implements great-circle distance, geofence containment and
// point-in-polygon tests. Inputs are assumed to be validated coordinates.
package geo

import (
	"fmt"
	"math"

	"attendance-guard/internal/models"
)

// EarthRadiusMeters is the mean Earth radius used for all distances
const EarthRadiusMeters = 6371000.0

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// Distance returns the Haversine distance in meters between two points
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push a slightly above 1 for antipodal points
	a = math.Min(1, a)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// Destination returns the point reached by travelling distance meters from
// (lat, lon) on the given initial bearing in degrees
func Destination(lat, lon, bearing, distance float64) (float64, float64) {
	delta := distance / EarthRadiusMeters
	theta := toRadians(bearing)
	phi1 := toRadians(lat)
	lambda1 := toRadians(lon)

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) +
		math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)

	return toDegrees(phi2), math.Mod(toDegrees(lambda2)+540, 360) - 180
}

// ValidCoordinate reports whether lat/lon are inside WGS84 bounds
func ValidCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180 &&
		!math.IsNaN(lat) && !math.IsNaN(lon)
}

// Fence is a circular geofence
type Fence struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// NewFence validates and builds a geofence
func NewFence(lat, lon, radius float64) (Fence, error) {
	if !ValidCoordinate(lat, lon) {
		return Fence{}, fmt.Errorf("%w: center (%f, %f) out of range", models.ErrInvalidInput, lat, lon)
	}
	if !(radius > 0) {
		return Fence{}, fmt.Errorf("%w: radius must be positive, got %f", models.ErrInvalidInput, radius)
	}
	return Fence{Latitude: lat, Longitude: lon, RadiusMeters: radius}, nil
}

// FenceFor builds the geofence of a branch
func FenceFor(b *models.Branch) (Fence, error) {
	return NewFence(b.Latitude, b.Longitude, b.GeofenceRadius)
}

// Contains reports whether the point lies within the fence (boundary
// inclusive) along with its distance from the center
func (f Fence) Contains(lat, lon float64) (bool, float64) {
	d := Distance(f.Latitude, f.Longitude, lat, lon)
	return d <= f.RadiusMeters, d
}

// InPolygon is a ray-casting point-in-polygon test on lat/lon treated as
// planar coordinates. Fewer than three vertices never contain a point.
func InPolygon(lat, lon float64, polygon []models.Coordinate) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		yi, xi := polygon[i].Latitude, polygon[i].Longitude
		yj, xj := polygon[j].Latitude, polygon[j].Longitude

		if (yi > lat) != (yj > lat) &&
			lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
