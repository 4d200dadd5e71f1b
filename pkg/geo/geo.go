// Package geo provides great-circle helpers for range and bearing display.
package geo

import (
	"math"
	"time"
)

const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = 6371.0

	// KmPerNauticalMile is the length of one nautical mile
	KmPerNauticalMile = 1.852
)

// Point is a position on Earth's surface in decimal degrees (WGS84).
type Point struct {
	Latitude  float64
	Longitude float64
}

// NormalizeBearing maps any angle into [0, 360).
func NormalizeBearing(deg float64) float64 {
	b := math.Mod(deg, 360.0)
	if b < 0 {
		b += 360.0
	}
	return b
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Returns degrees in [0, 360) where 0 = North, 90 = East.
func Bearing(from, to Point) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	dLon := (to.Longitude - from.Longitude) * DegreesToRadians

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return NormalizeBearing(math.Atan2(y, x) * RadiansToDegrees)
}

// DistanceNauticalMiles calculates the great-circle distance between two points
// using the Haversine formula.
func DistanceNauticalMiles(from, to Point) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	dLat := lat2 - lat1
	dLon := (to.Longitude - from.Longitude) * DegreesToRadians

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c / KmPerNauticalMile
}

var cardinals = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Cardinal returns the 8-point compass direction for a bearing.
func Cardinal(bearing float64) string {
	idx := int(math.Round(NormalizeBearing(bearing)/45.0)) % len(cardinals)
	return cardinals[idx]
}

// Approach describes how an aircraft moves relative to an observer.
type Approach struct {
	// Approaching is true when the radial speed toward the observer exceeds 0.1 knots
	Approaching bool

	// ClosestNM is the predicted minimum range (cross-track distance)
	ClosestNM float64

	// TimeToClosest is zero unless approaching
	TimeToClosest time.Duration

	// closingKnots is the radial speed toward the observer
	closingKnots float64
}

// EstimateApproach projects straight-line motion at groundSpeedKnots along
// trackDeg and reports the closest point of approach to observer.
func EstimateApproach(observer, aircraft Point, groundSpeedKnots, trackDeg float64) Approach {
	rangeNM := DistanceNauticalMiles(observer, aircraft)

	// Track straight back at the observer is 180 degrees off the bearing to the aircraft.
	toObserver := NormalizeBearing(Bearing(observer, aircraft) + 180)
	rel := math.Abs(NormalizeBearing(trackDeg) - toObserver)
	if rel > 180 {
		rel = 360 - rel
	}
	relRad := rel * DegreesToRadians
	closing := groundSpeedKnots * math.Cos(relRad)

	if closing <= 0.1 {
		return Approach{ClosestNM: rangeNM}
	}

	hours := rangeNM * math.Cos(relRad) / groundSpeedKnots
	return Approach{
		Approaching:   true,
		ClosestNM:     math.Abs(rangeNM * math.Sin(relRad)),
		TimeToClosest: time.Duration(hours * float64(time.Hour)),
		closingKnots:  closing,
	}
}

// TimeToRange estimates when an approaching aircraft crosses targetNM.
// Returns 0 when it is already inside or not closing.
func TimeToRange(observer, aircraft Point, groundSpeedKnots, trackDeg, targetNM float64) time.Duration {
	rangeNM := DistanceNauticalMiles(observer, aircraft)
	if rangeNM <= targetNM {
		return 0
	}
	a := EstimateApproach(observer, aircraft, groundSpeedKnots, trackDeg)
	if !a.Approaching || a.ClosestNM > targetNM {
		return 0
	}
	hours := (rangeNM - targetNM) / a.closingKnots
	return time.Duration(hours * float64(time.Hour))
}
