package cluster

import (
	"math"
	"time"
)

// TimeProximity scores |now - lastUpdated| against the fixed piecewise table
// from the clustering contract.
func TimeProximity(now, lastUpdated time.Time) float64 {
	d := now.Sub(lastUpdated)
	if d < 0 {
		d = -d
	}
	switch {
	case d <= time.Hour:
		return 1.0
	case d <= 6*time.Hour:
		return 0.8
	case d <= 24*time.Hour:
		return 0.6
	case d <= 7*24*time.Hour:
		return 0.3
	default:
		return 0.1
	}
}

// haversineMeters is the great-circle distance between two WGS84 points, in meters.
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusM = 6371000.0
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// GeoProximity scores haversine distance against the fixed piecewise table.
// ok is false when either side lacks coordinates, signaling the caller to
// drop this signal's weight entirely and renormalize.
func GeoProximity(lat1, lng1, lat2, lng2 *float64) (score float64, ok bool) {
	if lat1 == nil || lng1 == nil || lat2 == nil || lng2 == nil {
		return 0, false
	}
	d := haversineMeters(*lat1, *lng1, *lat2, *lng2)
	switch {
	case d == 0:
		return 1.0, true
	case d <= 200:
		return 0.9, true
	case d <= 500:
		return 0.7, true
	case d <= 1000:
		return 0.5, true
	case d <= 2000:
		return 0.3, true
	default:
		return 0.1, true
	}
}
