// Package geo provides great-circle helpers for locating potholes.
package geo

import (
	"sort"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"potholewatch/internal/model"
)

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6371008.8

// Distance returns the great-circle distance in meters between two points.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// ValidCoordinate reports whether lat/lng are inside the WGS84 ranges.
func ValidCoordinate(lat, lng float64) bool {
	return s2.LatLngFromDegrees(lat, lng).IsValid()
}

// Bounds is a lat/lng rectangle in degrees, used to pre-filter SQL queries.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundsAround returns a rectangle that contains every point within
// radiusMeters of the center. Longitude wrap at the antimeridian widens
// the box to the full range.
func BoundsAround(lat, lng, radiusMeters float64) Bounds {
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lng))
	rect := s2.CapFromCenterAngle(center, s1.Angle(radiusMeters/EarthRadiusMeters)).RectBound()

	b := Bounds{
		MinLat: s1.Angle(rect.Lat.Lo).Degrees(),
		MaxLat: s1.Angle(rect.Lat.Hi).Degrees(),
		MinLng: s1.Angle(rect.Lng.Lo).Degrees(),
		MaxLng: s1.Angle(rect.Lng.Hi).Degrees(),
	}
	if rect.Lng.IsInverted() || rect.Lng.IsFull() {
		b.MinLng, b.MaxLng = -180, 180
	}
	return b
}

// NearbyPothole pairs a record with its distance from the query point.
type NearbyPothole struct {
	model.Pothole
	DistanceMeters float64 `json:"distance_meters"`
}

// Nearby keeps the potholes within radiusMeters of the point, closest first.
func Nearby(potholes []model.Pothole, lat, lng, radiusMeters float64) []NearbyPothole {
	out := []NearbyPothole{}
	for _, p := range potholes {
		d := Distance(lat, lng, p.Latitude, p.Longitude)
		if d <= radiusMeters {
			out = append(out, NearbyPothole{Pothole: p, DistanceMeters: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	return out
}
