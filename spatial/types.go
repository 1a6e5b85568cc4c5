// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"fmt"
	"math"
	"strconv"
)

const earthRadius = 6371e3 // meters

// KeyPrecision is the number of decimal places used when two coordinates are
// compared for identity. Six places is roughly 0.11 m at the equator.
const KeyPrecision = 6

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lng, p.Lat)
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p *Point) HaversineDistance(other *Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// Round rounds v to the given number of decimal places, half away from zero.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	r := math.Round(v*scale) / scale

	if r == 0 {
		// collapse -0 so that it formats like 0
		return 0
	}

	return r
}

// CoordinateKey returns the identity key of a coordinate pair: latitude and
// longitude, each rounded to KeyPrecision places, joined by a comma.
func CoordinateKey(lat, lon float64) string {
	return strconv.FormatFloat(Round(lat, KeyPrecision), 'f', KeyPrecision, 64) +
		"," +
		strconv.FormatFloat(Round(lon, KeyPrecision), 'f', KeyPrecision, 64)
}
