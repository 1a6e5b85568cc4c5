// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocoding holds the location records returned by the remote
// geocoding service and the clients that fetch them.
package geocoding

import (
	"fmt"
	"time"

	"github.com/jcodagnone/geosuggest/spatial"
)

// LocationCandidate is one place returned for a free-text query.
type LocationCandidate struct {
	Name       string            `json:"name"`
	LocalNames map[string]string `json:"local_names,omitempty"`
	Lat        float64           `json:"lat"`
	Lon        float64           `json:"lon"`
	Country    string            `json:"country"`
	State      string            `json:"state,omitempty"` // empty when the service omits it
}

// Point returns the coordinates of the candidate.
func (c LocationCandidate) Point() spatial.Point {
	return spatial.Point{Lat: c.Lat, Lng: c.Lon}
}

// Key returns the identity of the candidate for deduplication purposes.
func (c LocationCandidate) Key() string {
	return spatial.CoordinateKey(c.Lat, c.Lon)
}

// Label is a one line human readable description, e.g. "Prague, CZ" or
// "Springfield, Illinois, US".
func (c LocationCandidate) Label() string {
	if c.State == "" {
		return fmt.Sprintf("%s, %s", c.Name, c.Country)
	}

	return fmt.Sprintf("%s, %s, %s", c.Name, c.State, c.Country)
}

// Weather is the current conditions at a pair of coordinates.
type Weather struct {
	Place       string    `json:"place"`
	Description string    `json:"description"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
	ObservedAt  time.Time `json:"observed_at"`
}
