// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import "context"

// MaxResults is the number of matches requested from the remote service and
// the number of candidates ever shown to the user.
const MaxResults = 5

// Geocoder resolves a free-text query into candidate places.
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]LocationCandidate, error)
}

// WeatherFetcher returns the current conditions at a pair of coordinates.
type WeatherFetcher interface {
	CurrentWeather(ctx context.Context, lat, lon float64) (*Weather, error)
}
