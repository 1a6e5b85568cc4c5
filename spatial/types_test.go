// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name   string
		input  float64
		places int
		want   float64
	}{
		{"already exact", 50.0755, 6, 50.0755},
		{"below half", 14.43780002, 6, 14.4378},
		{"half rounds away from zero", 0.5, 0, 1},
		{"negative half rounds away from zero", -0.5, 0, -1},
		{"negative tiny collapses", -0.0000001, 6, 0},
		{"two places", -56.16459, 2, -56.16},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Round(tc.input, tc.places), 1e-12)
		})
	}
}

func TestCoordinateKey(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     string
	}{
		{"prague", 50.0755, 14.4378, "50.075500,14.437800"},
		{"prague with noise", 50.07550001, 14.43780002, "50.075500,14.437800"},
		{"montevideo", -34.9011, -56.1645, "-34.901100,-56.164500"},
		{"negative zero", -0.0000001, 0.0000001, "0.000000,0.000000"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CoordinateKey(tc.lat, tc.lon))
		})
	}
}

func TestCoordinateKeyDistinguishesSeventhDecimalCarry(t *testing.T) {
	// 1e-6 apart after rounding are different places
	assert.NotEqual(t, CoordinateKey(10.0000004, 20), CoordinateKey(10.0000006, 20))
	assert.Equal(t, CoordinateKey(10.0000006, 20), CoordinateKey(10.000001, 20))
}

func TestHaversineDistance(t *testing.T) {
	montevideo := &Point{Lat: -34.9011, Lng: -56.1645}
	maldonado := &Point{Lat: -34.9234, Lng: -54.9483}

	d := montevideo.HaversineDistance(maldonado)
	assert.InDelta(t, 111_000, d, 2_000)
	assert.InDelta(t, 0, montevideo.HaversineDistance(montevideo), 1e-9)
}
