// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jcodagnone/geosuggest/geocoding"
	"github.com/jcodagnone/geosuggest/suggest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeystrokes(t *testing.T) {
	script := "# typing prague\n0\tpr\n80\tpra\n\n120\t prague \n"

	got, err := parseKeystrokes(strings.NewReader(script))
	require.NoError(t, err)

	want := []keystroke{
		{Delay: 0, Query: "pr"},
		{Delay: 80 * time.Millisecond, Query: "pra"},
		{Delay: 120 * time.Millisecond, Query: " prague "},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseKeystrokes() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseKeystrokesErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"missing tab", "100 prague\n", "line 1: expected"},
		{"bad delay", "0\tpr\nsoon\tprague\n", `line 2: invalid delay "soon"`},
		{"negative delay", "-5\tprague\n", "line 1: invalid delay"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseKeystrokes(strings.NewReader(tc.script))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestAnalyze(t *testing.T) {
	raw := []geocoding.LocationCandidate{
		{Name: " Prague\n", Country: "CZ", Lat: 50.0755, Lon: 14.4378},
		{Name: "Nowhere", Country: "XX", Lat: 0, Lon: 0},
		{Name: "Prague", Country: "CZ", Lat: 50.07550004, Lon: 14.4378},
	}

	report := analyze(raw)

	require.Len(t, report.Verdicts, 3)
	assert.Equal(t, "Prague", report.Verdicts[0].Sanitized.Name)
	assert.Empty(t, report.Verdicts[0].Error)
	assert.Equal(t, "50.075500,14.437800", report.Verdicts[0].Key)
	assert.Contains(t, report.Verdicts[1].Error, "coordinates")
	assert.Empty(t, report.Verdicts[2].Error, "duplicates are valid records")
	assert.Equal(t, report.Verdicts[0].Key, report.Verdicts[2].Key)

	assert.Equal(t, []geocoding.LocationCandidate{
		{Name: "Prague", Country: "CZ", Lat: 50.0755, Lon: 14.4378},
	}, report.Output)
}

func TestReplayCollapsesKeystrokes(t *testing.T) {
	counter := &countingGeocoder{}
	controller := suggest.NewController(counter, nil, &suggest.ControllerOptions{Delay: 50 * time.Millisecond})
	t.Cleanup(controller.Close)

	replay(controller, []keystroke{
		{Delay: 0, Query: "p"},
		{Delay: 5 * time.Millisecond, Query: "pr"},
		{Delay: 5 * time.Millisecond, Query: "pra"},
		{Delay: 5 * time.Millisecond, Query: "prague"},
	}, nil)

	require.Eventually(t, func() bool {
		return controller.State() == suggest.StatePublished
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"prague"}, counter.Queries())
}
