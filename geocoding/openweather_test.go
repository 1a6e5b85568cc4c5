// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenWeatherClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewOpenWeatherClient("test-key", &ClientOptions{
		BaseURL:           srv.URL,
		RequestsPerMinute: -1,
		Timeout:           2 * time.Second,
	})
}

func TestSearch(t *testing.T) {
	var gotQuery map[string]string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geo/1.0/direct", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		gotQuery = map[string]string{
			"q":     r.URL.Query().Get("q"),
			"limit": r.URL.Query().Get("limit"),
			"appid": r.URL.Query().Get("appid"),
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"name":"Prague","local_names":{"cs":"Praha","en":"Prague"},"lat":50.0874654,"lon":14.4212535,"country":"CZ"},
			{"name":"Prague","lat":35.4867,"lon":-96.685,"country":"US","state":"Oklahoma"}
		]`))
	})

	got, err := c.Search(context.Background(), "Prague", 5)
	require.NoError(t, err)

	want := []LocationCandidate{
		{
			Name:       "Prague",
			LocalNames: map[string]string{"cs": "Praha", "en": "Prague"},
			Lat:        50.0874654,
			Lon:        14.4212535,
			Country:    "CZ",
		},
		{Name: "Prague", Lat: 35.4867, Lon: -96.685, Country: "US", State: "Oklahoma"},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Search() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, map[string]string{"q": "Prague", "limit": "5", "appid": "test-key"}, gotQuery)
}

func TestSearchEmptyArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	got, err := c.Search(context.Background(), "nowhere", 5)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearchDefaultsLimit(t *testing.T) {
	var limit string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		limit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`null`))
	})

	got, err := c.Search(context.Background(), "x", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, "5", limit)
}

func TestSearchHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"cod":401,"message":"Invalid API key"}`))
	})

	_, err := c.Search(context.Background(), "Prague", 5)
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.False(t, IsDecodeError(err))
	assert.NotContains(t, err.Error(), "test-key")

	var geoErr *GeocodingError
	require.ErrorAs(t, err, &geoErr)
	assert.Equal(t, http.StatusUnauthorized, geoErr.StatusCode)
}

func TestSearchDecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"`))
	})

	_, err := c.Search(context.Background(), "Prague", 5)
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
}

func TestSearchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewOpenWeatherClient("test-key", &ClientOptions{BaseURL: url, RequestsPerMinute: -1})

	_, err := c.Search(context.Background(), "Prague", 5)
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.NotContains(t, err.Error(), "test-key")
}

func TestSearchCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Search(ctx, "Prague", 5)
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.False(t, IsTransportError(err))
}

func TestSearchCancelledBeforeStart(t *testing.T) {
	called := false
	c := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Search(ctx, "Prague", 5)
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.False(t, called)
}

func TestCurrentWeather(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "50.0755", r.URL.Query().Get("lat"))
		assert.Equal(t, "14.4378", r.URL.Query().Get("lon"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))

		_, _ = w.Write([]byte(`{
			"name":"Prague",
			"dt":1760870400,
			"weather":[{"description":"light rain"}],
			"main":{"temp":11.5,"feels_like":10.2,"humidity":87},
			"wind":{"speed":3.6}
		}`))
	})

	got, err := c.CurrentWeather(context.Background(), 50.0755, 14.4378)
	require.NoError(t, err)

	want := &Weather{
		Place:       "Prague",
		Description: "light rain",
		Temperature: 11.5,
		FeelsLike:   10.2,
		Humidity:    87,
		WindSpeed:   3.6,
		ObservedAt:  time.Unix(1760870400, 0).UTC(),
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CurrentWeather() mismatch (-want +got):\n%s", diff)
	}
}

func TestCandidateLabel(t *testing.T) {
	assert.Equal(t, "Prague, CZ", LocationCandidate{Name: "Prague", Country: "CZ"}.Label())
	assert.Equal(t, "Prague, Oklahoma, US", LocationCandidate{Name: "Prague", Country: "US", State: "Oklahoma"}.Label())
}
