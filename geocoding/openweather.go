// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jcodagnone/geosuggest/utils/httputils"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.openweathermap.org"

// ClientOptions configuration for OpenWeatherClient.
type ClientOptions struct {
	// BaseURL overrides the service root, mostly for tests
	BaseURL string

	// UserAgent is the User-Agent header to use in HTTP requests
	UserAgent string

	// Enables light tracing of HTTP requests and responses
	EnableHTTPTrace bool

	// Enables full HTTP body tracing
	EnableHTTPBodyTrace bool

	// Client side pacing of outgoing requests. Zero means 60, negative
	// disables pacing.
	RequestsPerMinute int

	// Timeout for a single request. Zero means 10 seconds.
	Timeout time.Duration

	// Units for weather values: standard, metric or imperial. Zero means metric.
	Units string
}

// OpenWeatherClient talks to the OpenWeatherMap geocoding and weather APIs.
// It is safe for concurrent use.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	units   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewOpenWeatherClient creates a client authenticated with apiKey.
func NewOpenWeatherClient(apiKey string, options *ClientOptions) *OpenWeatherClient {
	if options == nil {
		options = &ClientOptions{}
	}

	baseURL := defaultBaseURL
	if options.BaseURL != "" {
		baseURL = strings.TrimSuffix(options.BaseURL, "/")
	}

	units := "metric"
	if options.Units != "" {
		units = options.Units
	}

	timeout := 10 * time.Second
	if options.Timeout > 0 {
		timeout = options.Timeout
	}

	limit := rate.Inf
	burst := 1

	switch {
	case options.RequestsPerMinute == 0:
		limit = rate.Every(time.Second)
		burst = 5
	case options.RequestsPerMinute > 0:
		limit = rate.Every(time.Minute / time.Duration(options.RequestsPerMinute))
		burst = max(1, options.RequestsPerMinute/12)
	}

	var httpLogWriter io.Writer
	if options.EnableHTTPTrace {
		httpLogWriter = os.Stderr
	}

	userAgent := "geosuggest/unknown"
	if options.UserAgent != "" {
		userAgent = options.UserAgent
	}

	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	loggingTransport := &httputils.LoggingRoundTripper{
		Writer:       httpLogWriter,
		DumpBody:     options.EnableHTTPBodyTrace,
		RedactParams: []string{"appid"},
		Transport:    transport,
	}

	headerTransport := &httputils.AppendRequestHeadersRoundTripper{
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "application/json",
		},
		Transport: loggingTransport,
	}

	return &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		units:   units,
		client: &http.Client{
			Timeout:   timeout,
			Transport: headerTransport,
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Search implements Geocoder using the direct geocoding endpoint.
func (c *OpenWeatherClient) Search(ctx context.Context, query string, limit int) ([]LocationCandidate, error) {
	if limit <= 0 {
		limit = MaxResults
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	var out []LocationCandidate
	if err := c.getJSON(ctx, "/geo/1.0/direct", params, &out); err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", query, err)
	}

	if out == nil {
		out = []LocationCandidate{}
	}

	return out, nil
}

type weatherResponse struct {
	Name    string `json:"name"`
	Dt      int64  `json:"dt"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// CurrentWeather implements WeatherFetcher.
func (c *OpenWeatherClient) CurrentWeather(ctx context.Context, lat, lon float64) (*Weather, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("units", c.units)

	var wr weatherResponse
	if err := c.getJSON(ctx, "/data/2.5/weather", params, &wr); err != nil {
		return nil, fmt.Errorf("weather at %f,%f: %w", lat, lon, err)
	}

	w := &Weather{
		Place:       wr.Name,
		Temperature: wr.Main.Temp,
		FeelsLike:   wr.Main.FeelsLike,
		Humidity:    wr.Main.Humidity,
		WindSpeed:   wr.Wind.Speed,
	}

	if len(wr.Weather) > 0 {
		w.Description = wr.Weather[0].Description
	}

	if wr.Dt > 0 {
		w.ObservedAt = time.Unix(wr.Dt, 0).UTC()
	}

	return w, nil
}

// abandoned maps a context error into the error kinds of this package.
// Deadlines are timeouts, hence transport failures.
func abandoned(ctx context.Context, err error) *GeocodingError {
	if errors.Is(ctx.Err(), context.Canceled) {
		return &GeocodingError{Type: ErrorTypeCancelled, Message: "request cancelled", Err: ctx.Err()}
	}

	return &GeocodingError{Type: ErrorTypeTransport, Message: "request failed", Err: err}
}

func (c *OpenWeatherClient) getJSON(ctx context.Context, path string, params url.Values, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return abandoned(ctx, err)
	}

	params.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// *url.Error carries the full URL, api key included
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}

		if ctx.Err() != nil {
			return abandoned(ctx, err)
		}

		return &GeocodingError{Type: ErrorTypeTransport, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return ClassifyHTTPError(resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		if ctx.Err() != nil {
			return abandoned(ctx, err)
		}

		return &GeocodingError{Type: ErrorTypeDecode, Message: "decoding response", Err: err}
	}

	return nil
}
