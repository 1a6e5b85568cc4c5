// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package httputils

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dummyRoundTripper records the last request and answers with a canned body.
type dummyRoundTripper struct {
	body        string
	lastRequest *http.Request
}

func (d *dummyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	d.lastRequest = req

	return &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(d.body)),
	}, nil
}

//////////////////////////////////
// Test LoggingRoundTripper

// TestLoggingRoundTripper verifies that the LoggingRoundTripper logs both the request and
// the response (including timing information).
func TestLoggingRoundTripper(t *testing.T) {
	var logBuffer bytes.Buffer

	lt := &LoggingRoundTripper{
		Transport: &dummyRoundTripper{body: `[{"name":"Prague"}]`},
		Writer:    &logBuffer,
		DumpBody:  true,
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.com/geo/1.0/direct?q=prague", nil)
	require.NoError(t, err)

	_, err = lt.RoundTrip(req)
	require.NoError(t, err)

	logContent := logBuffer.String()
	assert.Contains(t, logContent, "> GET /geo/1.0/direct?q=prague")
	assert.Contains(t, logContent, "< RESPONSE: [")
	assert.Contains(t, logContent, `[{"name":"Prague"}]`)
}

func TestLoggingRoundTripperRedactsParams(t *testing.T) {
	var logBuffer bytes.Buffer

	lt := &LoggingRoundTripper{
		Transport:    &dummyRoundTripper{},
		Writer:       &logBuffer,
		RedactParams: []string{"appid"},
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.com/geo/1.0/direct?q=prague&appid=s3cr3t&limit=5", nil)
	require.NoError(t, err)

	_, err = lt.RoundTrip(req)
	require.NoError(t, err)

	logContent := logBuffer.String()
	assert.NotContains(t, logContent, "s3cr3t")
	assert.Contains(t, logContent, "appid=REDACTED&limit=5")
}

func TestLoggingRoundTripperWithoutWriter(t *testing.T) {
	dummy := &dummyRoundTripper{body: "ok"}
	lt := &LoggingRoundTripper{Transport: dummy}

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)

	resp, err := lt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Same(t, req, dummy.lastRequest)
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"middle", "GET /x?appid=abc&q=1 HTTP/1.1", "GET /x?appid=REDACTED&q=1 HTTP/1.1"},
		{"last", "GET /x?q=1&appid=abc HTTP/1.1", "GET /x?q=1&appid=REDACTED HTTP/1.1"},
		{"end of string", "/x?appid=abc", "/x?appid=REDACTED"},
		{"suffix name untouched", "/x?myappid=abc", "/x?myappid=abc"},
		{"absent", "/x?q=1", "/x?q=1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, redact(tc.input, []string{"appid"}))
		})
	}
}

//////////////////////////////////
// Test AppendRequestHeadersRoundTripper

func TestAppendRequestHeadersRoundTripper(t *testing.T) {
	dummy := &dummyRoundTripper{}

	atr := &AppendRequestHeadersRoundTripper{
		Transport: dummy,
		Headers: map[string]string{
			"User-Agent": "geosuggest/test",
		},
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.org", nil)
	require.NoError(t, err)

	_, err = atr.RoundTrip(req)
	require.NoError(t, err)

	require.NotNil(t, dummy.lastRequest)
	assert.Equal(t, "geosuggest/test", dummy.lastRequest.Header.Get("User-Agent"))
	assert.Empty(t, req.Header.Get("User-Agent"), "caller request must be left untouched")
}
