// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// GeocodingError is a failure talking to a remote geocoding or weather service.
type GeocodingError struct {
	Type       ErrorType
	Message    string
	StatusCode int // zero when no HTTP response was received
	Err        error
}

// ErrorType classifies a GeocodingError.
type ErrorType int

const (
	// ErrorTypeTransport covers unreachable hosts, timeouts and non-2xx responses.
	ErrorTypeTransport ErrorType = iota
	// ErrorTypeDecode is a response body that could not be parsed.
	ErrorTypeDecode
	// ErrorTypeCancelled is a request abandoned because its caller lost interest.
	ErrorTypeCancelled
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransport:
		return "transport"
	case ErrorTypeDecode:
		return "decode"
	case ErrorTypeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

func (e *GeocodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *GeocodingError) Unwrap() error {
	return e.Err
}

func isType(err error, t ErrorType) bool {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type == t
	}

	return false
}

// IsTransportError reports whether err is a transport failure.
func IsTransportError(err error) bool {
	return isType(err, ErrorTypeTransport)
}

// IsDecodeError reports whether err is a malformed response.
func IsDecodeError(err error) bool {
	return isType(err, ErrorTypeDecode)
}

// IsCancelled reports whether err means the request was abandoned on purpose.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}

	return isType(err, ErrorTypeCancelled) || errors.Is(err, context.Canceled)
}

// ClassifyHTTPError turns a non-2xx response into a transport failure.
func ClassifyHTTPError(statusCode int, body string) *GeocodingError {
	var msg string

	switch statusCode {
	case http.StatusTooManyRequests:
		msg = "rate limit reached"
	case http.StatusUnauthorized, http.StatusForbidden:
		msg = "api key rejected"
	case http.StatusBadRequest:
		msg = "invalid request"
	case http.StatusNotFound:
		msg = "endpoint not found"
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		msg = fmt.Sprintf("service unavailable (status %d)", statusCode)
	default:
		msg = fmt.Sprintf("unexpected HTTP status %d", statusCode)
	}

	if body != "" {
		msg += ": " + body
	}

	return &GeocodingError{
		Type:       ErrorTypeTransport,
		Message:    msg,
		StatusCode: statusCode,
	}
}
