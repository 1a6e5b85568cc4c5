// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package suggest

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/jcodagnone/geosuggest/geocoding"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// cleanText removes control characters (newlines and tabs included) and
// surrounding whitespace.
func cleanText(s string) string {
	s, _, _ = transform.String(runes.Remove(runes.In(unicode.Cc)), s)

	return strings.TrimSpace(s)
}

// Sanitize returns a copy of c with its free-text fields cleaned.
// Coordinates and local names are carried over untouched.
func Sanitize(c geocoding.LocationCandidate) geocoding.LocationCandidate {
	return geocoding.LocationCandidate{
		Name:       cleanText(c.Name),
		LocalNames: maps.Clone(c.LocalNames),
		Lat:        c.Lat,
		Lon:        c.Lon,
		Country:    cleanText(c.Country),
		State:      cleanText(c.State),
	}
}

// candidateRules is the view of a candidate the validator checks.
type candidateRules struct {
	Name    string  `validate:"required"`
	Country string  `validate:"len=2"`
	Lat     float64 `validate:"gte=-90,lte=90"`
	Lon     float64 `validate:"gte=-180,lte=180"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(rejectNullIsland, candidateRules{})

	return v
}

// rejectNullIsland treats exactly (0, 0) as missing coordinates.
func rejectNullIsland(sl validator.StructLevel) {
	r, ok := sl.Current().Interface().(candidateRules)
	if ok && r.Lat == 0 && r.Lon == 0 {
		sl.ReportError(r.Lat, "Lat", "Lat", "nullisland", "")
	}
}

// ValidationError explains why a single field was rejected.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationErrors lists every rejected field of a candidate.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}

	return "invalid candidate: " + strings.Join(parts, "; ")
}

func describe(fe validator.FieldError) ValidationError {
	field := strings.ToLower(fe.Field())

	switch fe.Tag() {
	case "required":
		return ValidationError{Field: field, Message: "must not be empty"}
	case "len":
		return ValidationError{Field: field, Message: fmt.Sprintf("must be exactly %s characters, got %q", fe.Param(), fe.Value())}
	case "gte", "lte":
		return ValidationError{Field: field, Message: fmt.Sprintf("out of range: %v", fe.Value())}
	case "nullisland":
		return ValidationError{Field: "coordinates", Message: "(0, 0) is not a real location"}
	default:
		return ValidationError{Field: field, Message: fe.Error()}
	}
}

// Validate reports why c cannot be shown to the user, or nil when it can.
// Text fields are judged after trimming.
func Validate(c geocoding.LocationCandidate) error {
	err := validate.Struct(candidateRules{
		Name:    strings.TrimSpace(c.Name),
		Country: strings.TrimSpace(c.Country),
		Lat:     c.Lat,
		Lon:     c.Lon,
	})
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, describe(fe))
	}

	return out
}

// IsValid is true iff Validate finds nothing wrong with c.
func IsValid(c geocoding.LocationCandidate) bool {
	return Validate(c) == nil
}

// Dedupe drops every candidate whose rounded coordinates were already seen.
// The first occurrence wins and the order is preserved.
func Dedupe(cs []geocoding.LocationCandidate) []geocoding.LocationCandidate {
	seen := make(map[string]struct{}, len(cs))
	out := make([]geocoding.LocationCandidate, 0, len(cs))

	for _, c := range cs {
		key := c.Key()
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		out = append(out, c)
	}

	return out
}

// Pipeline turns the raw response of the geocoding service into the list
// shown to the user: sanitize, drop invalid records, dedupe, then keep at most
// geocoding.MaxResults. Truncation must come last, otherwise duplicates in the
// feed would shrink the list.
func Pipeline(raw []geocoding.LocationCandidate) []geocoding.LocationCandidate {
	valid := make([]geocoding.LocationCandidate, 0, len(raw))

	for _, c := range raw {
		c = Sanitize(c)
		if IsValid(c) {
			valid = append(valid, c)
		}
	}

	out := Dedupe(valid)
	if len(out) > geocoding.MaxResults {
		out = out[:geocoding.MaxResults:geocoding.MaxResults]
	}

	return out
}
