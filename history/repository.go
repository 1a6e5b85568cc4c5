// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

// Package history keeps the places users finalized a search on.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jcodagnone/geosuggest/geocoding"
	"github.com/jcodagnone/geosuggest/spatial"
	"github.com/jcodagnone/geosuggest/utils/textutils"
	"github.com/uber/h3-go/v4"
)

// CellResolution is the H3 resolution selections are indexed at.
const CellResolution = 7

// maxDiskRadius bounds the grid disk used to prefilter Nearby. Larger radii
// scan the whole table.
const maxDiskRadius = 40

// Selection is a candidate a user picked from the suggestions.
type Selection struct {
	ID         int64         `json:"id"`
	Query      string        `json:"query"`
	Name       string        `json:"name"`
	Country    string        `json:"country"`
	State      string        `json:"state,omitempty"`
	Point      spatial.Point `json:"point"`
	H3Cell     int64         `json:"-"`
	SelectedAt time.Time     `json:"selected_at"`
}

// NewSelection builds the selection of candidate for query.
func NewSelection(query string, candidate geocoding.LocationCandidate) *Selection {
	return &Selection{
		Query:   query,
		Name:    candidate.Name,
		Country: candidate.Country,
		State:   candidate.State,
		Point:   candidate.Point(),
	}
}

// Label is the human readable place name.
func (s *Selection) Label() string {
	if s.State == "" {
		return s.Name + ", " + s.Country
	}

	return s.Name + ", " + s.State + ", " + s.Country
}

func (s *Selection) computeH3() error {
	cell, err := h3.LatLngToCell(h3.NewLatLng(s.Point.Lat, s.Point.Lng), CellResolution)
	if err != nil {
		return fmt.Errorf("error converting to h3 cell at res %d: %w", CellResolution, err)
	}

	s.H3Cell = int64(cell)

	return nil
}

// Repository handles persistence of selections.
type Repository interface {
	// CreateSchema creates the selections table
	CreateSchema() error

	// SaveSelection stores a new selection and assigns its ID
	SaveSelection(selection *Selection) error

	// ListRecent returns up to limit selections, newest first
	ListRecent(limit int) ([]*Selection, error)

	// Matching returns up to limit selections whose place name contains text,
	// ignoring case and accents, newest first
	Matching(text string, limit int) ([]*Selection, error)

	// Nearby returns the selections within radiusMeters of p, nearest first
	Nearby(p spatial.Point, radiusMeters float64) ([]*Selection, error)

	// Count returns the total number of selections
	Count() (int, error)
}

type sqlSelectionRepository struct {
	db *sql.DB
}

// NewRepository creates a selection repository on db.
func NewRepository(db *sql.DB) Repository {
	return &sqlSelectionRepository{db: db}
}

func (r *sqlSelectionRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS selections_seq START 1;

		CREATE TABLE IF NOT EXISTS selections (
			id BIGINT PRIMARY KEY DEFAULT nextval('selections_seq'),
			query VARCHAR NOT NULL,
			name VARCHAR NOT NULL,
			country VARCHAR NOT NULL,
			state VARCHAR,
			lat DOUBLE NOT NULL,
			lon DOUBLE NOT NULL,
			h3_cell BIGINT NOT NULL,
			folded VARCHAR NOT NULL,
			selected_at TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS selections_h3_idx ON selections(h3_cell);
	`)

	return err
}

func (r *sqlSelectionRepository) SaveSelection(selection *Selection) error {
	if selection.Name == "" {
		return errors.New("selection name can't be empty")
	}

	if err := selection.computeH3(); err != nil {
		return err
	}

	if selection.SelectedAt.IsZero() {
		selection.SelectedAt = time.Now().UTC()
	}

	var state *string
	if selection.State != "" {
		state = &selection.State
	}

	err := r.db.QueryRow(`
		INSERT INTO selections(query, name, country, state, lat, lon, h3_cell, folded, selected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		selection.Query,
		selection.Name,
		selection.Country,
		state,
		selection.Point.Lat,
		selection.Point.Lng,
		selection.H3Cell,
		textutils.Fold(selection.Label()),
		selection.SelectedAt,
	).Scan(&selection.ID)
	if err != nil {
		return fmt.Errorf("saving selection %q: %w", selection.Label(), err)
	}

	return nil
}

func (r *sqlSelectionRepository) ListRecent(limit int) ([]*Selection, error) {
	if limit <= 0 {
		limit = 20
	}

	return r.list(`
		SELECT id, query, name, country, state, lat, lon, h3_cell, selected_at
		FROM selections
		ORDER BY selected_at DESC, id DESC
		LIMIT ?
	`, []any{limit})
}

func (r *sqlSelectionRepository) Matching(text string, limit int) ([]*Selection, error) {
	if limit <= 0 {
		limit = 20
	}

	return r.list(`
		SELECT id, query, name, country, state, lat, lon, h3_cell, selected_at
		FROM selections
		WHERE contains(folded, ?)
		ORDER BY selected_at DESC, id DESC
		LIMIT ?
	`, []any{textutils.Fold(text), limit})
}

func (r *sqlSelectionRepository) Nearby(p spatial.Point, radiusMeters float64) ([]*Selection, error) {
	if radiusMeters <= 0 || math.IsNaN(radiusMeters) {
		return []*Selection{}, nil
	}

	query := `
		SELECT id, query, name, country, state, lat, lon, h3_cell, selected_at
		FROM selections
	`

	var args []any

	cells, err := diskAround(p, radiusMeters)
	if err != nil {
		return nil, err
	}

	if cells != nil {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cells)), ", ")
		query += " WHERE h3_cell IN (" + placeholders + ")"

		for _, cell := range cells {
			args = append(args, int64(cell))
		}
	}

	candidates, err := r.list(query, args)
	if err != nil {
		return nil, err
	}

	type hit struct {
		selection *Selection
		distance  float64
	}

	var hits []hit

	for _, s := range candidates {
		d := p.HaversineDistance(&s.Point)
		if d <= radiusMeters {
			hits = append(hits, hit{s, d})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].distance < hits[j].distance
	})

	nearby := make([]*Selection, 0, len(hits))
	for _, h := range hits {
		nearby = append(nearby, h.selection)
	}

	return nearby, nil
}

// diskAround returns the cells that may hold points within radiusMeters of
// p, or nil when the disk would be too large to be useful.
func diskAround(p spatial.Point, radiusMeters float64) ([]h3.Cell, error) {
	center, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), CellResolution)
	if err != nil {
		return nil, fmt.Errorf("error converting to h3 cell at res %d: %w", CellResolution, err)
	}

	spacing, err := centerSpacing(center)
	if err != nil {
		return nil, err
	}

	// each ring advances at least spacing*sqrt(3)/2 from the center; the
	// extra ring absorbs the distortion between here and the edge of the disk
	k := int(math.Ceil((math.Max(radiusMeters, 0)+spacing)/(spacing*math.Sqrt(3)/2))) + 1
	if k > maxDiskRadius {
		return nil, nil
	}

	cells, err := h3.GridDisk(center, k)
	if err != nil {
		return nil, fmt.Errorf("computing grid disk of %d around %s: %w", k, p, err)
	}

	return cells, nil
}

// centerSpacing is the distance in meters from the center of c to the
// center of its closest neighbour.
func centerSpacing(c h3.Cell) (float64, error) {
	ring, err := h3.GridDisk(c, 1)
	if err != nil {
		return 0, fmt.Errorf("computing neighbours of %s: %w", c, err)
	}

	origin, err := h3.CellToLatLng(c)
	if err != nil {
		return 0, fmt.Errorf("locating %s: %w", c, err)
	}

	from := spatial.Point{Lat: origin.Lat, Lng: origin.Lng}
	spacing := math.Inf(1)

	for _, n := range ring {
		if n == c {
			continue
		}

		ll, err := h3.CellToLatLng(n)
		if err != nil {
			return 0, fmt.Errorf("locating %s: %w", n, err)
		}

		spacing = math.Min(spacing, from.HaversineDistance(&spatial.Point{Lat: ll.Lat, Lng: ll.Lng}))
	}

	if math.IsInf(spacing, 1) || spacing <= 0 {
		return 0, fmt.Errorf("cell %s has no neighbours", c)
	}

	return spacing, nil
}

func (r *sqlSelectionRepository) Count() (int, error) {
	var count int

	err := r.db.QueryRow("SELECT COUNT(*) FROM selections").Scan(&count)

	return count, err
}

func (r *sqlSelectionRepository) list(query string, args []any) ([]*Selection, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	selections := []*Selection{}

	for rows.Next() {
		s := &Selection{}

		var state sql.NullString

		if err := rows.Scan(
			&s.ID,
			&s.Query,
			&s.Name,
			&s.Country,
			&state,
			&s.Point.Lat,
			&s.Point.Lng,
			&s.H3Cell,
			&s.SelectedAt,
		); err != nil {
			return nil, err
		}

		if state.Valid {
			s.State = state.String
		}

		selections = append(selections, s)
	}

	return selections, rows.Err()
}
