// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

// Package suggest turns keystrokes in a location search box into a short,
// clean list of candidate places.
//
// A Controller debounces the input, keeps at most one remote geocoding call
// relevant at any time and runs every response through Pipeline before
// publishing it. Each Search supersedes the previous one: a superseded search
// never publishes, even when its response arrives after the newer one
// completed.
package suggest

import (
	"context"
	"errors"
	"log"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jcodagnone/geosuggest/geocoding"
)

// Defaults applied to zero ControllerOptions fields.
const (
	DefaultDelay          = 300 * time.Millisecond
	DefaultMinQueryLength = 2
)

// State of the current search lifecycle.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateInFlight
	StatePublished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateInFlight:
		return "in_flight"
	case StatePublished:
		return "published"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ControllerOptions configuration for Controller.
type ControllerOptions struct {
	// Quiet period required before a query reaches the network
	Delay time.Duration

	// Trimmed queries shorter than this (in characters) clear the results
	MinQueryLength int

	// Number of matches requested from the geocoder
	Limit int

	// OnPublish receives every new result list, in the order they were
	// published. It runs with the controller locked and must not call back
	// into the controller.
	OnPublish func(results []geocoding.LocationCandidate)

	// OnDetails receives the outcome of the detail fetch started by Select.
	OnDetails func(candidate geocoding.LocationCandidate, weather *geocoding.Weather, err error)

	// Counters, possibly shared between controllers
	Metrics *Metrics
}

// Errors returned by SelectAt.
var (
	ErrStalePublication = errors.New("results were replaced since they were read")
	ErrNoSuchCandidate  = errors.New("no candidate at that position")
)

// Publication is the published result list together with its sequence
// number, which grows with every publication.
type Publication struct {
	Seq     uint64
	State   State
	Results []geocoding.LocationCandidate
}

// outcome of a completed remote call.
type outcome int

const (
	outcomePublished outcome = iota
	outcomeFailed
	outcomeSuperseded
	outcomeAbandoned // the geocoder gave up on a search that is still current
)

// Controller owns the search state of one search box.
// All methods are safe for concurrent use and return without waiting for
// the network.
type Controller struct {
	geocoder  geocoding.Geocoder
	details   geocoding.WeatherFetcher
	delay     time.Duration
	minLen    int
	limit     int
	onPublish func([]geocoding.LocationCandidate)
	onDetails func(geocoding.LocationCandidate, *geocoding.Weather, error)
	metrics   *Metrics

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	token   uint64 // sequence number of the most recently issued search
	cancel  context.CancelFunc
	state   State
	seq     uint64 // number of publications so far
	results []geocoding.LocationCandidate
}

// NewController creates a controller that resolves queries with geocoder and
// fetches details for selected candidates with details, which may be nil.
func NewController(geocoder geocoding.Geocoder, details geocoding.WeatherFetcher, options *ControllerOptions) *Controller {
	if options == nil {
		options = &ControllerOptions{}
	}

	c := &Controller{
		geocoder:  geocoder,
		details:   details,
		delay:     DefaultDelay,
		minLen:    DefaultMinQueryLength,
		limit:     geocoding.MaxResults,
		onPublish: options.OnPublish,
		onDetails: options.OnDetails,
		metrics:   options.Metrics,
		results:   []geocoding.LocationCandidate{},
	}

	if options.Delay > 0 {
		c.delay = options.Delay
	}

	if options.MinQueryLength > 0 {
		c.minLen = options.MinQueryLength
	}

	if options.Limit > 0 {
		c.limit = options.Limit
	}

	if c.metrics == nil {
		c.metrics = NewMetrics()
	}

	c.base, c.stop = context.WithCancel(context.Background())

	return c
}

// Metrics returns the counters this controller updates.
func (c *Controller) Metrics() *Metrics {
	return c.metrics
}

// Search is called on every change of the search box content.
func (c *Controller) Search(query string) {
	query = strings.TrimSpace(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.Searches.Inc()
	token := c.supersedeLocked()

	if utf8.RuneCountInString(query) < c.minLen {
		c.metrics.ShortQueries.Inc()
		c.state = StateIdle
		c.publishLocked(nil)

		return
	}

	if c.base.Err() != nil {
		return
	}

	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel
	c.state = StateDebouncing

	c.wg.Add(1)

	go c.run(ctx, token, query)
}

// Cancel abandons any pending search and clears the results.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.supersedeLocked()
	c.state = StateIdle
	c.publishLocked(nil)
}

// Select finalizes the search on candidate: it starts fetching the details
// for its coordinates, reported through OnDetails, and then behaves like
// Cancel. Later searches do not abort the detail fetch.
func (c *Controller) Select(candidate geocoding.LocationCandidate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selectLocked(candidate)
}

// SelectAt selects the candidate at index of the publication numbered seq.
// It fails with ErrStalePublication when a newer list was published since.
func (c *Controller) SelectAt(seq uint64, index int) (geocoding.LocationCandidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq {
		return geocoding.LocationCandidate{}, ErrStalePublication
	}

	if index < 0 || index >= len(c.results) {
		return geocoding.LocationCandidate{}, ErrNoSuchCandidate
	}

	candidate := c.results[index]
	c.selectLocked(candidate)

	return candidate, nil
}

func (c *Controller) selectLocked(candidate geocoding.LocationCandidate) {
	if c.details != nil && c.base.Err() == nil {
		c.metrics.DetailFetches.Inc()
		c.wg.Add(1)

		go c.fetchDetails(candidate)
	}

	c.supersedeLocked()
	c.state = StateIdle
	c.publishLocked(nil)
}

// Results returns a copy of the published results.
func (c *Controller) Results() []geocoding.LocationCandidate {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.results)
}

// Publication returns a copy of the published results with their sequence
// number and the current state.
func (c *Controller) Publication() Publication {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Publication{Seq: c.seq, State: c.state, Results: slices.Clone(c.results)}
}

// State returns the state of the current search lifecycle.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Close abandons all outstanding work, detail fetches included, and waits
// for it to wind down. Nothing is published after Close.
func (c *Controller) Close() {
	c.mu.Lock()
	c.supersedeLocked()
	c.stop()
	c.state = StateIdle
	c.results = []geocoding.LocationCandidate{}
	c.mu.Unlock()

	c.wg.Wait()
}

// supersedeLocked invalidates the current lifecycle and returns the token of
// the next one.
func (c *Controller) supersedeLocked() uint64 {
	c.token++

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	return c.token
}

func (c *Controller) publishLocked(results []geocoding.LocationCandidate) {
	if results == nil {
		results = []geocoding.LocationCandidate{}
	}

	c.results = results
	c.seq++

	if c.onPublish != nil && c.base.Err() == nil {
		c.onPublish(slices.Clone(results))
	}
}

func (c *Controller) run(ctx context.Context, token uint64, query string) {
	defer c.wg.Done()

	timer := time.NewTimer(c.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		c.metrics.Debounced.Inc()

		return
	case <-timer.C:
	}

	if !c.begin(token) {
		c.metrics.Debounced.Inc()

		return
	}

	c.metrics.Requests.Inc()

	raw, err := c.geocoder.Search(ctx, query, c.limit)

	var results []geocoding.LocationCandidate
	if err == nil {
		results = Pipeline(raw)
	}

	c.finish(token, query, results, err)
}

// begin moves a lifecycle whose debounce elapsed to InFlight, unless it was
// superseded meanwhile.
func (c *Controller) begin(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.token {
		return false
	}

	c.state = StateInFlight

	return true
}

func (c *Controller) outcomeLocked(token uint64, err error) outcome {
	switch {
	case token != c.token:
		return outcomeSuperseded
	case geocoding.IsCancelled(err):
		return outcomeAbandoned
	case err != nil:
		return outcomeFailed
	default:
		return outcomePublished
	}
}

func (c *Controller) finish(token uint64, query string, results []geocoding.LocationCandidate, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.outcomeLocked(token, err) {
	case outcomeSuperseded:
		c.metrics.Superseded.Inc()

		return
	case outcomeAbandoned:
		log.Printf("Search for %q was cancelled by the geocoder - %s", query, err)
		c.state = StateIdle
	case outcomeFailed:
		log.Printf("Search for %q failed, clearing results - %s", query, err)
		c.metrics.Failures.Inc()
		c.state = StateFailed
		c.publishLocked(nil)
	case outcomePublished:
		c.metrics.Published.Inc()
		c.state = StatePublished
		c.publishLocked(results)
	}

	// the lifecycle is over, release its context
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) fetchDetails(candidate geocoding.LocationCandidate) {
	defer c.wg.Done()

	weather, err := c.details.CurrentWeather(c.base, candidate.Lat, candidate.Lon)
	if geocoding.IsCancelled(err) || c.base.Err() != nil {
		return
	}

	if err != nil {
		log.Printf("Fetching details for %s failed - %s", candidate.Label(), err)
		c.metrics.DetailFailures.Inc()
	}

	if c.onDetails != nil {
		c.onDetails(candidate, weather, err)
	}
}
