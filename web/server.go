// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

// Package web serves search sessions over HTTP. Each session owns one
// suggest.Controller, so a browser search box maps to a session.
package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jcodagnone/geosuggest/geocoding"
	"github.com/jcodagnone/geosuggest/history"
	"github.com/jcodagnone/geosuggest/suggest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerOptions configuration for Server.
type ServerOptions struct {
	// Debounce delay of every session, suggest.DefaultDelay when zero
	Delay time.Duration

	// Records selections when set
	History history.Repository
}

// Server keeps the open search sessions.
type Server struct {
	geocoder geocoding.Geocoder
	details  geocoding.WeatherFetcher
	history  history.Repository
	delay    time.Duration
	metrics  *suggest.Metrics
	registry *prometheus.Registry
	router   *gin.Engine

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	controller *suggest.Controller

	mu      sync.Mutex
	query   string
	details *DetailsResponse
}

// QueryRequest is the body of PUT /api/sessions/:id/query.
type QueryRequest struct {
	Query string `json:"query"`
}

// SelectRequest is the body of POST /api/sessions/:id/select. Seq is the
// sequence number of the results the index refers to; when omitted the
// current results are used.
type SelectRequest struct {
	Index *int    `json:"index" binding:"required"`
	Seq   *uint64 `json:"seq,omitempty"`
}

// ResultsResponse is the published state of a session.
type ResultsResponse struct {
	Seq     uint64                        `json:"seq"`
	State   string                        `json:"state"`
	Results []geocoding.LocationCandidate `json:"results"`
}

// DetailsResponse is the outcome of the last selection of a session.
type DetailsResponse struct {
	Candidate geocoding.LocationCandidate `json:"candidate"`
	Weather   *geocoding.Weather          `json:"weather,omitempty"`
	Error     string                      `json:"error,omitempty"`
}

// NewServer creates a server whose sessions resolve queries with geocoder
// and fetch selection details with details.
func NewServer(geocoder geocoding.Geocoder, details geocoding.WeatherFetcher, options *ServerOptions) *Server {
	if options == nil {
		options = &ServerOptions{}
	}

	s := &Server{
		geocoder: geocoder,
		details:  details,
		history:  options.History,
		delay:    options.Delay,
		metrics:  suggest.NewMetrics(),
		sessions: map[string]*session{},
	}

	registry, requests, duration := newRegistry(s.metrics, s.sessionCount)
	s.registry = registry

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), requestMetrics(requests, duration))

	r.POST("/api/sessions", s.createSession)
	r.PUT("/api/sessions/:id/query", s.search)
	r.DELETE("/api/sessions/:id/query", s.cancel)
	r.GET("/api/sessions/:id/results", s.results)
	r.POST("/api/sessions/:id/select", s.selectCandidate)
	r.GET("/api/sessions/:id/details", s.getDetails)
	r.DELETE("/api/sessions/:id", s.closeSession)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	s.router = r

	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the counters shared by all sessions.
func (s *Server) Metrics() *suggest.Metrics {
	return s.metrics
}

// Run serves on addr until ctx is done, then shuts down gracefully and
// closes every session.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)

	go func() {
		log.Printf("Listening on http://%s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.Close()

		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)

	s.Close()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Close closes every open session.
func (s *Server) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = map[string]*session{}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.controller.Close()
	}
}

func (s *Server) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

func (s *Server) lookup(ctx *gin.Context) *session {
	s.mu.Lock()
	sess, ok := s.sessions[ctx.Param("id")]
	s.mu.Unlock()

	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})

		return nil
	}

	return sess
}

func (s *Server) createSession(ctx *gin.Context) {
	id := uuid.NewString()
	sess := &session{}

	sess.controller = suggest.NewController(s.geocoder, s.details, &suggest.ControllerOptions{
		Delay:   s.delay,
		Metrics: s.metrics,
		OnDetails: func(candidate geocoding.LocationCandidate, weather *geocoding.Weather, err error) {
			outcome := &DetailsResponse{Candidate: candidate, Weather: weather}
			if err != nil {
				outcome.Error = err.Error()
			}

			sess.mu.Lock()
			sess.details = outcome
			sess.mu.Unlock()
		},
	})

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	ctx.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) search(ctx *gin.Context) {
	sess := s.lookup(ctx)
	if sess == nil {
		return
	}

	var req QueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	sess.mu.Lock()
	sess.query = strings.TrimSpace(req.Query)
	sess.mu.Unlock()

	sess.controller.Search(req.Query)

	ctx.Status(http.StatusAccepted)
}

func (s *Server) cancel(ctx *gin.Context) {
	sess := s.lookup(ctx)
	if sess == nil {
		return
	}

	sess.controller.Cancel()

	ctx.Status(http.StatusNoContent)
}

func (s *Server) results(ctx *gin.Context) {
	sess := s.lookup(ctx)
	if sess == nil {
		return
	}

	pub := sess.controller.Publication()

	ctx.JSON(http.StatusOK, ResultsResponse{
		Seq:     pub.Seq,
		State:   pub.State.String(),
		Results: pub.Results,
	})
}

func (s *Server) selectCandidate(ctx *gin.Context) {
	sess := s.lookup(ctx)
	if sess == nil {
		return
	}

	var req SelectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	seq := sess.controller.Publication().Seq
	if req.Seq != nil {
		seq = *req.Seq
	}

	// cleared first, the detail fetch may complete before SelectAt returns
	sess.mu.Lock()
	query := sess.query
	previous := sess.details
	sess.details = nil
	sess.mu.Unlock()

	candidate, err := sess.controller.SelectAt(seq, *req.Index)
	if err != nil {
		sess.mu.Lock()
		if sess.details == nil {
			sess.details = previous
		}
		sess.mu.Unlock()
	}

	switch {
	case errors.Is(err, suggest.ErrStalePublication):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})

		return
	case err != nil:
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if s.history != nil {
		if err := s.history.SaveSelection(history.NewSelection(query, candidate)); err != nil {
			log.Printf("Recording selection of %s failed - %s", candidate.Label(), err)
		}
	}

	ctx.JSON(http.StatusAccepted, candidate)
}

func (s *Server) getDetails(ctx *gin.Context) {
	sess := s.lookup(ctx)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	details := sess.details
	sess.mu.Unlock()

	if details == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no details available"})

		return
	}

	ctx.JSON(http.StatusOK, details)
}

func (s *Server) closeSession(ctx *gin.Context) {
	id := ctx.Param("id")

	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})

		return
	}

	sess.controller.Close()

	ctx.Status(http.StatusNoContent)
}
