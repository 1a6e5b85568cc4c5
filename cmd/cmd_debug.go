// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jcodagnone/geosuggest/geocoding"
	"github.com/jcodagnone/geosuggest/suggest"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

// verdict is the outcome of one raw record in debug sanitize.
type verdict struct {
	Input     geocoding.LocationCandidate `json:"input"`
	Sanitized geocoding.LocationCandidate `json:"sanitized"`
	Key       string                      `json:"key"`
	Error     string                      `json:"error,omitempty"`
}

type sanitizeReport struct {
	Verdicts []verdict                     `json:"verdicts"`
	Output   []geocoding.LocationCandidate `json:"output"`
}

func analyze(raw []geocoding.LocationCandidate) sanitizeReport {
	report := sanitizeReport{Verdicts: []verdict{}, Output: suggest.Pipeline(raw)}

	for _, c := range raw {
		clean := suggest.Sanitize(c)
		v := verdict{Input: c, Sanitized: clean, Key: clean.Key()}

		if err := suggest.Validate(clean); err != nil {
			v.Error = err.Error()
		}

		report.Verdicts = append(report.Verdicts, v)
	}

	return report
}

var debugSanitizeCmd = &cobra.Command{
	Use:   "sanitize",
	Short: "Runs raw geocoding records through the candidate pipeline",
	Long: `Reads a JSON array of records, as returned by the OpenWeatherMap direct
geocoding API, and prints the verdict of every record and the resulting list.

$ echo '[{"name":" Prague\n","country":"CZ","lat":50.0755,"lon":14.4378}]' | geosuggest debug sanitize
`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		if isTerminal(os.Stdin) {
			fmt.Fprintln(os.Stderr, "Paste a JSON array of records and press Ctrl+D to finish.")
		}

		var raw []geocoding.LocationCandidate
		if err := json.NewDecoder(os.Stdin).Decode(&raw); err != nil {
			return fmt.Errorf("decoding records: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(analyze(raw))
	},
}

// keystroke is one line of a replay script: the search box content typed
// after waiting Delay.
type keystroke struct {
	Delay time.Duration
	Query string
}

func parseKeystrokes(r io.Reader) ([]keystroke, error) {
	var keys []keystroke

	scanner := bufio.NewScanner(r)
	line := 0

	for scanner.Scan() {
		line++

		text := scanner.Text()
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}

		ms, query, ok := strings.Cut(text, "\t")
		if !ok {
			return nil, fmt.Errorf("line %d: expected <delay-ms><TAB><query>", line)
		}

		delay, err := strconv.Atoi(strings.TrimSpace(ms))
		if err != nil || delay < 0 {
			return nil, fmt.Errorf("line %d: invalid delay %q", line, ms)
		}

		keys = append(keys, keystroke{Delay: time.Duration(delay) * time.Millisecond, Query: query})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return keys, nil
}

// countingGeocoder records the queries that reached the geocoder.
type countingGeocoder struct {
	next geocoding.Geocoder

	mu      sync.Mutex
	queries []string
}

func (g *countingGeocoder) Search(ctx context.Context, query string, limit int) ([]geocoding.LocationCandidate, error) {
	g.mu.Lock()
	g.queries = append(g.queries, query)
	g.mu.Unlock()

	if g.next == nil {
		return []geocoding.LocationCandidate{}, nil
	}

	return g.next.Search(ctx, query, limit)
}

func (g *countingGeocoder) Queries() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]string(nil), g.queries...)
}

// replay types keys into controller, reporting progress on bar when set.
func replay(controller *suggest.Controller, keys []keystroke, bar *progressbar.ProgressBar) {
	for _, k := range keys {
		time.Sleep(k.Delay)
		controller.Search(k.Query)

		if bar != nil {
			if err := bar.Add(1); err != nil {
				log.Printf("Progress bar - %s", err)
			}
		}
	}
}

var debugReplayOffline bool

var debugReplayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Replays a keystroke script against the search controller",
	Long: `Each line of the script holds a delay in milliseconds, a tab, and the
content of the search box after that delay. Prints which queries reached the
geocoder and the final list.

$ printf '0\tpr\n80\tpra\n90\tprag\n400\tprague\n' > keys.tsv
$ geosuggest debug replay --offline keys.tsv
`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()

		keys, err := parseKeystrokes(f)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}

		counter := &countingGeocoder{}

		if !debugReplayOffline {
			client, err := newClient()
			if err != nil {
				return err
			}

			counter.next = client
		}

		var publications atomic.Int64

		controller := suggest.NewController(counter, nil, &suggest.ControllerOptions{
			Delay:     options.Delay,
			OnPublish: func([]geocoding.LocationCandidate) { publications.Add(1) },
		})
		defer controller.Close()

		var bar *progressbar.ProgressBar
		if isTerminal(os.Stderr) {
			bar = progressbar.NewOptions(len(keys),
				progressbar.OptionSetDescription("Replaying "+args[0]),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}

		replay(controller, keys, bar)
		waitSettled(controller, time.Now().Add(options.Delay+15*time.Second))

		queries := counter.Queries()
		log.Printf(
			"Replay finished - %d keystrokes, %d remote calls, %d publications",
			len(keys),
			len(queries),
			publications.Load(),
		)

		for _, q := range queries {
			fmt.Printf("→ %q\n", q)
		}

		fmt.Printf("Final state %s\n", controller.State())
		printCandidates(controller.Results())

		return nil
	},
}

func init() {
	debugReplayCmd.Flags().BoolVar(&debugReplayOffline, "offline", false, "answer every search with an empty list instead of calling the API")

	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugSanitizeCmd)
	debugCmd.AddCommand(debugReplayCmd)
}
