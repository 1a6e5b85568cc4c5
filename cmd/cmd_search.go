// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jcodagnone/geosuggest/geocoding"
	"github.com/jcodagnone/geosuggest/history"
	"github.com/jcodagnone/geosuggest/suggest"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var searchNoHistory bool

func printCandidates(results []geocoding.LocationCandidate) {
	if len(results) == 0 {
		fmt.Println("  (no results)")

		return
	}

	for i, c := range results {
		fmt.Printf("  %d. %-40s %s\n", i+1, c.Label(), c.Point())
	}
}

func printWeather(candidate geocoding.LocationCandidate, weather *geocoding.Weather, err error) {
	if err != nil {
		fmt.Printf("» %s: %s\n", candidate.Label(), err)

		return
	}

	fmt.Printf("» %s: %s, %.1f° (feels like %.1f°), humidity %d%%, wind %.1f m/s\n",
		candidate.Label(),
		weather.Description,
		weather.Temperature,
		weather.FeelsLike,
		weather.Humidity,
		weather.WindSpeed,
	)
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Interactive search box on stdin",
	Long: `Every input line is the whole content of the search box. Results are
printed each time a new list is published.

  :cancel      dismisses the current suggestions
  :select N    picks the N-th suggestion and shows its current weather

$ printf 'pr\npra\nprague\n' | geosuggest search
`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		var repo history.Repository

		if !searchNoHistory {
			db, r, err := openHistory()
			if err != nil {
				log.Printf("Selections won't be recorded - %s", err)
			} else {
				defer db.Close()

				repo = r
			}
		}

		details := make(chan struct{}, 64)
		controller := suggest.NewController(client, client, &suggest.ControllerOptions{
			Delay:     options.Delay,
			OnPublish: printCandidates,
			OnDetails: func(c geocoding.LocationCandidate, w *geocoding.Weather, err error) {
				printWeather(c, w, err)

				select {
				case details <- struct{}{}:
				default:
				}
			},
		})
		defer controller.Close()

		interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
		if interactive {
			fmt.Fprintln(os.Stderr, "Type a place name, one edit per line. :select N picks a result, :cancel dismisses them.")
		}

		pending := 0
		query := ""
		scanner := bufio.NewScanner(os.Stdin)

		for scanner.Scan() {
			line := scanner.Text()

			switch {
			case strings.TrimSpace(line) == ":cancel":
				controller.Cancel()
			case strings.HasPrefix(strings.TrimSpace(line), ":select"):
				n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), ":select")))
				results := controller.Results()

				if err != nil || n < 1 || n > len(results) {
					fmt.Fprintf(os.Stderr, "Pick a number between 1 and %d\n", len(results))

					continue
				}

				candidate := results[n-1]
				if repo != nil {
					if err := repo.SaveSelection(history.NewSelection(query, candidate)); err != nil {
						log.Printf("Recording selection of %s failed - %s", candidate.Label(), err)
					}
				}

				pending++

				controller.Select(candidate)
			default:
				query = strings.TrimSpace(line)
				controller.Search(line)
			}
		}

		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		// let the last search and any weather lookups land before exiting
		timeout := time.After(options.Delay + 15*time.Second)

		for ; pending > 0; pending-- {
			select {
			case <-details:
			case <-timeout:
				return nil
			}
		}

		if !interactive {
			waitSettled(controller, time.Now().Add(options.Delay+15*time.Second))
		}

		return nil
	},
}

// waitSettled blocks until controller has no search pending or deadline.
func waitSettled(controller *suggest.Controller, deadline time.Time) {
	for time.Now().Before(deadline) {
		switch controller.State() {
		case suggest.StateDebouncing, suggest.StateInFlight:
			time.Sleep(10 * time.Millisecond)
		default:
			return
		}
	}
}

func init() {
	searchCmd.Flags().BoolVar(&searchNoHistory, "no-history", false, "do not record selections")
	rootCmd.AddCommand(searchCmd)
}
