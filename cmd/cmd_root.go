// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/jcodagnone/geosuggest/geocoding"
	"github.com/jcodagnone/geosuggest/history"
	"github.com/jcodagnone/geosuggest/suggest"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

const apiKeyEnv = "OPENWEATHER_API_KEY"

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	APIKey        string
	DbPath        string
	TraceHTTP     bool
	TraceHTTPBody bool
	Delay         time.Duration
}

var options = &rootOptions{}

var rootCmd = &cobra.Command{
	Use:   "geosuggest",
	Short: "location autocomplete backed by OpenWeatherMap",
	Long: `
geosuggest turns what is typed in a search box into a short list of matching
places. Keystrokes are debounced, stale responses are discarded and every
result list is sanitized, validated and deduplicated before it is shown.
`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("Ignoring .env - %s", err)
		}

		if options.APIKey == "" {
			options.APIKey = os.Getenv(apiKeyEnv)
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&options.APIKey, "api-key", "", "OpenWeatherMap API key (default $"+apiKeyEnv+")")
	flags.StringVar(&options.DbPath, "db-path", "db", "directory holding the selection history database")
	flags.BoolVar(&options.TraceHTTP, "trace-http", false, "trace outgoing HTTP requests")
	flags.BoolVar(&options.TraceHTTPBody, "trace-http-body", false, "trace outgoing HTTP requests including bodies")
	flags.DurationVar(&options.Delay, "delay", suggest.DefaultDelay, "debounce delay between keystrokes and the remote search")
}

func newClient() (*geocoding.OpenWeatherClient, error) {
	if options.APIKey == "" {
		return nil, fmt.Errorf("an API key is required: use --api-key or set %s", apiKeyEnv)
	}

	return geocoding.NewOpenWeatherClient(options.APIKey, &geocoding.ClientOptions{
		UserAgent:           fmt.Sprintf("geosuggest/%s (+https://github.com/jcodagnone/geosuggest)", Version),
		EnableHTTPTrace:     options.TraceHTTP,
		EnableHTTPBodyTrace: options.TraceHTTPBody,
	}), nil
}

// openHistory opens the selection history, creating it when missing.
func openHistory() (*sql.DB, history.Repository, error) {
	if err := os.MkdirAll(options.DbPath, 0o750); err != nil {
		return nil, nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("duckdb", filepath.Join(options.DbPath, "geosuggest.duckdb"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo := history.NewRepository(db)
	if err := repo.CreateSchema(); err != nil {
		db.Close()

		return nil, nil, fmt.Errorf("creating history schema: %w", err)
	}

	return db, repo, nil
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
