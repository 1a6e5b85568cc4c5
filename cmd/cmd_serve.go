// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jcodagnone/geosuggest/history"
	"github.com/jcodagnone/geosuggest/web"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveOptions = struct {
	Addr          string
	NoHistory     bool
	StatsInterval time.Duration
}{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the search session web server",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		var repo history.Repository

		if !serveOptions.NoHistory {
			db, r, err := openHistory()
			if err != nil {
				return err
			}
			defer db.Close()

			repo = r
		}

		server := web.NewServer(client, client, &web.ServerOptions{
			Delay:   options.Delay,
			History: repo,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return server.Run(ctx, serveOptions.Addr)
		})

		if serveOptions.StatsInterval > 0 {
			g.Go(func() error {
				ticker := time.NewTicker(serveOptions.StatsInterval)
				defer ticker.Stop()

				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
						m := server.Metrics().Snapshot()
						log.Printf(
							"Sessions stats - %d searches, %d remote calls, %d published, %d failures, %d superseded",
							m.Searches,
							m.Requests,
							m.Published,
							m.Failures,
							m.Superseded,
						)
					}
				}
			})
		}

		err = g.Wait()

		log.Print("Server stopped")

		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveOptions.Addr, "addr", "localhost:8080", "address to listen on")
	serveCmd.Flags().BoolVar(&serveOptions.NoHistory, "no-history", false, "do not record selections")
	serveCmd.Flags().DurationVar(&serveOptions.StatsInterval, "stats-interval", 0, "log session counters periodically")
	rootCmd.AddCommand(serveCmd)
}
