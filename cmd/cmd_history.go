// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/jcodagnone/geosuggest/history"
	"github.com/jcodagnone/geosuggest/spatial"
	"github.com/jcodagnone/geosuggest/utils/textutils"
	"github.com/spf13/cobra"
)

var historyOptions = struct {
	Match  string
	Limit  int
	Lat    float64
	Lon    float64
	Radius float64
}{}

func printSelections(selections []*history.Selection, from *spatial.Point) {
	a, b, c := strings.Repeat("─", 19), strings.Repeat("─", 40), strings.Repeat("─", 24)
	fmt.Printf("╭─%s─┬─%s─┬─%s─╮\n", a, b, c)
	fmt.Printf("│ %-19s │ %-40s │ %-24s │\n", "Selected", "Place", "Point")
	fmt.Printf("├─%s─┼─%s─┼─%s─┤\n", a, b, c)

	for _, s := range selections {
		point := fmt.Sprintf("%.4f, %.4f", s.Point.Lat, s.Point.Lng)
		if from != nil {
			point = fmt.Sprintf("%.1f km", from.HaversineDistance(&s.Point)/1000)
		}

		fmt.Printf("│ %-19s │ %-40.40s │ %-24s │\n", s.SelectedAt.Local().Format("2006-01-02 15:04:05"), s.Label(), point)
	}

	fmt.Printf("╰─%s─┴─%s─┴─%s─╯\n", a, b, c)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Places picked in previous searches",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the most recent selections",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, repo, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		var selections []*history.Selection
		if historyOptions.Match != "" {
			selections, err = repo.Matching(historyOptions.Match, historyOptions.Limit)
		} else {
			selections, err = repo.ListRecent(historyOptions.Limit)
		}

		if err != nil {
			return fmt.Errorf("listing selections: %w", err)
		}

		total, err := repo.Count()
		if err != nil {
			return fmt.Errorf("counting selections: %w", err)
		}

		printSelections(selections, nil)
		fmt.Printf("%s of %s selections\n", textutils.FormatInt(int64(len(selections))), textutils.FormatInt(int64(total)))

		return nil
	},
}

var historyNearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "Lists selections close to a point, nearest first",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, repo, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		center := spatial.Point{Lat: historyOptions.Lat, Lng: historyOptions.Lon}

		selections, err := repo.Nearby(center, historyOptions.Radius)
		if err != nil {
			return fmt.Errorf("searching selections near %s: %w", center, err)
		}

		printSelections(selections, &center)

		return nil
	},
}

func init() {
	historyListCmd.Flags().StringVar(&historyOptions.Match, "match", "", "only places whose name contains this text, ignoring accents")
	historyListCmd.Flags().IntVar(&historyOptions.Limit, "limit", 20, "maximum number of selections")

	historyNearbyCmd.Flags().Float64Var(&historyOptions.Lat, "lat", 0, "latitude of the center")
	historyNearbyCmd.Flags().Float64Var(&historyOptions.Lon, "lon", 0, "longitude of the center")
	historyNearbyCmd.Flags().Float64Var(&historyOptions.Radius, "radius", 10_000, "radius in meters")
	_ = historyNearbyCmd.MarkFlagRequired("lat")
	_ = historyNearbyCmd.MarkFlagRequired("lon")

	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyNearbyCmd)
}
