package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/digitaljerry/mbus"
	"github.com/digitaljerry/mbus/model"
)

var departuresCmd = &cobra.Command{
	Use:   "departures <stop_id> <route>",
	Short: "Lists the next departures of a route at a stop",
	Args:  cobra.ExactArgs(2),
	RunE:  departures,
}

var (
	date       string
	jsonOutput bool
)

func init() {
	departuresCmd.Flags().StringVarP(&date, "date", "d", "", "Service date, YYYY-MM-DD (default today)")
	departuresCmd.Flags().BoolVarP(&jsonOutput, "json", "", false, "Print JSON")
	rootCmd.AddCommand(departuresCmd)
}

func departures(cmd *cobra.Command, args []string) error {
	resolver, closeStorage, err := buildResolver(nil)
	if err != nil {
		return err
	}
	defer closeStorage()

	res, err := resolver.Query(cmd.Context(), mbus.Query{
		StopID: args[0],
		Route:  args[1],
		Date:   date,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Printf("Stop %s, route %s (%s)\n", res.StopID, res.Route, res.Date)
	for _, s := range res.Schedules {
		fmt.Printf("  %s\n", formatSchedule(s))
	}
	if len(res.Schedules) == 0 {
		fmt.Println("  no departures")
	}
	if res.Note != "" {
		fmt.Printf("Note: %s\n", res.Note)
	}
	fmt.Printf("Source: %s\n", res.SourceURL)

	return nil
}

func formatSchedule(s model.Schedule) string {
	out := s.Time
	if s.NextDay {
		out += " (+1 day)"
	}
	if s.Destination != "" {
		out += " " + s.Destination
	}
	if s.Realtime {
		if s.Delay >= 60 {
			out += fmt.Sprintf(" (%d min late)", s.Delay/60)
		} else if s.Delay <= -60 {
			out += fmt.Sprintf(" (%d min early)", -s.Delay/60)
		} else {
			out += " (on time)"
		}
	}
	return out
}
