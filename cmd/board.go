package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/digitaljerry/mbus"
	"github.com/digitaljerry/mbus/config"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Lists the next departures of every journey group",
	Args:  cobra.NoArgs,
	RunE:  board,
}

func init() {
	boardCmd.Flags().StringVarP(&date, "date", "d", "", "Service date, YYYY-MM-DD (default today)")
	boardCmd.Flags().BoolVarP(&jsonOutput, "json", "", false, "Print JSON")
	rootCmd.AddCommand(boardCmd)
}

func board(cmd *cobra.Command, args []string) error {
	groups, err := config.ReadGroups(groupsPath)
	if err != nil {
		return err
	}

	err = mbus.ValidateDate(date)
	if err != nil {
		return err
	}

	resolver, closeStorage, err := buildResolver(nil)
	if err != nil {
		return err
	}
	defer closeStorage()

	b := resolver.Refresh(cmd.Context(), groups, date)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	}

	fmt.Printf("%s, updated %s\n", b.Date, b.UpdatedAt.Format("15:04:05"))
	for _, g := range b.Groups {
		fmt.Printf("\n%s\n", g.Group.Name)
		if len(g.Departures) == 0 {
			fmt.Println("  no departures")
		}
		for _, d := range g.Departures {
			fmt.Printf("  %-4s %s  (stop %s)\n", d.Route, formatSchedule(d.Schedule), d.StopID)
		}
	}

	return nil
}
