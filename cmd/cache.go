package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manages the schedule cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Removes all cached schedules",
	Args:  cobra.NoArgs,
	RunE:  cacheClear,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists cached schedules",
	Args:  cobra.NoArgs,
	RunE:  cacheList,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheListCmd)
	rootCmd.AddCommand(cacheCmd)
}

func cacheClear(cmd *cobra.Command, args []string) error {
	s, closeStorage, err := openStorage()
	if err != nil {
		return err
	}
	defer closeStorage()

	err = s.Clear()
	if err != nil {
		return err
	}

	fmt.Println("cache cleared")
	return nil
}

func cacheList(cmd *cobra.Command, args []string) error {
	s, closeStorage, err := openStorage()
	if err != nil {
		return err
	}
	defer closeStorage()

	entries, err := s.ListEntries()
	if err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Printf(
			"%s %s %d schedules, stored %s, %s\n",
			e.Key,
			e.Payload.Date,
			len(e.Payload.Schedules),
			e.Timestamp.Local().Format("15:04:05"),
			e.Payload.SourceURL,
		)
	}

	return nil
}
