package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/goodtune/timekeeper/internal/usage"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [day]",
	Short: "Show usage for finalized days",
	Long: `Show the usage recorded for past days, most recent first. Days that went over
the goal are shown in red. Pass a day (YYYY-MM-DD) to show a single entry.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	ctx := context.Background()

	if len(args) == 1 {
		day, err := usage.ParseDay(args[0])
		if err != nil {
			return err
		}
		entry, err := client.HistoryFor(ctx, day)
		if err != nil {
			return fmt.Errorf("failed to get history for %s: %w", day, err)
		}
		printHistoryLine(entry.Date, entry.Usage, entry.Exceeded)
		return nil
	}

	history, err := client.History(ctx)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	if history.Count == 0 {
		fmt.Println("No history recorded yet")
		return nil
	}

	for _, entry := range history.Entries {
		printHistoryLine(entry.Date, entry.Usage, entry.Exceeded)
	}
	return nil
}

func printHistoryLine(date, used string, exceeded bool) {
	c := color.New(color.FgGreen)
	if exceeded {
		c = color.New(color.FgRed)
	}
	_, _ = c.Printf("%s  %s\n", date, used)
}
