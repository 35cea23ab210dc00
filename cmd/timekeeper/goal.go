package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	goalHours   int
	goalMinutes int
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Set today's goal",
	Long: `Set the daily goal in hours and minutes. Goals outside the allowed range
are adjusted to the nearest bound and the adjustment is reported.`,
	Example: `  timekeeper goal --hours 1 --minutes 15`,
	RunE:    runGoal,
}

func init() {
	goalCmd.Flags().IntVar(&goalHours, "hours", 0, "Goal hours (0-23)")
	goalCmd.Flags().IntVar(&goalMinutes, "minutes", 0, "Goal minutes (0-59)")
	rootCmd.AddCommand(goalCmd)
}

func runGoal(cmd *cobra.Command, args []string) error {
	if !cmd.Flags().Changed("hours") && !cmd.Flags().Changed("minutes") {
		return fmt.Errorf("at least one of --hours or --minutes is required")
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	resp, err := client.SetGoal(context.Background(), goalHours, goalMinutes)
	if err != nil {
		return fmt.Errorf("failed to set goal: %w", err)
	}

	if resp.Clamped {
		_, _ = color.New(color.FgYellow).Println(resp.Message)
		return nil
	}
	_, _ = color.New(color.FgGreen).Printf("Goal set to %s\n", resp.Goal)
	return nil
}
