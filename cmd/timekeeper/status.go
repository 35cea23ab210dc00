package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's usage and goal",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	status, err := client.Status(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)

	_, _ = bold.Printf("%s\n", status.Day)
	fmt.Printf("  Usage:     %s\n", status.Usage)
	fmt.Printf("  Goal:      %s\n", status.Goal)
	if status.Exceeded {
		_, _ = red.Printf("  Remaining: %s (goal exceeded)\n", status.Remaining)
	} else {
		_, _ = green.Printf("  Remaining: %s\n", status.Remaining)
	}
	if status.Active {
		fmt.Println("  State:     active")
	} else {
		fmt.Println("  State:     idle")
	}
	if status.Notification != nil {
		_, _ = red.Printf("\n%s\n", status.Notification.Message)
	}

	return nil
}
