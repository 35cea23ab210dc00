package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var pingSource string

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Report user activity to the daemon",
	Long: `Send an activity signal to the running daemon. Hook this into whatever
observes input on your desktop (an idle monitor, a shell prompt, an editor).`,
	RunE: runPing,
}

func init() {
	pingCmd.Flags().StringVar(&pingSource, "source", "cli", "Name of the activity source")
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	if err := client.Ping(context.Background(), pingSource); err != nil {
		return fmt.Errorf("failed to send activity: %w", err)
	}
	return nil
}
