package main

import (
	"fmt"
	"os"

	"github.com/goodtune/timekeeper/internal/api"
	"github.com/goodtune/timekeeper/internal/config"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "timekeeper",
	Short: "timekeeper - daily active-time tracker with goals and history",
	Long: `timekeeper tracks how long you are actively using your machine, compares
it against a daily goal and keeps a history of past days. Run it as a daemon
with "serve" and feed it activity signals with "ping" or the HTTP API.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to serve command when no subcommand is provided
		return runServe(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath(), "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newClient loads configuration and returns a client for the running daemon.
func newClient() (*api.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return api.NewClient(cfg.ClientAddr(), parseDuration(cfg.Client.Timeout, 0)), nil
}
