// Package cli implements the routeman operator CLI. Every command is a
// thin wrapper over the routemand HTTP API.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

const (
	defaultServer = "http://127.0.0.1:8172"

	// Matches the daemon's insecure default so the pair works out of
	// the box.
	defaultToken = "this_is_something_secret"
)

func Run() ExitCode {
	rootCmd := &cobra.Command{
		Use:   "routeman",
		Short: "Operator CLI for the routemand scheduled-route daemon.",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := cmd.Help()
			if err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	var verbose bool
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "set debug logging level")

	var server string
	rootCmd.PersistentFlags().StringVarP(&server, "server", "s", defaultServer, "base URL of the routemand API")

	var token string
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", envWithDefault("APITOKEN", defaultToken), "API bearer token (defaults to APITOKEN)")

	var jsonOut bool
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print raw JSON responses instead of tables")

	rootCmd.AddCommand(
		NewListCmd().Command(),
		NewAddCmd().Command(),
		NewUpdateCmd().Command(),
		NewDelCmd().Command(),
		NewPauseCmd().Command(),
		NewResumeCmd().Command(),
		NewHistoryCmd().Command(),
	)

	if err := rootCmd.Execute(); err != nil {
		return exitCodeError
	}

	return exitCodeSuccess
}

// clientFromFlags builds the API client from the root persistent flags.
func clientFromFlags(cmd *cobra.Command) (*Client, bool, error) {
	verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil {
		return nil, false, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	server, err := cmd.Root().PersistentFlags().GetString("server")
	if err != nil {
		return nil, false, fmt.Errorf("failed to get server flag: %w", err)
	}
	token, err := cmd.Root().PersistentFlags().GetString("token")
	if err != nil {
		return nil, false, fmt.Errorf("failed to get token flag: %w", err)
	}
	jsonOut, err := cmd.Root().PersistentFlags().GetBool("json")
	if err != nil {
		return nil, false, fmt.Errorf("failed to get json flag: %w", err)
	}
	return NewClient(newLogger(verbose), server, token), jsonOut, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func envWithDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetHeader(header)
	return table
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
