package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/4ier/logodeth/internal/client"
)

var (
	apiOrigin  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "logodeth",
	Short: "Metal logo recognition from the command line",
	Long: `logodeth uploads band logos to the LOGODETH API and prints the
ranked candidates it recognises.

Images must be JPG, PNG, GIF or WebP and at most 10MB.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = color.New(color.FgRed).Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiOrigin, "api", os.Getenv("LOGODETH_API_URL"), "API server origin (default http://localhost:8000)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds the API client from --api.
var newClient = func() *client.Client {
	return client.New(client.ResolveBaseURL(apiOrigin))
}

// displayError carries the sentence shown to a user alongside the cause.
type displayError struct {
	msg string
	err error
}

func (e *displayError) Error() string { return e.msg }
func (e *displayError) Unwrap() error { return e.err }

func userError(err error) error {
	return &displayError{msg: client.UserMessage(err), err: err}
}
