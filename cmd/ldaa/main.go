// Package main implements the ldaa CLI for submitting and reviewing runs
// against the ldaa HTTP server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

const (
	envServer = "LDAA_SERVER"
	envToken  = "LDAA_TOKEN"
)

var (
	// serverURL is the base URL of the ldaa API module
	serverURL string
	// token is an optional bearer ID token for reviewer auth
	token string
	// outputJSON prints raw JSON responses instead of tables
	outputJSON bool

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ldaa",
	Short: "CLI for the ldaa document analysis service",
	Long: `ldaa is a command-line interface for the ldaa HTTP server.
It submits document pairs for analysis, reports run status, and answers
human review gates.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr(envServer, "http://localhost:8080/api"), "ldaa API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv(envToken), "bearer ID token for reviewer auth")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output results as JSON")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
