// Package main is the entry point for the AgentID CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agentid",
	Short: "AgentID credential toolkit CLI",
	Long: `Command-line tools for the AgentID credential system.
Verifies credentials, signs requests, evaluates permissions, and watches
the revocation stream.`,
}

var (
	flagAPIBase string
	flagAPIKey  string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIBase, "api-base", "", "AgentID API base URL (default: hosted authority)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "API key (defaults to AGENTID_API_KEY)")
}

func apiKey() string {
	if flagAPIKey != "" {
		return flagAPIKey
	}
	return os.Getenv("AGENTID_API_KEY")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
