package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentid-dev/agentid-go/pkg/registry"
)

var (
	flagSearchJSON       bool
	flagSearchCategories []string
	flagSearchMinTrust   int
	flagSearchLimit      int
)

func init() {
	searchCmd.Flags().BoolVar(&flagSearchJSON, "json", false, "Output results as JSON")
	searchCmd.Flags().StringSliceVar(&flagSearchCategories, "category", nil, "Filter by category (repeatable)")
	searchCmd.Flags().IntVar(&flagSearchMinTrust, "min-trust", 0, "Minimum trust score")
	searchCmd.Flags().IntVar(&flagSearchLimit, "limit", 20, "Maximum results")

	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the agent registry",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		query := ""
		if len(args) > 0 {
			query = args[0]
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		client := registry.NewClient(flagAPIBase, apiKey())
		resp, err := client.Search(ctx, registry.SearchOptions{
			Query:         query,
			Categories:    flagSearchCategories,
			MinTrustScore: flagSearchMinTrust,
			Limit:         flagSearchLimit,
		})
		if err != nil {
			return err
		}

		if flagSearchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}

		fmt.Printf("%d agents (showing %d)\n", resp.Total, len(resp.Agents))
		for _, agent := range resp.Agents {
			verified := " "
			if agent.IsVerified {
				verified = "*"
			}
			fmt.Printf("%s %-30s trust=%-3d %s\n", verified, agent.DisplayName, agent.TrustScore, agent.CredentialID)
		}
		return nil
	},
}
