package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentid-dev/agentid-go/pkg/permission"
	"github.com/agentid-dev/agentid-go/pkg/verifier"
)

var (
	flagCheckRegion string
	flagCheckAmt    float64
)

func init() {
	checkCmd.Flags().Float64Var(&flagCheckAmt, "amount", 0, "Transaction amount for condition checks")
	checkCmd.Flags().StringVar(&flagCheckRegion, "region", "", "Request region for condition checks")

	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check [credential-id] [resource] [action]",
	Short: "Check whether a credential grants an action on a resource",
	Args:  cobra.ExactArgs(3),
	RunE: func(_ *cobra.Command, args []string) error {
		credentialID, resource, action := args[0], args[1], args[2]

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		v := verifier.New(verifier.Options{APIBase: flagAPIBase})
		result, err := v.VerifyCredential(ctx, credentialID, true)
		if err != nil {
			return err
		}
		if !result.Valid {
			fmt.Printf("DENIED   credential invalid: %s (%s)\n", result.Error, result.ErrorCode)
			os.Exit(1)
		}
		if result.Credential == nil {
			return fmt.Errorf("verification result carries no credential payload")
		}

		pctx := &permission.Context{Amount: flagCheckAmt, Region: flagCheckRegion}
		decision := permission.Check(result.Credential.Permissions, resource, action, pctx)
		if !decision.Granted {
			fmt.Printf("DENIED   %s on %s\n", action, resource)
			fmt.Printf("  reason: %s\n", decision.Reason)
			os.Exit(1)
		}

		fmt.Printf("GRANTED  %s on %s\n", action, resource)
		return nil
	},
}
