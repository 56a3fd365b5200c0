package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/spf13/cobra"

	"github.com/agentid-dev/agentid-go/pkg/agentid"
	"github.com/agentid-dev/agentid-go/pkg/verifier"
)

var (
	flagVerifyJSON      bool
	flagVerifyNoCache   bool
	flagVerifyTimeout   time.Duration
	flagVerifyIssuerKey string
)

func init() {
	verifyCmd.Flags().BoolVar(&flagVerifyJSON, "json", false, "Output the raw verification result as JSON")
	verifyCmd.Flags().BoolVar(&flagVerifyNoCache, "no-cache", false, "Bypass the verification cache")
	verifyCmd.Flags().DurationVar(&flagVerifyTimeout, "timeout", 30*time.Second, "Request timeout")
	verifyCmd.Flags().StringVar(&flagVerifyIssuerKey, "issuer-key", "", "JWK file with the issuer's public key; also verify the payload's issuer signature")

	rootCmd.AddCommand(verifyCmd)
}

func verifyIssuerSignature(result *agentid.VerificationResult, keyFile string) error {
	if result.Credential == nil {
		return fmt.Errorf("verification result carries no credential payload")
	}

	data, err := os.ReadFile(keyFile)
	if err != nil {
		return fmt.Errorf("failed to read issuer key: %w", err)
	}

	var jwk jose.JSONWebKey
	if err := json.Unmarshal(data, &jwk); err != nil {
		return fmt.Errorf("failed to parse issuer key: %w", err)
	}
	if !jwk.Valid() || !jwk.IsPublic() {
		return fmt.Errorf("issuer key must be a valid public JWK")
	}

	return agentid.VerifyIssuerSignature(result.Credential, jwk.Key)
}

var verifyCmd = &cobra.Command{
	Use:   "verify [credential-id]",
	Short: "Verify a credential against the authority",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), flagVerifyTimeout)
		defer cancel()

		v := verifier.New(verifier.Options{APIBase: flagAPIBase})
		result, err := v.VerifyCredential(ctx, args[0], !flagVerifyNoCache)
		if err != nil {
			return err
		}

		if result.Valid && flagVerifyIssuerKey != "" {
			if err := verifyIssuerSignature(result, flagVerifyIssuerKey); err != nil {
				return fmt.Errorf("issuer signature: %w", err)
			}
		}

		if flagVerifyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		if !result.Valid {
			fmt.Printf("INVALID  %s\n", args[0])
			if result.Error != "" {
				fmt.Printf("  reason: %s (%s)\n", result.Error, result.ErrorCode)
			}
			os.Exit(1)
		}

		fmt.Printf("VALID    %s\n", args[0])
		if result.Credential != nil {
			fmt.Printf("  agent:  %s\n", result.Credential.AgentName)
			fmt.Printf("  issuer: %s\n", result.Credential.Issuer.Name)
			if until := result.Credential.Constraints.ValidUntil; !until.IsZero() {
				fmt.Printf("  expires: %s\n", until.Format(time.RFC3339))
			}
		}
		if result.TrustScore != nil {
			fmt.Printf("  trust:  %d\n", *result.TrustScore)
		}
		return nil
	},
}
