package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentid-dev/agentid-go/pkg/signature"
)

var (
	flagSignSecret   string
	flagSignBodyFile string
	flagSignCurlable bool
)

func init() {
	signCmd.Flags().StringVar(&flagSignSecret, "secret", "", "Signing secret (defaults to AGENTID_SIGNING_SECRET)")
	signCmd.Flags().StringVar(&flagSignBodyFile, "body", "", "File containing the request body ('-' for stdin)")
	signCmd.Flags().BoolVar(&flagSignCurlable, "curl", false, "Print headers as curl -H arguments")

	rootCmd.AddCommand(signCmd)
}

var signCmd = &cobra.Command{
	Use:   "sign [credential-id] [method] [url]",
	Short: "Generate signed request headers",
	Long: `Generate the four AgentID request headers for a single request,
ready to paste into curl or an HTTP client.`,
	Args: cobra.ExactArgs(3),
	RunE: func(_ *cobra.Command, args []string) error {
		credentialID, method, url := args[0], args[1], args[2]

		secret := flagSignSecret
		if secret == "" {
			secret = os.Getenv("AGENTID_SIGNING_SECRET")
		}

		var body []byte
		if flagSignBodyFile != "" {
			var err error
			if flagSignBodyFile == "-" {
				body, err = io.ReadAll(os.Stdin)
			} else {
				body, err = os.ReadFile(flagSignBodyFile)
			}
			if err != nil {
				return fmt.Errorf("failed to read body: %w", err)
			}
		}

		signer := signature.NewRequestSigner(credentialID, secret)
		headers := signer.SignRequest(method, url, body)

		for _, name := range []string{
			signature.HeaderCredential,
			signature.HeaderTimestamp,
			signature.HeaderNonce,
			signature.HeaderSignature,
		} {
			if flagSignCurlable {
				fmt.Printf("-H '%s: %s' \\\n", name, headers.Get(name))
			} else {
				fmt.Printf("%s: %s\n", name, headers.Get(name))
			}
		}
		return nil
	},
}
