package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentid-dev/agentid-go/pkg/agentid"
	"github.com/agentid-dev/agentid-go/pkg/revocation"
)

var (
	flagWatchWSBase       string
	flagWatchPollInterval time.Duration
	flagWatchCredentials  []string
)

func init() {
	watchCmd.Flags().StringVar(&flagWatchWSBase, "ws-base", "", "WebSocket base URL (default: hosted stream)")
	watchCmd.Flags().DurationVar(&flagWatchPollInterval, "poll-interval", 30*time.Second, "Polling interval when the stream is unavailable")
	watchCmd.Flags().StringSliceVar(&flagWatchCredentials, "credential", nil, "Credential ID to watch (repeatable; default: all)")

	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the revocation stream",
	Long: `Subscribe to credential revocations and print each event as it
arrives. Prefers the WebSocket stream, falls back to polling.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		w := revocation.NewWatcher(revocation.Options{
			APIBase:       flagAPIBase,
			WSBase:        flagWatchWSBase,
			PollInterval:  flagWatchPollInterval,
			CredentialIDs: flagWatchCredentials,
			OnRevocation: func(e agentid.RevocationEvent) {
				fmt.Printf("%s  REVOKED  %s", time.Now().Format(time.RFC3339), e.CredentialID)
				if e.Reason != "" {
					fmt.Printf("  (%s)", e.Reason)
				}
				fmt.Println()
			},
			OnConnectionChange: func(connected bool) {
				if connected {
					fmt.Fprintln(os.Stderr, "connected")
				} else {
					fmt.Fprintln(os.Stderr, "disconnected")
				}
			},
			OnError: func(err error) {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			},
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w.Connect(ctx)
		defer w.Disconnect()

		<-ctx.Done()
		return nil
	},
}
