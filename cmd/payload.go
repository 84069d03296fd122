package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"showbot/pkg/booking"
	"showbot/pkg/relay"

	"github.com/spf13/cobra"
)

var payloadMessageID int

// payloadCmd checks a mini-app payload offline and prints the order
// notification operators would receive.
var payloadCmd = &cobra.Command{
	Use:   "payload [json]",
	Short: "Decode a booking payload and preview the order notification",
	Long:  "Decodes a mini-app booking payload given as an argument or on stdin and prints the notification the relay would broadcast.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		raw, err := resolvePayload(args, cmd.InOrStdin())
		if err != nil {
			fmt.Printf("failed to read payload: %v\n", err)
			os.Exit(1)
		}

		preview, err := renderPayload(raw, payloadMessageID, time.Now())
		if err != nil {
			fmt.Printf("payload rejected: %v\n", err)
			os.Exit(1)
		}

		fmt.Fprintln(cmd.OutOrStdout(), preview)
	},
}

func init() {
	rootCmd.AddCommand(payloadCmd)
	payloadCmd.Flags().IntVarP(&payloadMessageID, "message-id", "m", 1, "message id used to derive the order reference")
}

func resolvePayload(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "-" {
		return args[0], nil
	}

	content, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(content)) == "" {
		return "", errors.New("empty payload")
	}

	return string(content), nil
}

func renderPayload(raw string, messageID int, now time.Time) (string, error) {
	payload, err := booking.Decode(raw)
	if err != nil {
		return "", err
	}

	return relay.RenderNotification(relay.Notification{
		Payload:     payload,
		OrderRef:    relay.OrderRef(messageID),
		SubmittedAt: now.UTC(),
	}), nil
}
