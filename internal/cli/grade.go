package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusbridge/lti-outcomes/internal/lti"
)

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Send grade messages",
	Long:  `Send replaceResult, readResult and deleteResult messages to the outcomes service`,
}

var gradeReplaceCmd = &cobra.Command{
	Use:   "replace <sourcedid> <score>",
	Short: "Store a grade",
	Long:  `Send a replaceResultRequest storing the given score (a decimal fraction between 0.0 and 1.0) against the sourcedId`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("score %q is not a decimal number: %w", args[1], err)
		}
		return sendResultMessage(cmd.Context(), lti.MessageReplaceResult, args[0], &score)
	},
}

var gradeReadCmd = &cobra.Command{
	Use:   "read <sourcedid>",
	Short: "Read a stored grade",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendResultMessage(cmd.Context(), lti.MessageReadResult, args[0], nil)
	},
}

var gradeDeleteCmd = &cobra.Command{
	Use:   "delete <sourcedid>",
	Short: "Delete a stored grade",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendResultMessage(cmd.Context(), lti.MessageDeleteResult, args[0], nil)
	},
}

func init() {
	gradeCmd.AddCommand(gradeReplaceCmd)
	gradeCmd.AddCommand(gradeReadCmd)
	gradeCmd.AddCommand(gradeDeleteCmd)
}

func sendResultMessage(ctx context.Context, messageType, sourcedID string, score *float64) error {
	body, messageID, err := lti.BuildResultRequest(messageType, sourcedID, score)
	if err != nil {
		return err
	}

	appLogger.Info("sending grade message",
		slog.String("message_type", messageType),
		slog.String("message_id", messageID),
	)

	return postSigned(ctx, body)
}

// postSigned body-signs and POSTs a request envelope and prints the response
// envelope to stdout.
func postSigned(ctx context.Context, body []byte) error {
	if consumerKey == "" || secret == "" {
		return fmt.Errorf("--key and --secret are required")
	}

	authorization, err := lti.SignRequest(http.MethodPost, serviceURL, consumerKey, secret, body, time.Now())
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serviceURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Content-Type", "application/xml")

	client := &http.Client{Timeout: 30 * time.Second}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	appLogger.Info("service responded",
		slog.Int("status", resp.StatusCode),
	)

	fmt.Println(string(responseBody))
	return nil
}
