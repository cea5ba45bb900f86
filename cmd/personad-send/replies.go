package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var repliesCmd = &cobra.Command{
	Use:   "replies",
	Short: "List recent reply log entries",
	Long: `Fetch recent reply log entries from the running server.
Requires the reply log to be enabled and, when auth is on, the
--username/--password flags.

Example:
  personad-send replies --persona Luna --success false --limit 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := mustGetString(cmd, "addr")

		q := url.Values{}
		if v := mustGetString(cmd, "persona"); v != "" {
			q.Set("persona", v)
		}
		if v := mustGetString(cmd, "success"); v != "" {
			if _, err := strconv.ParseBool(v); err != nil {
				return fmt.Errorf("invalid --success value %q: %w", v, err)
			}
			q.Set("success", v)
		}
		if v := mustGetString(cmd, "search"); v != "" {
			q.Set("search", v)
		}
		q.Set("limit", strconv.Itoa(mustGetInt(cmd, "limit")))
		q.Set("offset", strconv.Itoa(mustGetInt(cmd, "offset")))

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, addr+"/ui/replies?"+q.Encode(), nil)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}

		body, err := doRequest(cmd, req)
		if err != nil {
			return err
		}

		if mustGetString(cmd, "output") == "json" {
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		}

		var resp struct {
			Total   int `json:"total"`
			Replies []struct {
				Persona      string    `json:"persona"`
				Conversation string    `json:"conversation"`
				Response     string    `json:"response"`
				Attempts     int       `json:"attempts"`
				DurationMs   int       `json:"duration_ms"`
				Success      bool      `json:"success"`
				ErrorMessage string    `json:"error_message"`
				CreatedAt    time.Time `json:"created_at"`
			} `json:"replies"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("unexpected response: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Total: %d\n", resp.Total)
		for _, r := range resp.Replies {
			status := "ok"
			if !r.Success {
				status = "failed: " + r.ErrorMessage
			}
			fmt.Fprintf(out, "[%s] %s (%d attempts, %dms, %s)\n", r.CreatedAt.Format(time.RFC3339), r.Persona, r.Attempts, r.DurationMs, status)
			fmt.Fprintf(out, "  > %s\n", r.Conversation)
			fmt.Fprintf(out, "  < %s\n", r.Response)
		}
		return nil
	},
}

func init() {
	repliesCmd.Flags().String("persona", "", "filter by persona name")
	repliesCmd.Flags().String("success", "", "filter by outcome: true or false")
	repliesCmd.Flags().String("search", "", "full-text search over conversations and replies")
	repliesCmd.Flags().Int("limit", 20, "maximum entries to fetch")
	repliesCmd.Flags().Int("offset", 0, "pagination offset")
	repliesCmd.Flags().String("output", "text", "output format: text, json")

	rootCmd.AddCommand(repliesCmd)
}
