package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Dispatch a conversation to the personas",
	Long: `Send a conversation through the running server's dispatch endpoint.
Personas whose mention token appears in the text reply asynchronously;
the command reports how many of them picked the message up.

Example:
  personad-send send "&Luna how cold does it get on the moon?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := mustGetString(cmd, "addr")
		message := strings.Join(args, " ")

		payload, err := json.Marshal(map[string]string{"message": message})
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, addr+"/send", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		body, err := doRequest(cmd, req)
		if err != nil {
			return err
		}

		var resp struct {
			Dispatched int `json:"dispatched"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("unexpected response: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Dispatched to %d persona(s)\n", resp.Dispatched)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
