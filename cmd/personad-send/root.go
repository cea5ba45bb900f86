package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultAddr = "http://localhost:8080"

var rootCmd = &cobra.Command{
	Use:   "personad-send",
	Short: "CLI client for a running personad instance",
	Long: `Personad-send talks to the HTTP API of a running personad process.
It can dispatch conversations to personas and inspect the reply log
without going through the web UI.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("addr", defaultAddr, "base URL of the personad server")
	rootCmd.PersistentFlags().String("username", "", "basic auth username for protected endpoints")
	rootCmd.PersistentFlags().String("password", "", "basic auth password for protected endpoints")
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}

// doRequest issues the request with basic auth flags applied and returns the
// body. Non-2xx responses become errors carrying the server's message.
func doRequest(cmd *cobra.Command, req *http.Request) ([]byte, error) {
	username := mustGetString(cmd, "username")
	password := mustGetString(cmd, "password")
	if username != "" {
		req.SetBasicAuth(username, password)
	}

	resp, err := newHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func mustGetString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flag error: %v\n", err)
		os.Exit(2)
	}
	return v
}

func mustGetInt(cmd *cobra.Command, name string) int {
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flag error: %v\n", err)
		os.Exit(2)
	}
	return v
}
