// Package main implements the sylx CLI for running syllabus extraction
// against a syllabusd server or in-process.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the syllabusd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sylx",
		Short: "CLI for syllabus task and session extraction",
		Long: `sylx extracts hard deadlines and class sessions from syllabus text.

It talks to a running syllabusd server by default. Use "extract --local" to
run the pipeline in-process with the local configuration instead.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9090", "syllabusd server URL")
	root.AddCommand(newExtractCmd())
	root.AddCommand(newSnippetsCmd())
	root.AddCommand(newHealthCmd())
	return root
}

// HealthResponse matches internal/http HealthResponse
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Oracle  string `json:"oracle"`
	Publish string `json:"publish"`
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check syllabusd server health",
		Long: `Check the health status of the syllabusd HTTP server.

Examples:
  # Check health
  sylx health

  # Check health on a different server
  sylx health --server http://localhost:8080`,
		Args: cobra.NoArgs,
		RunE: runHealth,
	}
}

func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/health", serverURL)

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server Status: %s\n", healthResp.Status)
	fmt.Fprintf(out, "Server URL: %s\n", serverURL)
	if healthResp.Version != "" {
		fmt.Fprintf(out, "Version: %s\n", healthResp.Version)
	}
	fmt.Fprintf(out, "Oracle: %s\n", healthResp.Oracle)
	fmt.Fprintf(out, "Publish: %s\n", healthResp.Publish)
	return nil
}

// checkStatus turns a non-200 response into an error carrying the body.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
	}
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
}

// readInput reads a file argument, or stdin for no argument or "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	var (
		content []byte
		err     error
	)
	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}
	if len(content) == 0 {
		return "", fmt.Errorf("no syllabus text to process")
	}
	return string(content), nil
}
