package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"inboxsync/internal/config"
	"inboxsync/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfg   *config.Config
	debug bool
)

var rootCmd = &cobra.Command{
	Use:          "inboxsync",
	Short:        "Pull notes from a GitHub inbox folder into a local vault",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		logger.Init(debug)

		var err error
		cfg, err = config.Load()
		return err
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// errDaemonDown marks a failed connection so commands can fall back to
// working on the ledger directly.
var errDaemonDown = errors.New("daemon not reachable")

func daemonURL(path string) string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", cfg.DaemonPort, path)
}

// callDaemon sends a request to the running daemon and decodes the JSON
// answer into out. Non-2xx answers carrying {"error": ...} become errors.
func callDaemon(method, path string, out any) (int, error) {
	req, err := http.NewRequest(method, daemonURL(path), bytes.NewReader(nil))
	if err != nil {
		return 0, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errDaemonDown, err)
	}

	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read daemon response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return resp.StatusCode, fmt.Errorf("daemon: %s", apiErr.Error)
		}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode daemon response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

func requireValidConfig() error {
	if err := cfg.Validate(); err != nil {
		dir, _ := config.Dir()
		return fmt.Errorf("invalid config (%s/config.yaml): %w", dir, err)
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
}
