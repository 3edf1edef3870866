package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/rerankd/internal/config"
)

var forceInit bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing config file")
}

// initCmd writes a starter configuration file.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter config file",
	Long: `Initialize rerankd by writing a commented starter configuration to:
  ~/.config/rerankd/config.yaml

The file documents every setting with its default value. Environment
variables (SERVER_HTTP_PORT, RERANK_METRIC, ...) override it at load
time.

Examples:
  # Write the starter config
  rerankd init

  # Overwrite an existing config with the defaults
  rerankd init --force`,
	RunE: runInit,
}

const starterConfig = `# rerankd configuration
#
# Every value below is the built-in default. Environment variables
# override this file: SECTION_FIELD maps to section.field, so
# SERVER_HTTP_PORT=8080 overrides server.http_port.

rerank:
  # Metric used to order hypotheses: bleu, chrf, isometric-ratio,
  # isometric-diff or isometric-lc.
  metric: bleu
  # Length penalty weight for isometric-lc, between 0 and 1.
  isometric_alpha: 0.5
  # Attach per-hypothesis metric scores to reranked records.
  attach_scores: false

server:
  host: localhost
  http_port: 9090
  shutdown_timeout: 10s
  read_timeout: 30s
  write_timeout: 60s
  # Requests per second per client IP. 0 disables rate limiting.
  rate_limit: 50
  rate_burst: 100
  # Largest accepted request body in bytes. 0 disables the limit.
  max_body_bytes: 4194304

logging:
  # trace, debug, info, warn, error
  level: info
  # json or console
  format: json

observability:
  enable_telemetry: false
  service_name: rerankd
  # OTLP collector endpoint and transport (grpc or http/protobuf).
  endpoint: localhost:4317
  protocol: grpc
  insecure: true
  # Trace sampling rate, between 0 and 1.
  sampling_rate: 1.0
`

func runInit(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	path := filepath.Join(home, ".config", "rerankd", "config.yaml")

	if !forceInit {
		if _, err := os.Stat(path); err == nil {
			cmd.Printf("Config already exists at: %s\n", path)
			cmd.Println("Use --force to overwrite.")
			return nil
		}
	}

	if err := config.EnsureConfigDir(); err != nil {
		return err
	}

	// 0600 keeps the loader's permission check happy.
	if err := os.WriteFile(path, []byte(starterConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	cmd.Printf("Wrote starter config to: %s\n", path)
	return nil
}
