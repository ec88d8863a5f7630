package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smartclaim/triage/internal/config"
	"github.com/smartclaim/triage/internal/logging"
)

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
}

// printResult writes v as indented JSON when --output json is set, otherwise
// calls text.
func printResult(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if format, _ := cmd.Flags().GetString("output"); format == "json" {
		jsonBytes, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		fmt.Fprintln(w, string(jsonBytes))
		return nil
	}
	text(w)
	return nil
}

// loadApp builds the dependency graph for one-shot admin commands. Logs go to
// stderr at warn level unless CLAIMD_DEBUG is set.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := "warn"
	if cfg.Debug {
		level = cfg.LogLevel
	}
	logger := logging.Must(level, cfg.Debug)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	a.closers = append([]func(){func() { _ = logger.Sync() }}, a.closers...)
	logger.Debug("admin command ready", zap.String("backend", cfg.VectorBackend))
	return a, nil
}
