package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/mcncl/blade-ls/internal/config"
)

var errCheckFailed = errors.New("check found errors")

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	pathColor    = color.New(color.Bold)
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>...",
		Short: "Print diagnostics for templates and fail if any is an error",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			cfg.LogLevel = checkLogLevel(cfg.LogLevel, opts.logLevel)
			logger, err := newLogger(cfg.Level())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			server := newServer(cfg, logger)

			failed := false
			for _, path := range args {
				abs, err := filepath.Abs(path)
				if err != nil {
					return err
				}
				content, err := os.ReadFile(abs)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				diags := server.Check(uri.File(abs), string(content))
				logger.Debug("checked template", zap.String("path", abs), zap.Int("diagnostics", len(diags)))
				if printDiagnostics(cmd.OutOrStdout(), path, diags) {
					failed = true
				}
			}
			if failed {
				return errCheckFailed
			}
			return nil
		},
	}
}

// checkLogLevel quiets the built-in default so the report stands out. A level
// from the flag, the config file or the environment is kept.
func checkLogLevel(configured, flag string) string {
	if flag == "" && configured == config.Default().LogLevel {
		return "warn"
	}
	return configured
}

// printDiagnostics writes one line per diagnostic with 1-based positions and
// reports whether any of them is an error.
func printDiagnostics(w io.Writer, path string, diags []protocol.Diagnostic) bool {
	hasErrors := false
	for _, d := range diags {
		label := severityLabel(d.Severity)
		if d.Severity == protocol.DiagnosticSeverityError {
			hasErrors = true
		}
		fmt.Fprintf(w, "%s:%d:%d: %s %s",
			pathColor.Sprint(path),
			d.Range.Start.Line+1,
			d.Range.Start.Character+1,
			label,
			d.Message,
		)
		if d.Code != nil {
			fmt.Fprintf(w, " [%v]", d.Code)
		}
		fmt.Fprintln(w)
	}
	return hasErrors
}

func severityLabel(s protocol.DiagnosticSeverity) string {
	switch s {
	case protocol.DiagnosticSeverityError:
		return errorColor.Sprint("error:")
	case protocol.DiagnosticSeverityWarning:
		return warningColor.Sprint("warning:")
	default:
		return infoColor.Sprint("info:")
	}
}
