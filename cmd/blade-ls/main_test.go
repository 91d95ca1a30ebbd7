package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func init() {
	color.NoColor = true
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTemplate(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCheckCommand(t *testing.T) {
	bad := writeTemplate(t, "bad.blade.php", "<div>\n  @if($user)\n</div>\n")
	good := writeTemplate(t, "good.blade.php", "@if($count < 5)\n  <p>{{ $a < $b ? 'few' : 'many' }}</p>\n@endif\n@hasSection('nav')\n  @yield('nav')\n@endif\n")

	out, err := runCLI(t, "check", good)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = runCLI(t, "check", good, bad)
	assert.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, out, bad+":2:3: error: @if is missing its closing @endif [blade/unclosed-directive]")

	_, err = runCLI(t, "check", filepath.Join(t.TempDir(), "missing.blade.php"))
	assert.Error(t, err)

	_, err = runCLI(t, "check")
	assert.Error(t, err, "at least one file is required")
}

func TestCheckCommand_InvalidLogLevel(t *testing.T) {
	path := writeTemplate(t, "ok.blade.php", "<p></p>\n")

	_, err := runCLI(t, "--log-level", "loud", "check", path)
	assert.Error(t, err)
}

func TestCheckLogLevel(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		flag       string
		want       string
	}{
		{"built-in default is quieted", "info", "", "warn"},
		{"level from file or env is kept", "debug", "", "debug"},
		{"flag wins", "info", "info", "info"},
		{"flag already applied", "error", "error", "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkLogLevel(tt.configured, tt.flag))
		})
	}
}

func TestCheckCommand_KeepsEnvLogLevel(t *testing.T) {
	path := writeTemplate(t, "ok.blade.php", "<p></p>\n")
	t.Setenv("BLADE_LS_LOG_LEVEL", "debug")

	cfg, err := (&rootOptions{}).load()
	require.NoError(t, err)
	assert.Equal(t, "debug", checkLogLevel(cfg.LogLevel, ""))

	_, err = runCLI(t, "check", path)
	assert.NoError(t, err)
}

func TestPrintDiagnostics(t *testing.T) {
	var out bytes.Buffer
	failed := printDiagnostics(&out, "home.blade.php", []protocol.Diagnostic{{
		Range:    protocol.Range{Start: protocol.Position{Line: 4, Character: 0}},
		Severity: protocol.DiagnosticSeverityWarning,
		Code:     "blade/undefined-component",
		Message:  "Component <x-nope> not found",
	}, {
		Range:    protocol.Range{Start: protocol.Position{Line: 0, Character: 9}},
		Severity: protocol.DiagnosticSeverityInformation,
		Message:  "note",
	}})

	assert.False(t, failed, "warnings do not fail the check")
	assert.Equal(t,
		"home.blade.php:5:1: warning: Component <x-nope> not found [blade/undefined-component]\n"+
			"home.blade.php:1:10: info: note\n",
		out.String())
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "blade-ls dev")
}
