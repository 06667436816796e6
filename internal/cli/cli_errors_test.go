package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCLIErrorCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		args        []string
		errContains string
	}{
		{
			name:        "unknown command",
			args:        []string{"badcmd"},
			errContains: "unknown command",
		},
		{
			name:        "unknown root flag",
			args:        []string{"--badflag"},
			errContains: "unknown flag",
		},
		{
			name:        "unknown subcommand flag",
			args:        []string{"transcribe", "--bogus", "f.wav"},
			errContains: "unknown flag",
		},
		{
			name:        "transcribe missing arg",
			args:        []string{"transcribe"},
			errContains: "accepts 1 arg(s)",
		},
		{
			name:        "transcribe too many args",
			args:        []string{"transcribe", "a.wav", "b.wav"},
			errContains: "accepts 1 arg(s)",
		},
		{
			name:        "transcribe nonexistent file",
			args:        []string{"transcribe", "/no/such/file.wav"},
			errContains: "audio file not found",
		},
		{
			name:        "youtube invalid url",
			args:        []string{"youtube", "ftp://example.com/video"},
			errContains: "invalid video URL",
		},
		{
			name:        "history show bad id",
			args:        []string{"history", "show", "abc"},
			errContains: "invalid transcription id",
		},
		{
			name:        "history show missing id",
			args:        []string{"history", "show", "99"},
			errContains: "not found",
		},
		{
			name:        "pdf merge needs two inputs",
			args:        []string{"pdf", "merge", "a.pdf"},
			errContains: "requires at least 2 arg(s)",
		},
		{
			name:        "pdf extract without pages",
			args:        []string{"pdf", "extract", "a.pdf"},
			errContains: "page selection is required",
		},
		{
			name:        "pdf extract exclusive flags",
			args:        []string{"pdf", "extract", "a.pdf", "--all", "--separate"},
			errContains: "none of the others can be",
		},
		{
			name:        "setup empty key",
			args:        []string{"setup", "--api-key", "   ", "--skip-validate"},
			errContains: "must not be empty",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := runCommand(t, tt.args)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestVersionFlagOutput(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCommand(t, []string{"--version"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stdout, "transcriptor v"), "expected version prefix, got: %s", stdout)
}

func TestVersionCommandOutput(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCommand(t, []string{"version"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stdout, "transcriptor v"), "expected version prefix, got: %s", stdout)
}
