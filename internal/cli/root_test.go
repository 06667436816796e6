package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/DonMrMango/transcriptor/internal/config"
)

func TestRootCommandRegistersCoreFlags(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	for _, name := range []string{"verbose", "json", "no-progress", "data-dir", "backend", "input", "input-format", "language", "model", "no-save", "keep-audio"} {
		require.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	require.Equal(t, "true", cmd.PersistentFlags().Lookup("silence-gate").DefValue)
	require.Equal(t, "-65", cmd.PersistentFlags().Lookup("silence-threshold-dbfs").DefValue)
	require.Equal(t, "0s", cmd.Flags().Lookup("duration").DefValue)
	require.Equal(t, "false", cmd.Flags().Lookup("immediate").DefValue)
	require.Equal(t, "false", cmd.Flags().Lookup("no-copy").DefValue)
}

func TestRootHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	require.NoError(t, err)
	for _, sub := range []string{"record", "transcribe", "youtube", "history", "pdf", "setup", "devices", "host", "update"} {
		require.Contains(t, out.String(), sub)
	}
}

func TestSubcommandHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "record", args: []string{"record", "--help"}, contains: "Record audio into a WAV file"},
		{name: "transcribe", args: []string{"transcribe", "--help"}, contains: "Transcribe an audio file"},
		{name: "youtube", args: []string{"youtube", "--help"}, contains: "yt-dlp"},
		{name: "history", args: []string{"history", "--help"}, contains: "search"},
		{name: "pdf", args: []string{"pdf", "--help"}, contains: "split-fixed"},
		{name: "pdf extract", args: []string{"pdf", "extract", "--help"}, contains: "--separate"},
		{name: "devices", args: []string{"devices", "--help"}, contains: "List recording devices"},
		{name: "setup", args: []string{"setup", "--help"}, contains: "API key"},
		{name: "host", args: []string{"host", "--help"}, contains: "newline-delimited JSON"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stdout, _, err := runCommand(t, tt.args)
			require.NoError(t, err)
			require.Contains(t, stdout, tt.contains)
		})
	}
}

func TestPrepareAppliesSettingsUnderFlags(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	settings := config.Defaults()
	settings.Backend = "arecord"
	settings.Language = "fr"
	require.NoError(t, config.Save(filepath.Join(dataDir, "config.toml"), settings))

	app := &appState{dataDir: dataDir, language: "en"}
	require.NoError(t, app.prepare(&cobra.Command{}))

	require.Equal(t, "en", app.language)
	require.Equal(t, "arecord", app.backend)
	require.Equal(t, config.DefaultModel, app.model)
	require.Equal(t, dataDir, app.dirs.Data)
	require.Equal(t, "fr", app.settings.Language)
}
