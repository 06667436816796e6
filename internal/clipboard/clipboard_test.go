package clipboard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func onlyFinds(names ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, n := range names {
			if n == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
}

func TestDetectCommandPrefersWayland(t *testing.T) {
	t.Parallel()

	spec, err := detectCommand("linux", onlyFinds("xclip", "wl-copy"))
	require.NoError(t, err)
	require.Equal(t, "wl-copy", spec.name)
	require.False(t, spec.detach)
}

func TestDetectCommandFallsBackToXsel(t *testing.T) {
	t.Parallel()

	spec, err := detectCommand("linux", onlyFinds("xsel"))
	require.NoError(t, err)
	require.Equal(t, "xsel", spec.name)
	require.True(t, spec.detach)
}

func TestDetectCommandUnavailable(t *testing.T) {
	t.Parallel()

	_, err := detectCommand("darwin", onlyFinds("xclip"))
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = detectCommand("windows", onlyFinds("pbcopy"))
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestCopyTextPipesValueToTool(t *testing.T) {
	binDir := t.TempDir()
	outFile := filepath.Join(binDir, "clipboard.txt")
	stub := "#!/bin/sh\ncat > \"$CLIPBOARD_FILE\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "wl-copy"), []byte(stub), 0o755))
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))
	t.Setenv("CLIPBOARD_FILE", outFile)

	err := copyText(context.Background(), "linux", func(name string) (string, error) {
		return filepath.Join(binDir, name), nil
	}, "hola mundo")
	require.NoError(t, err)

	raw, err := os.ReadFile(outFile)
	require.NoError(t, err)
	require.Equal(t, "hola mundo", string(raw))
}
