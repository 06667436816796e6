package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirsForLinuxWithXDG(t *testing.T) {
	t.Parallel()

	dirs, err := DirsFor("linux", "/home/dev", "/tmp/xdg-data", "/tmp/xdg-config")
	require.NoError(t, err)
	require.Equal(t, "/tmp/xdg-data/transcriptor", dirs.Data)
	require.Equal(t, "/tmp/xdg-config/transcriptor", dirs.Config)
	require.Equal(t, "/tmp/xdg-data/transcriptor/recordings", dirs.Recordings)
	require.Equal(t, "/tmp/xdg-data/transcriptor/transcriptor.db", dirs.DatabasePath())
	require.Equal(t, "/tmp/xdg-config/transcriptor/config.toml", dirs.ConfigPath())
}

func TestDirsForLinuxWithoutXDG(t *testing.T) {
	t.Parallel()

	dirs, err := DirsFor("linux", "/home/dev", "", "")
	require.NoError(t, err)
	require.Equal(t, "/home/dev/.local/share/transcriptor", dirs.Data)
	require.Equal(t, "/home/dev/.config/transcriptor", dirs.Config)
}

func TestDirsForMacOS(t *testing.T) {
	t.Parallel()

	dirs, err := DirsFor("darwin", "/Users/dev", "", "")
	require.NoError(t, err)
	require.Equal(t, "/Users/dev/Library/Application Support/transcriptor", dirs.Data)
	require.Equal(t, dirs.Data, dirs.Config)
}

func TestDirsForUnsupportedOS(t *testing.T) {
	t.Parallel()

	_, err := DirsFor("windows", "/Users/dev", "", "")
	require.Error(t, err)

	_, err = DirsFor("linux", "", "", "")
	require.Error(t, err)
}

func TestResolveDirsOverrideAndEnsure(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "state")
	dirs, err := ResolveDirs(base)
	require.NoError(t, err)
	require.NoError(t, dirs.Ensure())

	info, err := os.Stat(dirs.Recordings)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNormalizeArch(t *testing.T) {
	t.Parallel()

	require.Equal(t, "amd64", NormalizeArch("x86_64"))
	require.Equal(t, "arm64", NormalizeArch("aarch64"))
	require.Equal(t, "riscv64", NormalizeArch("riscv64"))
}
