package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = "transcriptor"

// Dirs holds the per-user locations the application reads and writes.
type Dirs struct {
	Data       string
	Config     string
	Recordings string
}

func (d Dirs) DatabasePath() string {
	return filepath.Join(d.Data, "transcriptor.db")
}

func (d Dirs) ConfigPath() string {
	return filepath.Join(d.Config, "config.toml")
}

func (d Dirs) LogPath() string {
	return filepath.Join(d.Data, "logs", "transcriptor.log")
}

func NormalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}

// DirsFor resolves application directories without touching the environment.
func DirsFor(goos, homeDir, xdgDataHome, xdgConfigHome string) (Dirs, error) {
	if homeDir == "" {
		return Dirs{}, errors.New("home directory is empty")
	}

	switch goos {
	case "linux":
		data := filepath.Join(homeDir, ".local", "share", appDirName)
		if xdgDataHome != "" {
			data = filepath.Join(xdgDataHome, appDirName)
		}
		config := filepath.Join(homeDir, ".config", appDirName)
		if xdgConfigHome != "" {
			config = filepath.Join(xdgConfigHome, appDirName)
		}
		return Dirs{Data: data, Config: config, Recordings: filepath.Join(data, "recordings")}, nil
	case "darwin":
		base := filepath.Join(homeDir, "Library", "Application Support", appDirName)
		return Dirs{Data: base, Config: base, Recordings: filepath.Join(base, "recordings")}, nil
	default:
		return Dirs{}, fmt.Errorf("unsupported OS: %s", goos)
	}
}

// ResolveDirs resolves directories for the current user. A non-empty override
// replaces the data directory and everything derived from it.
func ResolveDirs(override string) (Dirs, error) {
	if override != "" {
		base := filepath.Clean(override)
		return Dirs{Data: base, Config: base, Recordings: filepath.Join(base, "recordings")}, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Dirs{}, fmt.Errorf("resolve user home: %w", err)
	}

	return DirsFor(runtime.GOOS, homeDir, os.Getenv("XDG_DATA_HOME"), os.Getenv("XDG_CONFIG_HOME"))
}

// Ensure creates every directory in d.
func (d Dirs) Ensure() error {
	for _, dir := range []string{d.Data, d.Config, d.Recordings} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
