package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesToExtraFileSink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "host.log")
	logger, err := New(Options{JSON: true, File: path})
	require.NoError(t, err)

	logger.Info("bridge ready")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"msg":"bridge ready"`)
	require.Contains(t, string(raw), `"app":"transcriptor"`)
}

func TestNewVerboseEnablesDebug(t *testing.T) {
	t.Parallel()

	logger, err := New(Options{Verbose: true})
	require.NoError(t, err)
	require.NotNil(t, logger.Check(zapcore.DebugLevel, "debug"))

	quiet, err := New(Options{})
	require.NoError(t, err)
	require.Nil(t, quiet.Check(zapcore.DebugLevel, "debug"))
}
