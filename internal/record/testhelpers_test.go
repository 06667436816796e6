package record

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const argsOnlyStub = "#!/bin/sh\nset -eu\nprintf '%s\\n' \"$@\" > \"$STUB_DIR/args.txt\"\n"

const interruptibleStub = `#!/bin/sh
set -eu
printf '%s\n' "$@" > "$STUB_DIR/args.txt"
trap 'touch "$STUB_DIR/signal.txt"; exit 0' INT
while :; do sleep 0.02; done
`

// installStub puts an executable script named name first on PATH and
// exports its directory as STUB_DIR.
func installStub(t *testing.T, name, script string) string {
	t.Helper()

	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, name), []byte(script), 0o755))

	t.Setenv("PATH", tempDir+":"+os.Getenv("PATH"))
	t.Setenv("STUB_DIR", tempDir)
	return tempDir
}

func waitForFile(t *testing.T, path string, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, timeout, 10*time.Millisecond)
}
