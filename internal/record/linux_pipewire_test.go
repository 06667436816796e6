package record

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPipeWireInputPassesTarget(t *testing.T) {
	tempDir := installStub(t, "pw-record", interruptibleStub)

	backend := newPipeWireBackend()
	require.True(t, backend.Available())

	capture, err := Start(context.Background(), backend, Config{
		OutputPath: filepath.Join(tempDir, "out.wav"),
		Input:      "42",
		Output:     io.Discard,
	})
	require.NoError(t, err)

	waitForFile(t, filepath.Join(tempDir, "args.txt"), time.Second)
	_, err = capture.Stop()
	require.NoError(t, err)

	argsRaw, err := os.ReadFile(filepath.Join(tempDir, "args.txt"))
	require.NoError(t, err)
	require.Contains(t, string(argsRaw), "--target\n42\n")
	require.Contains(t, string(argsRaw), "--rate\n16000\n")
	waitForFile(t, filepath.Join(tempDir, "signal.txt"), time.Second)
}

func TestPipeWireNoInputOmitsTarget(t *testing.T) {
	t.Parallel()

	argv := newPipeWireBackend().Commands(Config{OutputPath: "out.wav", SampleRate: 44100})
	require.Len(t, argv, 1)
	require.NotContains(t, argv[0], "--target")
	require.Contains(t, argv[0], "44100")
}
