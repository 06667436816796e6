package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DonMrMango/transcriptor/internal/config"
	"github.com/DonMrMango/transcriptor/internal/platform"
	"github.com/DonMrMango/transcriptor/internal/session"
	"github.com/DonMrMango/transcriptor/internal/stt"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := NewRootCmd()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(append([]string{"--data-dir", t.TempDir(), "--no-progress"}, args...))

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

type fakeTranscriber struct {
	mu     sync.Mutex
	result stt.Result
	err    error
	keys   []string
	paths  []string
}

func (f *fakeTranscriber) factory(apiKey string) (session.Transcriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, apiKey)
	return f, nil
}

func (f *fakeTranscriber) Transcribe(_ context.Context, req stt.Request) (stt.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, req.AudioPath)
	return f.result, f.err
}

// fakeCapture writes a WAV with a constant-amplitude signal on Stop.
type fakeCapture struct {
	path      string
	amplitude int16
	canceled  bool
}

func (c *fakeCapture) Stop() (string, error) {
	samples := make([]int16, 16000)
	for i := range samples {
		samples[i] = c.amplitude
		if i%2 == 1 {
			samples[i] = -c.amplitude
		}
	}
	return c.path, os.WriteFile(c.path, makePCM16WAVForTest(samples, 16000, 1), 0o644)
}

func (c *fakeCapture) Cancel() error {
	c.canceled = true
	return os.Remove(c.path)
}

func (c *fakeCapture) Pause() error           { return nil }
func (c *fakeCapture) Resume() error          { return nil }
func (c *fakeCapture) Paused() bool           { return false }
func (c *fakeCapture) Elapsed() time.Duration { return time.Second }

type fakeRecorder struct {
	amplitude int16
	captures  []*fakeCapture
}

func (r *fakeRecorder) Start(_ context.Context, path string) (session.Capture, error) {
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return nil, err
	}
	c := &fakeCapture{path: path, amplitude: r.amplitude}
	r.captures = append(r.captures, c)
	return c, nil
}

// newTestApp returns an app wired to fakes, with its data under a temp dir
// and an API key in the settings.
func newTestApp(t *testing.T) (*appState, *fakeTranscriber, *fakeRecorder) {
	t.Helper()

	dirs, err := platform.ResolveDirs(t.TempDir())
	require.NoError(t, err)

	transcriber := &fakeTranscriber{result: stt.Result{Text: "hola mundo", Language: "es", Model: config.DefaultModel}}
	recorder := &fakeRecorder{amplitude: math.MaxInt16 / 4}

	settings := config.Defaults()
	settings.APIKey = "gsk_test"

	app := &appState{
		silenceGate:      true,
		silenceDBFS:      -65,
		settings:         settings,
		dirs:             dirs,
		recorder:         recorder,
		newTranscriberFn: transcriber.factory,
		waitFn:           func(context.Context, time.Duration) error { return nil },
		copyFn:           func(context.Context, string) error { return nil },
	}
	return app, transcriber, recorder
}

func makePCM16WAVForTest(samples []int16, sampleRate int, channels int) []byte {
	bytesPerSample := 2
	dataSize := len(samples) * bytesPerSample
	fmtChunkSize := 16
	riffSize := 4 + (8 + fmtChunkSize) + (8 + dataSize)

	out := make([]byte, 12+8+fmtChunkSize+8+dataSize)
	off := 0

	copy(out[off:], []byte("RIFF"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(riffSize))
	off += 4
	copy(out[off:], []byte("WAVE"))
	off += 4

	copy(out[off:], []byte("fmt "))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(fmtChunkSize))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint16(out[off:], uint16(channels))
	off += 2
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate*channels*bytesPerSample))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], uint16(channels*bytesPerSample))
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 16)
	off += 2

	copy(out[off:], []byte("data"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(dataSize))
	off += 4

	for _, s := range samples {
		binary.LittleEndian.PutUint16(out[off:], uint16(s))
		off += 2
	}

	return out
}
