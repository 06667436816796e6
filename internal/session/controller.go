// Package session drives the recording workflow: the screen state machine,
// the single microphone capture and the transcribe-then-save sequence.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DonMrMango/transcriptor/internal/audio"
	"github.com/DonMrMango/transcriptor/internal/store"
	"github.com/DonMrMango/transcriptor/internal/stt"
)

var (
	ErrSilentRecording = errors.New("recording is silent; nothing to transcribe")
	ErrEmptyTranscript = errors.New("transcription returned no text")
)

// Capture is the stop handle of a running recording.
type Capture interface {
	Stop() (string, error)
	Cancel() error
	Pause() error
	Resume() error
	Paused() bool
	Elapsed() time.Duration
}

type Recorder interface {
	Start(ctx context.Context, outputPath string) (Capture, error)
}

type RecorderFunc func(ctx context.Context, outputPath string) (Capture, error)

func (f RecorderFunc) Start(ctx context.Context, outputPath string) (Capture, error) {
	return f(ctx, outputPath)
}

type Transcriber interface {
	Transcribe(ctx context.Context, req stt.Request) (stt.Result, error)
}

type Store interface {
	Save(ctx context.Context, in store.NewTranscription) (store.Transcription, error)
}

type Options struct {
	Recorder    Recorder
	Transcriber Transcriber
	Store       Store
	// Dir receives the temporary WAV files.
	Dir string
	// SilenceGate skips the API call for recordings under SilenceDBFS.
	SilenceGate bool
	SilenceDBFS float64
	// KeepAudio leaves the WAV file on disk after a successful transcription.
	KeepAudio bool
	// OnChange is called after every screen change, outside the lock.
	OnChange func(from, to Screen)
	Logger   *zap.Logger
}

// Controller owns the screen state and at most one capture. Its methods are
// safe for concurrent use; operations that do not fit the current screen fail
// with ErrInvalidTransition.
type Controller struct {
	opts   Options
	logger *zap.Logger
	newID  func() string

	mu      sync.Mutex
	screen  Screen
	capture Capture
	// path is where the running capture writes its audio.
	path string
	last *store.Transcription
}

func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SilenceDBFS == 0 {
		opts.SilenceDBFS = audio.DefaultSilenceThresholdDBFS
	}
	return &Controller{
		opts:   opts,
		logger: logger.Named("session"),
		newID:  uuid.NewString,
		screen: Menu,
	}
}

func (c *Controller) Screen() Screen {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screen
}

// Last returns the most recently saved transcription, if any.
func (c *Controller) Last() (store.Transcription, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return store.Transcription{}, false
	}
	return *c.last, true
}

// Paused reports whether the running capture is suspended.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil && c.capture.Paused()
}

// Elapsed reports the active recording time, zero when not recording.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture == nil {
		return 0
	}
	return c.capture.Elapsed()
}

func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	from := c.screen
	to, err := Next(from, StartRecording)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if c.capture != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: a capture is already running", ErrInvalidTransition)
	}

	path := filepath.Join(c.opts.Dir, "recording-"+c.newID()+".wav")
	capture, err := c.opts.Recorder.Start(ctx, path)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("start recording: %w", err)
	}
	c.capture = capture
	c.path = path
	c.screen = to
	c.mu.Unlock()

	c.logger.Debug("recording started", zap.String("path", path))
	c.changed(from, to)
	return nil
}

// StopRecording ends the capture, transcribes it and saves the result. Any
// failure after the capture stops returns the controller to Menu.
func (c *Controller) StopRecording(ctx context.Context) (store.Transcription, error) {
	c.mu.Lock()
	to, err := Next(c.screen, StopRecording)
	if err != nil {
		c.mu.Unlock()
		return store.Transcription{}, err
	}
	capture, path := c.capture, c.path
	c.capture, c.path = nil, ""
	c.screen = to
	c.mu.Unlock()
	c.changed(Recording, Transcribing)

	saved, err := c.transcribe(ctx, capture, path)
	if err != nil {
		c.finish(TranscriptionFailed, nil)
		return store.Transcription{}, err
	}
	c.finish(Transcribed, &saved)
	return saved, nil
}

func (c *Controller) transcribe(ctx context.Context, capture Capture, started string) (store.Transcription, error) {
	path, err := capture.Stop()
	if err != nil {
		if rmErr := os.Remove(started); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			c.logger.Warn("could not remove partial recording", zap.String("path", started), zap.Error(rmErr))
		}
		return store.Transcription{}, fmt.Errorf("stop recording: %w", err)
	}

	keep := false
	defer func() {
		if !keep {
			_ = os.Remove(path)
		}
	}()

	var duration *float64
	if info, err := audio.Inspect(path); err != nil {
		c.logger.Warn("could not inspect recording", zap.String("path", path), zap.Error(err))
	} else {
		if c.opts.SilenceGate && info.IsSilent(c.opts.SilenceDBFS) {
			c.logger.Info("skipping transcription of silent recording",
				zap.Float64("rms_dbfs", info.Metrics.RMSdBFS),
				zap.Float64("peak_dbfs", info.Metrics.PeakdBFS))
			return store.Transcription{}, ErrSilentRecording
		}
		duration = store.Seconds(info.Seconds())
	}

	result, err := c.opts.Transcriber.Transcribe(ctx, stt.Request{AudioPath: path})
	if err != nil {
		return store.Transcription{}, err
	}
	if strings.TrimSpace(result.Text) == "" {
		return store.Transcription{}, ErrEmptyTranscript
	}
	if result.Duration != nil {
		duration = result.Duration
	}

	saved, err := c.opts.Store.Save(ctx, store.NewTranscription{
		Text:     result.Text,
		Duration: duration,
		Language: result.Language,
		Model:    result.Model,
	})
	if err != nil {
		return store.Transcription{}, fmt.Errorf("save transcription: %w", err)
	}

	keep = c.opts.KeepAudio
	return saved, nil
}

func (c *Controller) finish(event Event, saved *store.Transcription) {
	c.mu.Lock()
	from := c.screen
	to, err := Next(from, event)
	if err != nil {
		c.mu.Unlock()
		c.logger.Error("unexpected state after transcription", zap.Error(err))
		return
	}
	c.screen = to
	if saved != nil {
		c.last = saved
	}
	c.mu.Unlock()
	c.changed(from, to)
}

// CancelRecording discards the capture without transcribing.
func (c *Controller) CancelRecording() error {
	return c.leaveRecording(CancelRecording)
}

func (c *Controller) leaveRecording(event Event) error {
	c.mu.Lock()
	to, err := Next(c.screen, event)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	capture := c.capture
	c.capture, c.path = nil, ""
	c.screen = to
	c.mu.Unlock()

	var cancelErr error
	if capture != nil {
		cancelErr = capture.Cancel()
	}
	c.changed(Recording, to)
	return cancelErr
}

func (c *Controller) PauseRecording() error {
	return c.withCapture(Capture.Pause)
}

func (c *Controller) ResumeRecording() error {
	return c.withCapture(Capture.Resume)
}

func (c *Controller) withCapture(fn func(Capture) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.screen != Recording || c.capture == nil {
		return fmt.Errorf("%w: not recording", ErrInvalidTransition)
	}
	return fn(c.capture)
}

// Toggle starts a recording when none is running and stops it otherwise.
// The returned transcription is nil when the call started a recording.
func (c *Controller) Toggle(ctx context.Context) (*store.Transcription, error) {
	if c.Screen() == Recording {
		saved, err := c.StopRecording(ctx)
		if err != nil {
			return nil, err
		}
		return &saved, nil
	}
	return nil, c.StartRecording(ctx)
}

// ReleaseMicrophone drops any held capture and discards its audio. It never
// fails for lack of a capture.
func (c *Controller) ReleaseMicrophone() error {
	c.mu.Lock()
	capture := c.capture
	c.capture, c.path = nil, ""
	from := c.screen
	if from == Recording {
		c.screen = Menu
	}
	c.mu.Unlock()

	var err error
	if capture != nil {
		c.logger.Debug("releasing microphone")
		err = capture.Cancel()
	}
	if from == Recording {
		c.changed(from, Menu)
	}
	return err
}

// Back leaves the current screen. Leaving Recording cancels the capture.
func (c *Controller) Back() error {
	if c.Screen() == Recording {
		return c.leaveRecording(Back)
	}
	return c.move(Back)
}

func (c *Controller) ViewHistory() error {
	return c.move(ViewHistory)
}

func (c *Controller) OpenPDFTools() error {
	return c.move(OpenPDFTools)
}

func (c *Controller) move(event Event) error {
	c.mu.Lock()
	from := c.screen
	to, err := Next(from, event)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.screen = to
	c.mu.Unlock()
	c.changed(from, to)
	return nil
}

// Close releases the microphone.
func (c *Controller) Close() error {
	return c.ReleaseMicrophone()
}

func (c *Controller) changed(from, to Screen) {
	if from == to {
		return
	}
	c.logger.Debug("screen changed", zap.Stringer("from", from), zap.Stringer("to", to))
	if c.opts.OnChange != nil {
		c.opts.OnChange(from, to)
	}
}
