package record

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var ErrNotRunning = errors.New("recording is not running")

const (
	defaultStopGrace    = 3 * time.Second
	defaultStartupProbe = 250 * time.Millisecond
)

// Capture is a running recording process. It owns exactly one handle on the
// capture device, released by Stop or Cancel.
type Capture struct {
	backend string
	path    string
	cmd     *exec.Cmd
	stderr  *bytes.Buffer
	grace   time.Duration
	logger  *zap.Logger

	done    chan struct{}
	waitErr error

	stopOnce sync.Once
	stopErr  error

	mu          sync.Mutex
	ctxErr      error
	started     time.Time
	stoppedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
	paused      bool
	stopped     bool
}

// Start launches backend's capture command. It returns once the process has
// survived the startup probe. Cancelling ctx interrupts the capture, and the
// following Stop returns ctx.Err().
func Start(ctx context.Context, backend Backend, cfg Config) (*Capture, error) {
	if cfg.OutputPath == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if !backend.Available() {
		return nil, fmt.Errorf("%s: backend is not available", backend.Name())
	}
	if err := os.MkdirAll(filepath.Dir(filepath.Clean(cfg.OutputPath)), 0o755); err != nil {
		return nil, err
	}

	var errs []error
	for _, argv := range backend.Commands(cfg) {
		capture, err := launch(ctx, backend.Name(), argv, cfg)
		if err == nil {
			return capture, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			_ = removePartialRecording(cfg.OutputPath)
			return nil, err
		}
		if cleanupErr := removePartialRecording(cfg.OutputPath); cleanupErr != nil {
			errs = append(errs, fmt.Errorf("cleanup partial recording %q: %w", cfg.OutputPath, cleanupErr))
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("%s: no capture command", backend.Name())
	}
	return nil, fmt.Errorf("%s: %w", backend.Name(), errors.Join(errs...))
}

func launch(ctx context.Context, backendName string, argv []string, cfg Config) (*Capture, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	stderr := &bytes.Buffer{}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = output
	cmd.Stderr = io.MultiWriter(stderr, output)

	logger.Debug("starting capture", zap.String("backend", backendName), zap.Strings("args", argv))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s: %w", argv[0], err)
	}

	c := &Capture{
		backend: backendName,
		path:    cfg.OutputPath,
		cmd:     cmd,
		stderr:  stderr,
		grace:   cfg.StopGrace,
		logger:  logger,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	if c.grace <= 0 {
		c.grace = defaultStopGrace
	}
	go func() {
		c.waitErr = cmd.Wait()
		close(c.done)
	}()

	probe := cfg.StartupProbe
	if probe <= 0 {
		probe = defaultStartupProbe
	}
	timer := time.NewTimer(probe)
	defer timer.Stop()

	select {
	case <-c.done:
		if c.waitErr != nil {
			return nil, fmt.Errorf("%s: %w%s", argv[0], c.waitErr, c.diagnostics())
		}
	case <-timer.C:
	case <-ctx.Done():
		_ = cmd.Process.Signal(os.Interrupt)
		c.waitOrKill()
		return nil, ctx.Err()
	}

	go c.watch(ctx)
	return c, nil
}

func (c *Capture) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		c.mu.Lock()
		c.ctxErr = ctx.Err()
		c.mu.Unlock()
		c.stopOnce.Do(c.halt)
	case <-c.done:
	}
}

func (c *Capture) Backend() string {
	return c.backend
}

func (c *Capture) Path() string {
	return c.path
}

// Stop interrupts the capture and returns the path of the recorded WAV file.
// It is safe to call more than once.
func (c *Capture) Stop() (string, error) {
	c.stopOnce.Do(c.halt)

	c.mu.Lock()
	ctxErr := c.ctxErr
	c.mu.Unlock()

	if ctxErr != nil {
		return "", ctxErr
	}
	if c.stopErr != nil {
		return "", fmt.Errorf("%s: %w", c.backend, c.stopErr)
	}
	return c.path, nil
}

// Cancel stops the capture and discards the recorded audio.
func (c *Capture) Cancel() error {
	_, err := c.Stop()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	return errors.Join(err, removePartialRecording(c.path))
}

func (c *Capture) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.runningLocked() {
		return ErrNotRunning
	}
	if c.paused {
		return nil
	}
	if err := suspendProcess(c.cmd.Process); err != nil {
		return fmt.Errorf("pause %s: %w", c.backend, err)
	}
	c.paused = true
	c.pausedAt = time.Now()
	return nil
}

func (c *Capture) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.runningLocked() {
		return ErrNotRunning
	}
	if !c.paused {
		return nil
	}
	if err := resumeProcess(c.cmd.Process); err != nil {
		return fmt.Errorf("resume %s: %w", c.backend, err)
	}
	c.pausedTotal += time.Since(c.pausedAt)
	c.paused = false
	return nil
}

func (c *Capture) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Elapsed reports recorded time, excluding time spent paused.
func (c *Capture) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	end := time.Now()
	switch {
	case c.stopped:
		end = c.stoppedAt
	case c.paused:
		end = c.pausedAt
	}
	return end.Sub(c.started) - c.pausedTotal
}

func (c *Capture) runningLocked() bool {
	if c.stopped {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *Capture) halt() {
	c.mu.Lock()
	if c.paused {
		if err := resumeProcess(c.cmd.Process); err != nil {
			c.logger.Debug("resume before stop failed", zap.Error(err))
		}
		c.pausedTotal += time.Since(c.pausedAt)
		c.paused = false
	}
	c.mu.Unlock()

	defer c.markStopped()

	select {
	case <-c.done:
		c.stopErr = c.exitError(c.waitErr, false)
		return
	default:
	}

	stopSignalSent := c.cmd.Process.Signal(os.Interrupt) == nil
	c.waitOrKill()
	c.stopErr = c.exitError(c.waitErr, stopSignalSent)
}

func (c *Capture) waitOrKill() {
	timer := time.NewTimer(c.grace)
	defer timer.Stop()

	select {
	case <-c.done:
	case <-timer.C:
		c.logger.Warn("recording process ignored stop signal, killing it", zap.String("backend", c.backend))
		_ = c.cmd.Process.Kill()
		<-c.done
	}
}

func (c *Capture) markStopped() {
	c.mu.Lock()
	c.stopped = true
	c.stoppedAt = time.Now()
	c.mu.Unlock()
}

func (c *Capture) exitError(err error, stopSignalSent bool) error {
	if err == nil {
		return nil
	}

	if stopSignalSent {
		c.logger.Debug("recording process exited after stop signal", zap.Error(err))
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				c.logger.Debug("recording process stopped by signal", zap.String("signal", status.Signal().String()))
				return nil
			}
		}
	}

	return fmt.Errorf("%w%s", err, c.diagnostics())
}

// diagnostics must only be called after the process has exited.
func (c *Capture) diagnostics() string {
	msg := strings.TrimSpace(c.stderr.String())
	if msg == "" {
		return ""
	}
	return " (" + msg + ")"
}
