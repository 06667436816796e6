package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DonMrMango/transcriptor/internal/record"
	"github.com/DonMrMango/transcriptor/internal/session"
)

type recordOptions struct {
	duration time.Duration
	output   string
}

func newRecordCmd(app *appState) *cobra.Command {
	opts := &recordOptions{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record audio into a WAV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := app.recordAudio(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Record duration, e.g. 6s; 0 means interactive start/stop")
	cmd.Flags().StringVar(&opts.output, "output", "", "Output WAV file path")
	cmd.Flags().BoolVar(&app.immediate, "immediate", false, "Start recording immediately without waiting for Enter")

	return cmd
}

// recordAudio captures one recording without transcribing it.
func (a *appState) recordAudio(ctx context.Context, opts recordOptions) (string, error) {
	outPath, err := a.recordingOutputPath(opts.output)
	if err != nil {
		return "", err
	}

	interactive := opts.duration <= 0
	if interactive && !a.immediate && a.waitFn == nil {
		if err := record.WaitForEnter(os.Stdin, os.Stderr, "Press Enter to start recording."); err != nil {
			return "", err
		}
	}

	capture, err := a.recorderOrDefault().Start(ctx, outPath)
	if err != nil {
		return "", err
	}
	a.log().Info("recording started", zap.String("output", outPath))

	var stopProgress stopFunc
	if interactive {
		stopProgress = startSpinner(a.progressEnabled(), "Recording (press Enter to stop)")
	} else {
		stopProgress = startDurationProgress(a.progressEnabled(), "Recording", opts.duration)
	}
	waitErr := a.waitOrDefault()(ctx, opts.duration)
	stopProgress()

	if waitErr != nil {
		if err := capture.Cancel(); err != nil {
			a.log().Warn("failed to discard recording", zap.Error(err))
		}
		return "", waitErr
	}

	path, err := capture.Stop()
	if err != nil {
		return "", fmt.Errorf("record audio: %w", err)
	}

	a.log().Info("recording finished", zap.String("path", path), zap.Duration("elapsed", capture.Elapsed()))
	return path, nil
}

func (a *appState) recordingOutputPath(override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		if err := os.MkdirAll(filepath.Dir(override), 0o755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
		return override, nil
	}

	dir, err := a.recordingDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("recording-%s.wav", time.Now().Format("20060102-150405"))), nil
}

func (a *appState) recorderOrDefault() session.Recorder {
	if a.recorder != nil {
		return a.recorder
	}
	return session.RecorderFunc(a.startCapture)
}

func (a *appState) startCapture(ctx context.Context, outputPath string) (session.Capture, error) {
	capture, err := record.StartWithFallback(ctx, a.backend, record.Config{
		OutputPath: outputPath,
		SampleRate: 16000,
		Channels:   1,
		Input:      a.input,
		Format:     a.inputFormat,
		Logger:     a.log(),
	})
	if err != nil {
		return nil, err
	}
	a.log().Debug("capture started", zap.String("backend", capture.Backend()), zap.String("path", capture.Path()))
	return capture, nil
}

func (a *appState) waitOrDefault() func(ctx context.Context, duration time.Duration) error {
	if a.waitFn != nil {
		return a.waitFn
	}
	return waitForStop
}

// waitForStop returns after duration, or on Enter when duration is zero.
func waitForStop(ctx context.Context, duration time.Duration) error {
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}

	entered := make(chan error, 1)
	go func() {
		entered <- record.WaitForEnter(os.Stdin, os.Stderr, "")
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-entered:
		return err
	}
}
