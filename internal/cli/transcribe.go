package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DonMrMango/transcriptor/internal/audio"
	"github.com/DonMrMango/transcriptor/internal/store"
	"github.com/DonMrMango/transcriptor/internal/stt"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var copyToClipboard bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.transcribeAndReport(cmd.Context(), cmd.OutOrStdout(), args[0], copyToClipboard)
		},
	}

	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "Copy transcript to clipboard")
	return cmd
}

// transcribeAndReport transcribes audioPath, prints the text, stores it in the
// history unless --no-save and optionally copies it.
func (a *appState) transcribeAndReport(ctx context.Context, out io.Writer, audioPath string, copyToClipboard bool) error {
	result, err := a.transcribeAudio(ctx, audioPath)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, result.Text)
	if isBlankTranscript(result.Text) {
		a.log().Warn(noSpeechHint())
		return nil
	}

	if !a.noSave {
		if err := a.saveResult(ctx, result); err != nil {
			return err
		}
	}

	if copyToClipboard {
		a.copyTranscript(ctx, result.Text)
	}
	return nil
}

func (a *appState) transcribeAudio(ctx context.Context, audioPath string) (stt.Result, error) {
	audioPath = filepath.Clean(audioPath)
	if _, err := os.Stat(audioPath); err != nil {
		return stt.Result{}, fmt.Errorf("audio file not found: %w", err)
	}

	var duration *float64
	if strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		info, err := audio.Inspect(audioPath)
		switch {
		case err != nil:
			a.log().Warn("could not inspect audio; continuing transcription", zap.String("audio", audioPath), zap.Error(err))
		case a.silenceGate && info.IsSilent(a.silenceDBFS):
			a.log().Info(
				"audio considered silent; skipping transcription",
				zap.String("audio", audioPath),
				zap.Float64("rms_dbfs", info.Metrics.RMSdBFS),
				zap.Float64("peak_dbfs", info.Metrics.PeakdBFS),
				zap.Float64("threshold_dbfs", a.silenceDBFS),
			)
			return stt.Result{}, nil
		default:
			duration = store.Seconds(info.Seconds())
		}
	}

	transcriber, err := a.transcriber()
	if err != nil {
		return stt.Result{}, err
	}

	a.log().Info("transcribing...", zap.String("audio", audioPath), zap.String("model", a.model), zap.String("language", a.language))
	stopSpinner := startSpinner(a.progressEnabled(), "Transcribing")
	started := time.Now()

	result, err := transcriber.Transcribe(ctx, stt.Request{AudioPath: audioPath})
	stopSpinner()
	if err != nil {
		a.log().Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return stt.Result{}, err
	}
	a.log().Info("transcription finished", zap.Duration("elapsed", time.Since(started)))

	if result.Duration == nil {
		result.Duration = duration
	}
	return result, nil
}

func (a *appState) saveResult(ctx context.Context, result stt.Result) error {
	history, err := a.openHistory()
	if err != nil {
		return err
	}
	defer history.Close()

	saved, err := history.Save(ctx, store.NewTranscription{
		Text:     result.Text,
		Duration: result.Duration,
		Language: result.Language,
		Model:    result.Model,
	})
	if err != nil {
		return err
	}
	a.log().Info("transcript saved", zap.Int64("id", saved.ID))
	return nil
}
