package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/DonMrMango/transcriptor/internal/audio"
	"github.com/DonMrMango/transcriptor/internal/clipboard"
	"github.com/DonMrMango/transcriptor/internal/config"
	"github.com/DonMrMango/transcriptor/internal/logging"
	"github.com/DonMrMango/transcriptor/internal/platform"
	"github.com/DonMrMango/transcriptor/internal/record"
	"github.com/DonMrMango/transcriptor/internal/session"
	"github.com/DonMrMango/transcriptor/internal/store"
	"github.com/DonMrMango/transcriptor/internal/stt"
	"github.com/DonMrMango/transcriptor/internal/version"
	"github.com/DonMrMango/transcriptor/internal/youtube"
)

type appState struct {
	verbose     bool
	jsonLogs    bool
	noProgress  bool
	dataDir     string
	backend     string
	input       string
	inputFormat string
	language    string
	model       string
	silenceGate bool
	silenceDBFS float64
	duration    time.Duration
	immediate   bool
	keepAudio   bool
	noSave      bool
	noCopy      bool

	settings config.Settings
	dirs     platform.Dirs
	logger   *zap.Logger

	recorder         session.Recorder
	waitFn           func(ctx context.Context, duration time.Duration) error
	newTranscriberFn func(apiKey string) (session.Transcriber, error)
	youtubeFn        func(ctx context.Context, url, dir string) (string, error)
	copyFn           func(ctx context.Context, value string) error
	validateKeyFn    func(ctx context.Context, apiKey string) error
}

func NewRootCmd() *cobra.Command {
	app := &appState{
		silenceGate: true,
		silenceDBFS: audio.DefaultSilenceThresholdDBFS,
		settings:    config.Defaults(),
	}

	cmd := &cobra.Command{
		Use:           "transcriptor",
		Short:         "Record, transcribe and search speech, and edit PDF files",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runDefault(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindGlobalFlags(cmd, app)
	bindRecordingFlags(cmd, app)
	bindTranscriptionFlags(cmd, app)
	cmd.Flags().DurationVar(&app.duration, "duration", 0, "Record duration, e.g. 10s; 0 means interactive start/stop")
	cmd.Flags().BoolVar(&app.immediate, "immediate", false, "Start recording immediately without waiting for Enter")
	cmd.Flags().BoolVar(&app.noCopy, "no-copy", false, "Do not copy the transcript to the clipboard")

	cmd.AddCommand(newRecordCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newYouTubeCmd(app))
	cmd.AddCommand(newHistoryCmd(app))
	cmd.AddCommand(newPDFCmd(app))
	cmd.AddCommand(newDevicesCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newHostCmd(app))
	cmd.AddCommand(newUpdateCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindGlobalFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.BoolVar(&app.verbose, "verbose", false, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json", false, "Enable JSON logging")
	flags.BoolVar(&app.noProgress, "no-progress", false, "Disable progress indicators")
	flags.StringVar(&app.dataDir, "data-dir", "", "Directory for the history database, settings and recordings")
}

func bindRecordingFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.backend, "backend", "", "Recording backend: auto|pw-record|arecord|ffmpeg")
	flags.StringVar(&app.input, "input", "", "Input device (run \"transcriptor devices\" to list); e.g. node-ID (pw-record), hw:1,0 (arecord), :1 (ffmpeg)")
	flags.StringVar(&app.inputFormat, "input-format", "", "Input format for ffmpeg backend (pulse|alsa)")
	flags.BoolVar(&app.silenceGate, "silence-gate", app.silenceGate, "Detect near-silent recordings and skip transcription")
	flags.Float64Var(&app.silenceDBFS, "silence-threshold-dbfs", app.silenceDBFS, "Silence gate threshold in dBFS")
	flags.BoolVar(&app.keepAudio, "keep-audio", false, "Keep the recorded WAV file after transcription")
}

func bindTranscriptionFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.language, "language", "", "Language code for transcription (es|en|...; auto to detect)")
	flags.StringVar(&app.model, "model", "", "Transcription model name")
	flags.BoolVar(&app.noSave, "no-save", false, "Do not store transcripts in the history")
}

// prepare resolves directories, settings and the logger. Flags win over the
// settings file.
func (a *appState) prepare(cmd *cobra.Command) error {
	logger, err := logging.New(logging.Options{Verbose: a.verbose, JSON: a.jsonLogs})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger

	dirs, err := platform.ResolveDirs(a.dataDir)
	if err != nil {
		return err
	}
	a.dirs = dirs

	if path, err := config.LoadEnv(); err != nil {
		a.log().Warn("ignoring env file", zap.Error(err))
	} else if path != "" {
		a.log().Debug("loaded env file", zap.String("path", path))
	}

	settings, err := config.Load(dirs.ConfigPath())
	if err != nil {
		return err
	}
	a.settings = settings

	a.backend = lo.CoalesceOrEmpty(a.backend, settings.Backend, "auto")
	a.input = lo.CoalesceOrEmpty(a.input, settings.Input)
	a.language = lo.CoalesceOrEmpty(a.language, settings.Language)
	a.model = lo.CoalesceOrEmpty(a.model, settings.Model)
	return nil
}

// runDefault records until Enter (or --duration), transcribes, saves and
// copies the transcript.
func (a *appState) runDefault(ctx context.Context, out io.Writer) error {
	transcriber, err := a.transcriber()
	if err != nil {
		return err
	}

	history, closeHistory, err := a.historyForSaving()
	if err != nil {
		return err
	}
	defer closeHistory()

	recordingDir, err := a.recordingDir()
	if err != nil {
		return err
	}

	ctrl := session.NewController(session.Options{
		Recorder:    a.recorderOrDefault(),
		Transcriber: transcriber,
		Store:       history,
		Dir:         recordingDir,
		SilenceGate: a.silenceGate,
		SilenceDBFS: a.silenceDBFS,
		KeepAudio:   a.keepAudio,
		Logger:      a.log(),
	})
	defer func() {
		if err := ctrl.Close(); err != nil {
			a.log().Warn("failed to release microphone", zap.Error(err))
		}
	}()

	interactive := a.duration <= 0
	if interactive && !a.immediate && a.waitFn == nil {
		if err := record.WaitForEnter(os.Stdin, os.Stderr, "Press Enter to start recording."); err != nil {
			return err
		}
	}

	if err := ctrl.StartRecording(ctx); err != nil {
		return err
	}
	a.log().Info("recording started", zap.String("backend", a.backend))

	stopProgress := a.recordingProgress()
	err = a.waitOrDefault()(ctx, a.duration)
	stopProgress()
	if err != nil {
		if cancelErr := ctrl.CancelRecording(); cancelErr != nil {
			a.log().Warn("failed to cancel recording", zap.Error(cancelErr))
		}
		return err
	}

	stopSpinner := startSpinner(a.progressEnabled(), "Transcribing")
	saved, err := ctrl.StopRecording(ctx)
	stopSpinner()
	if errors.Is(err, session.ErrSilentRecording) || errors.Is(err, session.ErrEmptyTranscript) {
		a.log().Warn(noSpeechHint(), zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, saved.Text)
	if !a.noSave {
		a.log().Info("transcript saved", zap.Int64("id", saved.ID))
	}
	if !a.noCopy {
		a.copyTranscript(ctx, saved.Text)
	}
	return nil
}

func (a *appState) recordingProgress() stopFunc {
	if a.duration > 0 {
		return startDurationProgress(a.progressEnabled(), "Recording", a.duration)
	}
	return startSpinner(a.progressEnabled(), "Recording (press Enter to stop)")
}

// copyTranscript never fails the command; the transcript is already on stdout.
func (a *appState) copyTranscript(ctx context.Context, text string) {
	copyFn := a.copyFn
	if copyFn == nil {
		copyFn = clipboard.CopyText
	}

	if err := copyFn(ctx, text); err != nil {
		if errors.Is(err, clipboard.ErrUnavailable) {
			a.log().Warn("clipboard tool unavailable; transcript left on stdout")
			return
		}
		a.log().Warn("failed to copy transcript to clipboard; transcript left on stdout", zap.Error(err))
		return
	}
	a.log().Info("transcript copied to clipboard")
}

func (a *appState) transcriber() (session.Transcriber, error) {
	apiKey := a.settings.ResolveAPIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("%w; run `transcriptor setup` or set %s", stt.ErrMissingAPIKey, config.APIKeyEnvVars[0])
	}
	return a.newTranscriber(apiKey)
}

func (a *appState) newTranscriber(apiKey string) (session.Transcriber, error) {
	if a.newTranscriberFn != nil {
		return a.newTranscriberFn(apiKey)
	}
	return stt.NewClient(stt.Options{
		APIKey:   apiKey,
		BaseURL:  a.settings.BaseURL,
		Model:    a.model,
		Language: a.language,
		Logger:   a.log(),
	})
}

func (a *appState) openHistory() (*store.Store, error) {
	dir := a.dirs.Data
	if dir == "" {
		return nil, errors.New("data directory is not resolved")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return store.Open(a.dirs.DatabasePath(), a.log())
}

// historyForSaving returns the store that receives new transcripts. With
// --no-save it is a stand-in that keeps nothing.
func (a *appState) historyForSaving() (session.Store, func(), error) {
	if a.noSave {
		return discardStore{}, func() {}, nil
	}

	history, err := a.openHistory()
	if err != nil {
		return nil, nil, err
	}
	return history, func() {
		if err := history.Close(); err != nil {
			a.log().Warn("failed to close history", zap.Error(err))
		}
	}, nil
}

type discardStore struct{}

func (discardStore) Save(_ context.Context, in store.NewTranscription) (store.Transcription, error) {
	return store.Transcription{
		Text:      in.Text,
		Timestamp: time.Now().UnixMilli(),
		Duration:  in.Duration,
		Language:  in.Language,
		Model:     in.Model,
	}, nil
}

func (a *appState) recordingDir() (string, error) {
	dir := a.dirs.Recordings
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create recording directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) youtubeDownload(ctx context.Context, url, dir string) (string, error) {
	if a.youtubeFn != nil {
		return a.youtubeFn(ctx, url, dir)
	}
	return youtube.NewDownloader(a.log()).Download(ctx, url, dir)
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
