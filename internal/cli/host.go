package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DonMrMango/transcriptor/internal/clipboard"
	"github.com/DonMrMango/transcriptor/internal/ipc"
	"github.com/DonMrMango/transcriptor/internal/logging"
	"github.com/DonMrMango/transcriptor/internal/pdf"
	"github.com/DonMrMango/transcriptor/internal/session"
	"github.com/DonMrMango/transcriptor/internal/update"
	"github.com/DonMrMango/transcriptor/internal/youtube"
)

func newHostCmd(app *appState) *cobra.Command {
	var (
		logFile       string
		noUpdateCheck bool
	)

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Serve the desktop UI bridge over stdin/stdout",
		Long: "Serve newline-delimited JSON requests on stdin and write responses and events to\n" +
			"stdout. Logs go to stderr and to --log-file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.dirs.Ensure(); err != nil {
				return err
			}
			if logFile == "" {
				logFile = app.dirs.LogPath()
			}
			if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
				return fmt.Errorf("create log directory: %w", err)
			}
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs, File: logFile})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			defer func() { _ = logger.Sync() }()

			history, err := app.openHistory()
			if err != nil {
				return err
			}
			defer history.Close()

			copyFn := app.copyFn
			if copyFn == nil {
				copyFn = clipboard.CopyText
			}

			checker := update.NewChecker(app.settings.UpdateRepository, logger)
			server := ipc.NewServer(logger)
			host := ipc.NewHost(ipc.HostOptions{
				ConfigPath:     app.dirs.ConfigPath(),
				Settings:       app.settings,
				History:        history,
				PDF:            pdf.New(logger),
				YouTube:        youtube.NewDownloader(logger),
				Updates:        checker,
				NewTranscriber: app.newTranscriber,
				Copy:           copyFn,
				Logger:         logger,
			})

			ctrl := session.NewController(session.Options{
				Recorder:    app.recorderOrDefault(),
				Transcriber: host.Transcriber(),
				Store:       history,
				Dir:         app.dirs.Recordings,
				SilenceGate: app.silenceGate,
				SilenceDBFS: app.silenceDBFS,
				KeepAudio:   app.keepAudio,
				OnChange: func(from, to session.Screen) {
					server.Notify("screen-changed", map[string]any{"from": from, "to": to})
				},
				Logger: logger,
			})
			defer func() {
				if err := ctrl.Close(); err != nil {
					logger.Warn("failed to release microphone", zap.Error(err))
				}
			}()
			host.AttachSession(ctrl)
			host.Register(server)

			ctx := cmd.Context()
			if !noUpdateCheck {
				go checker.Run(ctx, update.InitialDelay, update.Interval, func(status update.Status) {
					server.Notify("update-available", map[string]any{
						"current": status.Current,
						"latest":  status.Latest,
						"url":     status.URL,
						"notes":   status.Notes,
					})
				})
			}

			logger.Info("host ready", zap.Strings("channels", server.Channels()))
			return server.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "Extra log destination (defaults to logs/transcriptor.log in the data directory)")
	cmd.Flags().BoolVar(&noUpdateCheck, "no-update-check", false, "Disable the background update check")
	return cmd
}
