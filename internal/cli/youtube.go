package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DonMrMango/transcriptor/internal/youtube"
)

func newYouTubeCmd(app *appState) *cobra.Command {
	var copyToClipboard bool

	cmd := &cobra.Command{
		Use:   "youtube <url>",
		Short: "Download a video's audio with yt-dlp and transcribe it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := youtube.ValidateURL(args[0]); err != nil {
				return err
			}

			dir, err := os.MkdirTemp("", "transcriptor-youtube-*")
			if err != nil {
				return fmt.Errorf("create download directory: %w", err)
			}
			defer os.RemoveAll(dir)

			stopSpinner := startSpinner(app.progressEnabled(), "Downloading audio")
			path, err := app.youtubeDownload(cmd.Context(), args[0], dir)
			stopSpinner()
			if err != nil {
				return err
			}
			app.log().Info("audio downloaded", zap.String("path", path))

			return app.transcribeAndReport(cmd.Context(), cmd.OutOrStdout(), path, copyToClipboard)
		},
	}

	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "Copy transcript to clipboard")
	return cmd
}
