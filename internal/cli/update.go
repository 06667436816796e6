package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DonMrMango/transcriptor/internal/update"
)

func newUpdateCmd(app *appState) *cobra.Command {
	var (
		downloadTo string
		apiBaseURL string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for a newer release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checker := update.NewChecker(app.settings.UpdateRepository, app.log())
			checker.NoProgress = !app.progressEnabled()
			if apiBaseURL != "" {
				checker.APIBaseURL = apiBaseURL
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			status, err := checker.Check(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !status.Available {
				fmt.Fprintf(out, "transcriptor v%s is up to date\n", status.Current)
				return nil
			}
			fmt.Fprintf(out, "transcriptor v%s is available (running v%s)\n", status.Latest, status.Current)
			if status.URL != "" {
				fmt.Fprintln(out, status.URL)
			}

			if downloadTo == "" {
				return nil
			}
			path, err := checker.Download(cmd.Context(), status, downloadTo)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "downloaded %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&downloadTo, "download", "", "Download the release archive for this platform into a directory")
	cmd.Flags().StringVar(&apiBaseURL, "api-url", "", "GitHub API base URL")
	_ = cmd.Flags().MarkHidden("api-url")
	return cmd
}
