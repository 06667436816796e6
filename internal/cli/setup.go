package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DonMrMango/transcriptor/internal/config"
	"github.com/DonMrMango/transcriptor/internal/stt"
)

func newSetupCmd(app *appState) *cobra.Command {
	var (
		apiKey       string
		skipValidate bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Store and verify the transcription API key",
		Long: "Store the transcription API key in the settings file. Without --api-key the key is\n" +
			"read from stdin. The key is checked against the API unless --skip-validate is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("api-key") {
				fmt.Fprint(cmd.ErrOrStderr(), "API key: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read api key: %w", err)
				}
				apiKey = line
			}
			apiKey = strings.TrimSpace(apiKey)
			if apiKey == "" {
				return errors.New("api key must not be empty")
			}

			if !skipValidate {
				ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
				defer cancel()

				stop := startSpinner(app.progressEnabled(), "Checking API key")
				err := app.validateKey(ctx, apiKey)
				stop()
				if err != nil {
					return fmt.Errorf("api key rejected: %w", err)
				}
			}

			path := app.dirs.ConfigPath()
			if err := config.SaveAPIKey(path, apiKey); err != nil {
				return err
			}

			app.log().Info("api key saved", zap.String("path", path))
			fmt.Fprintf(cmd.OutOrStdout(), "API key %s saved to %s\n", config.MaskedAPIKey(apiKey), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for the transcription service")
	cmd.Flags().BoolVar(&skipValidate, "skip-validate", false, "Save the key without checking it")
	return cmd
}

func (a *appState) validateKey(ctx context.Context, apiKey string) error {
	if a.validateKeyFn != nil {
		return a.validateKeyFn(ctx, apiKey)
	}

	client, err := stt.NewClient(stt.Options{APIKey: apiKey, BaseURL: a.settings.BaseURL, Logger: a.log()})
	if err != nil {
		return err
	}
	return client.ValidateKey(ctx)
}
