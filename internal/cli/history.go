package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DonMrMango/transcriptor/internal/store"
)

func newHistoryCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, search and edit saved transcriptions",
	}

	cmd.AddCommand(newHistoryListCmd(app))
	cmd.AddCommand(newHistorySearchCmd(app))
	cmd.AddCommand(newHistoryShowCmd(app))
	cmd.AddCommand(newHistoryEditCmd(app))
	return cmd
}

func newHistoryListCmd(app *appState) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent transcriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := app.openHistory()
			if err != nil {
				return err
			}
			defer history.Close()

			items, err := history.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printSummaries(cmd.OutOrStdout(), items, "No transcriptions yet.")
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", store.DefaultListLimit, "Maximum number of entries")
	return cmd
}

func newHistorySearchCmd(app *appState) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find transcriptions containing text (case-insensitive)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := app.openHistory()
			if err != nil {
				return err
			}
			defer history.Close()

			query := strings.Join(args, " ")
			items, err := history.Search(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			printSummaries(cmd.OutOrStdout(), items, fmt.Sprintf("No transcriptions match %q.", query))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", store.DefaultListLimit, "Maximum number of entries")
	return cmd
}

func newHistoryShowCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print the full text of a transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			history, err := app.openHistory()
			if err != nil {
				return err
			}
			defer history.Close()

			item, err := history.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), item.Text)
			return nil
		},
	}
}

func newHistoryEditCmd(app *appState) *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace the text of a transcription",
		Long:  "Replace the text of a transcription. Without --text the new text is read from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("text") {
				text, err = readAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("new text must not be empty")
			}

			history, err := app.openHistory()
			if err != nil {
				return err
			}
			defer history.Close()

			updated, err := history.UpdateText(cmd.Context(), id, text)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summaryLine(updated))
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "New transcription text")
	return cmd
}

func printSummaries(out io.Writer, items []store.Transcription, empty string) {
	if len(items) == 0 {
		fmt.Fprintln(out, empty)
		return
	}
	for _, item := range items {
		fmt.Fprintln(out, summaryLine(item))
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid transcription id %q", raw)
	}
	return id, nil
}

func readAll(in io.Reader) (string, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
