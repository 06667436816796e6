package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DonMrMango/transcriptor/internal/record"
)

func newDevicesCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List recording devices and backend diagnostics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			backends := record.DefaultBackends(runtime.GOOS)
			if len(backends) == 0 {
				return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
			}

			out := cmd.OutOrStdout()
			selected, selectErr := record.SelectBackend(backends, app.backend)
			for _, backend := range backends {
				marker := ""
				if selectErr == nil && backend.Name() == selected.Name() {
					marker = " (selected)"
				}
				fmt.Fprintf(out, "== %s%s ==\n", backend.Name(), marker)

				if !backend.Available() {
					fmt.Fprintln(out, "not available on PATH")
					fmt.Fprintln(out)
					continue
				}

				listing, err := backend.ListDevices(cmd.Context())
				switch {
				case err != nil:
					fmt.Fprintf(out, "failed to list devices: %v\n", err)
				case listing == "":
					fmt.Fprintln(out, "no output")
				default:
					fmt.Fprintln(out, listing)
				}
				fmt.Fprintln(out)
			}

			if selectErr != nil {
				app.log().Warn("no usable recording backend", zap.Error(selectErr))
			}
			return nil
		},
	}
}
