// internal/cli/check.go
package cli

import (
	"github.com/spf13/cobra"

	"librarydesk/internal/integrity"
)

func newCheckCommand(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the consistency of the stored library data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFn()
			report := integrity.Run(cmd.Context(), a.library.Snapshot(cmd.Context()))
			integrity.PrintReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}
