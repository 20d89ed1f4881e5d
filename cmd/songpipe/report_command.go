package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/integrity"
)

var errCriticalAnomalies = errors.New("integrity report has critical anomalies")

func newReportCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON bool
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the integrity report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.store()
			if err != nil {
				return err
			}
			report, err := integrity.NewChecker(db, constants.TranslationQuorum).Check(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				err = integrity.RenderJSON(cmd.OutOrStdout(), report)
			} else {
				err = integrity.Render(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			if strict && report.Critical() {
				return errCriticalAnomalies
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Write the report as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when a critical anomaly is found")
	return cmd
}
