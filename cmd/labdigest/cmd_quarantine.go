package main

import (
	"fmt"

	"github.com/JonMunkholm/labdigest/internal/core"
	"github.com/spf13/cobra"
)

func newQuarantineCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "quarantine ID",
		Short: "Show the rows held back from an export's digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.app.Store.GetArtifact(cmd.Context(), args[0]); err != nil {
				return err
			}
			records, err := c.app.Service.Quarantine(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No quarantined rows for %s\n", args[0])
				return nil
			}
			c.print(cmd, renderQuarantine(c.mode, records))
			return nil
		},
	}
}

var fixFlags struct {
	row   int
	field string
	value string
}

func newFixCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix ID",
		Short: "Correct a quarantined name in the sanitized snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			field := core.NameField(fixFlags.field)
			if err := c.app.Service.ApplyFix(cmd.Context(), args[0], fixFlags.row, field, fixFlags.value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Row %d %s set to %q; run digest to retry %s\n", fixFlags.row, field, fixFlags.value, args[0])
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&fixFlags.row, "row", 0, "Row number shown by quarantine (required)")
	f.StringVar(&fixFlags.field, "field", string(core.FieldFullName), "Field to correct: full_name or advisor")
	f.StringVar(&fixFlags.value, "value", "", "Corrected name (required)")

	_ = cmd.MarkFlagRequired("row")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}
