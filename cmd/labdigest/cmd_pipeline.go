package main

import (
	"github.com/spf13/cobra"
)

func newSanitizeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sanitize",
		Short: "Write the sanitized snapshot of every pending export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := c.app.Service.SanitizeAll(cmd.Context())
			if err != nil {
				return err
			}
			c.print(cmd, renderRun(c.mode, report))
			return nil
		},
	}
}

func newDigestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Normalize, enrich and commit every pending export",
		Long: "Digest every raw export that has not been digested yet. Rows whose\n" +
			"names cannot be normalized are quarantined; correct them with fix\n" +
			"and run digest again.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := c.app.Service.DigestAll(cmd.Context())
			if err != nil {
				return err
			}
			c.print(cmd, renderRun(c.mode, report))
			return nil
		},
	}
}
