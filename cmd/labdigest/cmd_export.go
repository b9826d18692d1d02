package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newExportCmd(c *cli) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Digest pending exports and write every digest as a bill-code file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, report, err := c.app.Service.ExportBillCodes(cmd.Context())
			if err != nil {
				return err
			}
			if len(report.Results) > 0 {
				c.print(cmd, renderRun(c.mode, report))
			}

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create export dir: %w", err)
			}
			for _, f := range files {
				path := filepath.Join(dir, f.Name)
				if err := os.WriteFile(path, f.Content, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No digests to export")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "exports", "Directory to write bill-code files into")
	return cmd
}
