package main

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/labdigest/internal/core"
	"github.com/spf13/cobra"
)

func newIngestCmd(c *cli) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Store exports or usage reports as artifacts",
		Long: "Store each file as an artifact. Raw exports (CSV or TSV) are parsed\n" +
			"into rows; stats reports and financial reports keep their text.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := core.ParseArtifactKind(kind)
			if err != nil {
				return err
			}

			var ingested []core.Artifact
			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				a, err := c.app.Service.Ingest(cmd.Context(), path, k, content)
				if err != nil {
					return err
				}
				ingested = append(ingested, a)
			}
			c.print(cmd, renderArtifacts(c.mode, ingested))
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(core.KindRaw), "Artifact kind: raw, stats-monthly, stats-cumulative or report")
	return cmd
}
