package main

import (
	"github.com/JonMunkholm/labdigest/internal/core"
	"github.com/spf13/cobra"
)

func newStatusCmd(c *cli) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List artifacts and their processing state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var k core.ArtifactKind
			if kind != "" {
				parsed, err := core.ParseArtifactKind(kind)
				if err != nil {
					return err
				}
				k = parsed
			}

			artifacts, err := c.app.Service.ListArtifacts(cmd.Context(), k)
			if err != nil {
				return err
			}
			c.print(cmd, renderArtifacts(c.mode, artifacts))
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only list artifacts of this kind")
	return cmd
}
