package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/labdigest/internal/store"
	"github.com/spf13/cobra"
)

func newResetCmd(c *cli) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every artifact, sheet, digest record and report cell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), store.ResetTimeout)
			defer cancel()

			if err := c.app.Store.Reset(ctx); err != nil {
				return fmt.Errorf("reset store: %w", err)
			}
			slog.Warn("store reset", "backend", c.cfg.Store.Backend)
			fmt.Fprintln(cmd.OutOrStdout(), "Store reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting all data")
	return cmd
}
