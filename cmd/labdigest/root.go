package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/JonMunkholm/labdigest/internal/app"
	"github.com/JonMunkholm/labdigest/internal/config"
	"github.com/JonMunkholm/labdigest/internal/format"
	"github.com/JonMunkholm/labdigest/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// cli is the state shared by every subcommand of one invocation.
type cli struct {
	cfg  *config.Config
	app  *app.App
	mode format.Mode
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	var formatFlag string

	root := &cobra.Command{
		Use:   "labdigest",
		Short: "Digest lab-access exports and fill the financial report",
		Long: "labdigest ingests lab-access exports and usage reports, normalizes\n" +
			"and enriches the exports into digests, and copies usage statistics\n" +
			"into the financial report.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.mode = format.ParseMode(formatFlag)
			return c.open(cmd.Context(), cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.close(context.Background())
		},
	}
	root.PersistentFlags().StringVar(&formatFlag, "format", "ascii", "Table format: ascii or markdown")

	root.AddCommand(
		newIngestCmd(c),
		newSanitizeCmd(c),
		newDigestCmd(c),
		newStatusCmd(c),
		newQuarantineCmd(c),
		newFixCmd(c),
		newExportCmd(c),
		newStatsCmd(c),
		newReportCmd(c),
		newResetCmd(c),
	)
	return root
}

// open loads .env and the configuration, sets up logging on stderr and
// opens the store.
func (c *cli) open(ctx context.Context, logOut io.Writer) error {
	envErr := godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.SetupWriter(logOut, cfg.Logging.Level, cfg.Logging.Format)
	if envErr == nil {
		slog.Debug("loaded .env file")
	}

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	c.cfg, c.app = cfg, a
	return nil
}

func (c *cli) close(ctx context.Context) error {
	if c.app == nil {
		return nil
	}
	if err := c.app.Service.WaitForRuns(ctx); err != nil {
		slog.Warn("closing with a run in progress", "error", err)
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func (c *cli) print(cmd *cobra.Command, s string) {
	fmt.Fprint(cmd.OutOrStdout(), s)
	if len(s) > 0 && s[len(s)-1] != '\n' {
		fmt.Fprintln(cmd.OutOrStdout())
	}
}
