package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(c *cli) *cobra.Command {
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Usage statistics reports",
	}
	stats.AddCommand(&cobra.Command{
		Use:   "insert REPORT_ID",
		Short: "Copy every uninserted stats report into a financial report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := c.app.Inserter.InsertAll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stats reports to insert")
				return nil
			}
			c.print(cmd, renderInserts(c.mode, results))
			return nil
		},
	})
	return stats
}

func newReportCmd(c *cli) *cobra.Command {
	report := &cobra.Command{
		Use:   "report",
		Short: "Financial reports",
	}

	var year int
	initCmd := &cobra.Command{
		Use:   "init REPORT_ID",
		Short: "Write the month headers for the fiscal year starting in October of --year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.InitializeReport(cmd.Context(), args[0], year); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s for %d-%d\n", args[0], year, year+1)
			return nil
		},
	}
	initCmd.Flags().IntVar(&year, "year", 0, "Calendar year the fiscal year starts in (required)")
	_ = initCmd.MarkFlagRequired("year")

	report.AddCommand(initCmd)
	return report
}
