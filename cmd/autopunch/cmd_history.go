/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/autopunch/internal/db"
	"github.com/friendsincode/autopunch/internal/models"
	"github.com/friendsincode/autopunch/internal/version"
)

var (
	historyLimit int
	historyDays  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent punch results",
	RunE:  runHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of results to show")
	historyCmd.Flags().IntVar(&historyDays, "summary-days", 7, "Summarize results from the last N days (0 to skip)")
	rootCmd.AddCommand(historyCmd, versionCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	database, recorder, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(database) }()

	records, err := recorder.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printRecords(out, records)

	if historyDays > 0 {
		since := time.Now().AddDate(0, 0, -historyDays)
		summary, err := recorder.Summarize(cmd.Context(), since)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nlast %d days: %d sessions, %d succeeded, %d failed\n", historyDays, summary.Total, summary.Succeeded, summary.Failed)
		if summary.LastSuccess != nil {
			fmt.Fprintf(out, "last success: %s\n", summary.LastSuccess.RecordedAt.Local().Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

func printRecords(out io.Writer, records []models.PunchRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "no punch results recorded yet")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tRESULT\tMESSAGE\tPACKAGE\tDURATION")
	for _, r := range records {
		result := "ok"
		if !r.Success {
			result = "FAILED"
		}
		dur := "-"
		if d := r.Duration(); d > 0 {
			dur = d.Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.RecordedAt.Local().Format("2006-01-02 15:04:05"), result, r.Message, r.PackageID, dur)
	}
	_ = tw.Flush()
}
