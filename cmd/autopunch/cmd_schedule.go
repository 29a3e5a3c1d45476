/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/autopunch/internal/alarm"
	"github.com/friendsincode/autopunch/internal/models"
	"github.com/friendsincode/autopunch/internal/settings"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show when each alarm would fire with the current settings",
	Long: `Print the instants the daemon would arm for the current settings file.
Punch times are drawn at random inside their windows, so every run shows a
different sample.`,
	RunE: runNext,
}

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable scheduled punching in the settings file",
	RunE:  func(cmd *cobra.Command, args []string) error { return runSetEnabled(cmd, true) },
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable scheduled punching in the settings file",
	RunE:  func(cmd *cobra.Command, args []string) error { return runSetEnabled(cmd, false) },
}

func init() {
	rootCmd.AddCommand(nextCmd, enableCmd, disableCmd)
}

func runNext(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	schedule, err := settings.NewFileStore(cfg.SettingsFile).GetScheduleConfig()
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	scheduler := alarm.NewScheduler(nil, clockwork.NewRealClock(), loc, zerolog.Nop())
	printPlan(cmd.OutOrStdout(), schedule, scheduler.Plan(schedule))
	return nil
}

func printPlan(out io.Writer, schedule models.ScheduleConfig, plan []alarm.Armed) {
	state := "enabled"
	if !schedule.Enabled {
		state = "disabled (nothing is armed until you run 'autopunch enable')"
	}
	fmt.Fprintf(out, "target: %s (%s)\nschedule: %s\n\n", schedule.TargetApp.DisplayName(), schedule.TargetApp.PackageID, state)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ALARM\tAT\tDAY\tACTION")
	for _, a := range plan {
		action := "punch"
		if _, isClose := a.Class.CloseIndex(); isClose {
			action = "close"
		}
		if !schedule.RunsOn(a.At) {
			action += " (skipped, day not selected)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Class, a.At.Format("2006-01-02 15:04 MST"), a.At.Weekday(), action)
	}
	_ = tw.Flush()
}

func runSetEnabled(cmd *cobra.Command, enabled bool) error {
	if err := loadConfig(); err != nil {
		return err
	}
	store := settings.NewFileStore(cfg.SettingsFile)
	if _, err := store.SetEnabled(enabled); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	word := "disabled"
	if enabled {
		word = "enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "scheduled punching %s in %s\n", word, store.Path())
	fmt.Fprintln(cmd.OutOrStdout(), "send SIGHUP to a running 'autopunch serve' to apply")
	return nil
}
