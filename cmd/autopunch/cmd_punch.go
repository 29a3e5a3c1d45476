/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/friendsincode/autopunch/internal/automation"
	"github.com/friendsincode/autopunch/internal/db"
	"github.com/friendsincode/autopunch/internal/models"
)

var (
	punchPackage  string
	punchNoRecord bool
	closePackage  string
)

var punchCmd = &cobra.Command{
	Use:   "punch",
	Short: "Punch once, right now",
	Long: `Run one punch session against the configured target app and wait for its
result. The exit status is non-zero when the session fails.

Examples:
  autopunch punch
  autopunch punch --package com.example.attendance`,
	RunE: runPunch,
}

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Background and clear the target app once",
	RunE:  runClose,
}

func init() {
	punchCmd.Flags().StringVar(&punchPackage, "package", "", "Punch in this package instead of the configured target")
	punchCmd.Flags().BoolVar(&punchNoRecord, "no-record", false, "Do not store the result in the history database")
	closeCmd.Flags().StringVar(&closePackage, "package", "", "Close this package instead of the configured target")
	rootCmd.AddCommand(punchCmd, closeCmd)
}

// resultWaiter hands the first session result to a channel.
type resultWaiter chan automation.Result

func (w resultWaiter) OnPunchResult(success bool, message string) {
	w.OnSessionResult(automation.Result{Success: success, Message: message})
}

func (w resultWaiter) OnSessionResult(r automation.Result) {
	select {
	case w <- r:
	default:
	}
}

func runPunch(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	stack := newDeviceStack(clockwork.NewRealClock())
	defer stack.stop()

	target, err := targetApp(stack, punchPackage)
	if err != nil {
		return err
	}

	done := make(resultWaiter, 1)
	stack.listen(done)
	if !punchNoRecord {
		database, recorder, err := openHistory()
		if err != nil {
			logger.Warn().Err(err).Msg("history unavailable, result will not be stored")
		} else {
			defer func() { _ = db.Close(database) }()
			stack.listen(recorder)
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go stack.watcher.Run(ctx)

	if err := stack.engine.Start(target); err != nil {
		return err
	}

	timing := automation.DefaultTiming()
	var res automation.Result
	select {
	case res = <-done:
	case <-time.After(timing.SessionTimeout + 10*time.Second):
		return errors.New("no result from punch session")
	case <-ctx.Done():
		return ctx.Err()
	}

	// Let the engine return to the home screen before exiting.
	waitCtx, waitCancel := context.WithTimeout(ctx, timing.HomeGrace+timing.PortTimeout)
	defer waitCancel()
	if err := waitUntil(waitCtx, 100*time.Millisecond, stack.engine.Idle); err != nil {
		logger.Warn().Err(err).Msg("gave up waiting for the home screen")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", target.DisplayName(), res.Message)
	if !res.Success {
		return fmt.Errorf("punch failed: %s", res.Message)
	}
	return nil
}

func runClose(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	stack := newDeviceStack(clockwork.NewRealClock())
	defer stack.stop()

	target, err := targetApp(stack, closePackage)
	if err != nil {
		return err
	}

	stack.closer.CloseApp(target.PackageID)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()
	if err := waitUntil(ctx, 100*time.Millisecond, func() bool { return !stack.closer.Pending() }); err != nil {
		return fmt.Errorf("close flow did not finish: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: closed\n", target.DisplayName())
	return nil
}

// targetApp is the override package when given, else the configured target.
func targetApp(stack *deviceStack, override string) (models.AppIdentity, error) {
	if override != "" {
		if !models.ValidPackageID(override) {
			return models.AppIdentity{}, fmt.Errorf("--package: %w: %q", models.ErrInvalidPackageID, override)
		}
		return models.CustomApp(override), nil
	}
	schedule, err := stack.store.GetScheduleConfig()
	if err != nil {
		return models.AppIdentity{}, fmt.Errorf("read settings: %w", err)
	}
	return schedule.TargetApp, nil
}
