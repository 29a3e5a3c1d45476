/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/autopunch/internal/config"
	"github.com/friendsincode/autopunch/internal/logbuffer"
	"github.com/friendsincode/autopunch/internal/logging"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "autopunch",
	Short:         "Autopunch - scheduled attendance punching on an Android device",
	Long:          "Autopunch drives an attendance app on an adb-connected Android device: it punches in and out at jittered times inside configured windows and clears the app afterwards.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it).
func loadConfig() error {
	return loadConfigWithLogs(nil)
}

// loadConfigWithLogs also captures log lines into buf when it is non-nil.
func loadConfigWithLogs(buf *logbuffer.Buffer) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if buf != nil {
		logger = logging.SetupWithWriter(cfg.Environment, logbuffer.NewWriter(buf, nil))
	} else {
		logger = logging.Setup(cfg.Environment)
	}
	return nil
}
