/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package device drives an Android device over adb. Client satisfies the
// automation ports: tree snapshots, gestures, app launching and screen wake.
package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/friendsincode/autopunch/internal/models"
	"github.com/friendsincode/autopunch/internal/uitree"
	"github.com/rs/zerolog"
)

const (
	dumpFile    = "/data/local/tmp/autopunch-view.xml"
	dumpRetries = 3

	keyHome    = 3
	keyRecents = 187
)

var (
	// ErrPackageNotFound means the package is not installed on the device.
	ErrPackageNotFound = errors.New("package not installed")

	// ErrNoLauncherActivity means the package has no launchable activity.
	ErrNoLauncherActivity = errors.New("no launcher activity")

	// ErrEmptyBounds means a node cannot be clicked because it has no area.
	ErrEmptyBounds = errors.New("node has empty bounds")
)

// Runner executes an adb command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// Config selects the adb binary and device.
type Config struct {
	ADBPath string
	Serial  string
}

type execRunner struct {
	adbPath string
	serial  string
}

func (r execRunner) Run(ctx context.Context, args ...string) (string, error) {
	full := make([]string, 0, len(args)+2)
	if r.serial != "" {
		full = append(full, "-s", r.serial)
	}
	full = append(full, args...)

	cmd := exec.CommandContext(ctx, r.adbPath, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return stdout.String(), fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, msg)
	}
	return stdout.String(), nil
}

// Client talks to one device.
type Client struct {
	runner Runner
	logger zerolog.Logger
}

// New creates a client that shells out to adb.
func New(cfg Config, logger zerolog.Logger) *Client {
	path := cfg.ADBPath
	if path == "" {
		path = "adb"
	}
	return NewWithRunner(execRunner{adbPath: path, serial: cfg.Serial}, logger)
}

// NewWithRunner creates a client over an arbitrary runner.
func NewWithRunner(r Runner, logger zerolog.Logger) *Client {
	return &Client{
		runner: r,
		logger: logger.With().Str("component", "adb").Logger(),
	}
}

func (c *Client) shell(ctx context.Context, command string) (string, error) {
	return c.runner.Run(ctx, "shell", command)
}

// Snapshot dumps and parses the current UI hierarchy. uiautomator is flaky,
// so the dump is retried a few times.
func (c *Client) Snapshot(ctx context.Context) (*uitree.Tree, error) {
	var lastErr error
	for attempt := 0; attempt < dumpRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			_, _ = c.shell(ctx, "pkill uiautomator")
		}

		out, err := c.shell(ctx, fmt.Sprintf("uiautomator dump %s && cat %s", dumpFile, dumpFile))
		if err != nil {
			lastErr = err
			c.logger.Debug().Err(err).Int("attempt", attempt+1).Msg("ui dump failed")
			continue
		}
		tree, err := uitree.ParseUIAutomator(out)
		if err != nil {
			lastErr = err
			c.logger.Debug().Err(err).Int("attempt", attempt+1).Msg("ui dump unparsable")
			continue
		}
		return tree, nil
	}
	return nil, fmt.Errorf("dump ui after %d attempts: %w", dumpRetries, lastErr)
}

// Tap taps at (x, y).
func (c *Client) Tap(ctx context.Context, x, y int) error {
	_, err := c.shell(ctx, fmt.Sprintf("input tap %d %d", x, y))
	return err
}

// Swipe drags from (x1, y1) to (x2, y2). adb returns when the gesture ends.
func (c *Client) Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error {
	_, err := c.shell(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, duration.Milliseconds()))
	return err
}

// PerformClick taps the center of n. adb has no accessibility click action.
func (c *Client) PerformClick(ctx context.Context, n *uitree.Node) error {
	if n.Bounds.Empty() {
		return ErrEmptyBounds
	}
	x, y := n.Bounds.Center()
	return c.Tap(ctx, x, y)
}

// Launch starts the launcher activity of packageID.
func (c *Client) Launch(ctx context.Context, packageID string) error {
	if !models.ValidPackageID(packageID) {
		return fmt.Errorf("%w: %w %q", ErrPackageNotFound, models.ErrInvalidPackageID, packageID)
	}
	out, err := c.shell(ctx, "pm path "+packageID)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", packageID, err)
	}
	if !strings.Contains(out, "package:") {
		return fmt.Errorf("%w: %s", ErrPackageNotFound, packageID)
	}

	out, err = c.shell(ctx, fmt.Sprintf("monkey -p %s -c android.intent.category.LAUNCHER 1", packageID))
	if err != nil {
		return fmt.Errorf("launch %s: %w", packageID, err)
	}
	if strings.Contains(out, "No activities found") {
		return fmt.Errorf("%w: %s", ErrNoLauncherActivity, packageID)
	}
	c.logger.Debug().Str("package", packageID).Msg("launched")
	return nil
}

// GoHome presses the home key.
func (c *Client) GoHome(ctx context.Context) error {
	return c.keyevent(ctx, keyHome)
}

// OpenRecents presses the app switch key.
func (c *Client) OpenRecents(ctx context.Context) error {
	return c.keyevent(ctx, keyRecents)
}

func (c *Client) keyevent(ctx context.Context, code int) error {
	_, err := c.shell(ctx, fmt.Sprintf("input keyevent %d", code))
	return err
}

// Wake turns the screen on and dismisses a non-secure keyguard. The device
// keeps its own screen timeout; duration is only logged.
func (c *Client) Wake(ctx context.Context, duration time.Duration) error {
	if _, err := c.shell(ctx, "input keyevent KEYCODE_WAKEUP"); err != nil {
		return fmt.Errorf("wake screen: %w", err)
	}
	if _, err := c.shell(ctx, "wm dismiss-keyguard"); err != nil {
		return fmt.Errorf("dismiss keyguard: %w", err)
	}
	c.logger.Debug().Dur("duration", duration).Msg("screen woken")
	return nil
}

var focusPattern = regexp.MustCompile(`mCurrentFocus=Window\{\S+ \S+ ([^/\s}]+)(?:/([^\s}]+))?\}`)

// Focus identifies the focused window.
type Focus struct {
	Package string
	Window  string
}

// FocusedWindow reports the package and window that currently have focus.
func (c *Client) FocusedWindow(ctx context.Context) (Focus, error) {
	out, err := c.shell(ctx, "dumpsys window | grep mCurrentFocus")
	if err != nil {
		return Focus{}, fmt.Errorf("query focus: %w", err)
	}
	return parseFocus(out)
}

func parseFocus(out string) (Focus, error) {
	m := focusPattern.FindStringSubmatch(out)
	if m == nil {
		return Focus{}, fmt.Errorf("no focused window in %q", strings.TrimSpace(out))
	}
	return Focus{Package: m[1], Window: m[2]}, nil
}
