/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version reports build information.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version, Commit and BuildDate are set at build time via ldflags:
//
//	-X github.com/friendsincode/autopunch/internal/version.Version=X.Y.Z
var (
	Version   = "0.4.1"
	Commit    = ""
	BuildDate = ""
)

// Info is the build description served by the status API.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
}

// Get returns the build description. A missing commit falls back to the VCS
// revision recorded by the Go toolchain.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
	if info.Commit == "" {
		info.Commit = vcsRevision()
	}
	return info
}

// String renders the build description on one line.
func (i Info) String() string {
	s := "autopunch " + i.Version
	if i.Commit != "" {
		s += fmt.Sprintf(" (%s)", shortCommit(i.Commit))
	}
	if i.BuildDate != "" {
		s += " built " + i.BuildDate
	}
	return s + " " + i.GoVersion
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}
