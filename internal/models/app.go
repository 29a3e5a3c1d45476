/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"errors"
	"regexp"
)

// ErrInvalidPackageID means a package id does not follow the Android package grammar.
var ErrInvalidPackageID = errors.New("invalid package id")

var packagePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)+$`)

// ValidPackageID reports whether id is a well-formed Android package name.
// Only those are safe to hand to a device shell.
func ValidPackageID(id string) bool {
	return packagePattern.MatchString(id)
}

// AppKind selects a preset target application or a custom package.
type AppKind string

const (
	AppFeishu   AppKind = "feishu"
	AppDingTalk AppKind = "dingtalk"
	AppCustom   AppKind = "custom"
)

// Package identities of the preset applications.
const (
	PackageFeishu   = "com.ss.android.lark"
	PackageDingTalk = "com.alibaba.android.rimet"
)

// AppIdentity names the application the automation drives.
type AppIdentity struct {
	Kind      AppKind `json:"kind" yaml:"kind"`
	PackageID string  `json:"package_id" yaml:"package_id"`
}

// PresetApp returns the identity of a preset kind. Unknown kinds fall back to Feishu.
func PresetApp(kind AppKind) AppIdentity {
	switch kind {
	case AppDingTalk:
		return AppIdentity{Kind: AppDingTalk, PackageID: PackageDingTalk}
	default:
		return AppIdentity{Kind: AppFeishu, PackageID: PackageFeishu}
	}
}

// CustomApp returns a custom identity for packageID.
func CustomApp(packageID string) AppIdentity {
	return AppIdentity{Kind: AppCustom, PackageID: packageID}
}

// DisplayName returns a human readable label for logs and notifications.
func (a AppIdentity) DisplayName() string {
	switch a.Kind {
	case AppFeishu:
		return "Feishu"
	case AppDingTalk:
		return "DingTalk"
	default:
		if a.PackageID == "" {
			return "custom"
		}
		return a.PackageID
	}
}
