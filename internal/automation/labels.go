/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package automation

import "github.com/friendsincode/autopunch/internal/models"

// Catalog holds the ordered label candidates searched at each step.
type Catalog struct {
	WorkTab     []string
	Attendance  []string
	PunchAction []string
	AlreadyDone []string
}

var (
	punchActionLabels = []string{"更新打卡", "下班打卡", "上班打卡"}
	alreadyDoneLabels = []string{"已打卡", "已签到", "打卡成功"}

	// ClearAllLabels are the recents screen "clear all" synonyms.
	ClearAllLabels = []string{"全部清除", "清除全部", "全部结束", "一键清理", "清理全部", "Clear all"}
)

// CatalogFor returns the label catalog for an application kind. Custom
// targets share the Feishu catalog.
func CatalogFor(kind models.AppKind) Catalog {
	c := Catalog{
		PunchAction: punchActionLabels,
		AlreadyDone: alreadyDoneLabels,
	}
	switch kind {
	case models.AppDingTalk:
		c.WorkTab = []string{"工作台", "工作", "Workbench"}
		c.Attendance = []string{"考勤打卡", "智能考勤", "考勤"}
	default:
		c.WorkTab = []string{"工作台", "工作", "Workplace"}
		c.Attendance = []string{"假勤", "考勤打卡", "考勤"}
	}
	return c
}
