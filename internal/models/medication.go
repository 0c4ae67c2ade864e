package models

import (
	"time"
)

// DoseStatus 剂量状态
type DoseStatus string

const (
	DoseStatusPending DoseStatus = "pending" // 等待到达服药时间
	DoseStatusDue     DoseStatus = "due"     // 已到服药时间，等待确认
	DoseStatusSnoozed DoseStatus = "snoozed" // 用户推迟，等待 snooze 到期
	DoseStatusTaken   DoseStatus = "taken"   // 已确认服药（当日终态）
	DoseStatusMissed  DoseStatus = "missed"  // 超过 2 小时未确认（当日终态）
)

// IsTerminal 是否为当日终态（taken/missed 不再自动转移）
func (s DoseStatus) IsTerminal() bool {
	return s == DoseStatusTaken || s == DoseStatusMissed
}

// DoseSchedule 单个剂量计划（属于一个 Medication，按 (medication_id, index) 标识）
// 不变式：
// - SnoozeUntil != nil 当且仅当 Status == snoozed
// - ConfirmedAt != nil 当且仅当 Status == taken
type DoseSchedule struct {
	Time        string     `json:"time"` // "HH:MM" 每日重复，不带日期
	Status      DoseStatus `json:"status"`
	SnoozeUntil *time.Time `json:"snooze_until,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// NewDoseSchedule 创建初始剂量计划（pending，无 snooze，无确认）
func NewDoseSchedule(timeOfDay string) DoseSchedule {
	return DoseSchedule{
		Time:   timeOfDay,
		Status: DoseStatusPending,
	}
}

// Medication 药物（由 Store 持久化，评估期间持有读写视图）
type Medication struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Dosage    string         `json:"dosage"`
	Schedule  []DoseSchedule `json:"schedule"`
	CreatedAt time.Time      `json:"created_at"`
}
