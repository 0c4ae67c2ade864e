package models

import (
	"encoding/json"
	"time"
)

// DoseEffect 状态转移的副作用（由 Dispatcher 翻译为通知，零或一条）
type DoseEffect string

const (
	EffectNone            DoseEffect = ""
	EffectNotifyDue       DoseEffect = "notify_due"        // pending → due
	EffectNotifySnoozeEnd DoseEffect = "notify_snooze_end" // snoozed → due（snooze 到期）
	EffectNotifyMissed    DoseEffect = "notify_missed"     // due/snoozed → missed（同时触发监护人报警）
	EffectNotifyConfirmed DoseEffect = "notify_confirmed"  // due/snoozed → taken
	EffectNotifySnoozed   DoseEffect = "notify_snoozed"    // due → snoozed
)

// DoseTransition 一次剂量状态转移（评估循环批量收集后下发）
type DoseTransition struct {
	Medication Medication `json:"medication"`
	DoseIndex  int        `json:"dose_index"`
	From       DoseStatus `json:"from"`
	To         DoseStatus `json:"to"`
	Effect     DoseEffect `json:"effect"`
	At         time.Time  `json:"at"`
}

// Dose 转移后的剂量视图（索引已校验）
func (t DoseTransition) Dose() DoseSchedule {
	return t.Medication.Schedule[t.DoseIndex]
}

// DoseHistoryRecord 剂量历史记录（对应 dose_history 表，追加写）
type DoseHistoryRecord struct {
	RecordID           string          `json:"record_id" db:"record_id"`
	MedicationID       string          `json:"medication_id" db:"medication_id"`
	MedicationName     string          `json:"medication_name" db:"medication_name"`
	Dosage             string          `json:"dosage" db:"dosage"`
	DoseIndex          int             `json:"dose_index" db:"dose_index"`
	ScheduledTime      string          `json:"scheduled_time" db:"scheduled_time"` // "HH:MM"
	FromStatus         string          `json:"from_status" db:"from_status"`
	ToStatus           string          `json:"to_status" db:"to_status"`
	OccurredAt         time.Time       `json:"occurred_at" db:"occurred_at"`
	NotifiedCaregivers json.RawMessage `json:"notified_caregivers" db:"notified_caregivers"` // JSONB，仅 missed 记录非空
	Details            json.RawMessage `json:"details" db:"details"`                         // JSONB
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// HistoryFromTransition 由状态转移构建历史记录（RecordID 由调用方填充）
func HistoryFromTransition(t DoseTransition) DoseHistoryRecord {
	return DoseHistoryRecord{
		MedicationID:       t.Medication.ID,
		MedicationName:     t.Medication.Name,
		Dosage:             t.Medication.Dosage,
		DoseIndex:          t.DoseIndex,
		ScheduledTime:      t.Medication.Schedule[t.DoseIndex].Time,
		FromStatus:         string(t.From),
		ToStatus:           string(t.To),
		OccurredAt:         t.At,
		NotifiedCaregivers: json.RawMessage("[]"),
		Details:            json.RawMessage("{}"),
	}
}
