package evaluator

import (
	"errors"
	"time"

	"github.com/olayemidamola/medsync/internal/models"
)

// Action 用户动作（独立于 tick 的第二事件源）
type Action int

const (
	ActionNone    Action = iota
	ActionConfirm        // 确认服药
	ActionSnooze         // 推迟提醒
)

// ErrInvalidTransition 当前状态不允许该用户动作
// （pending/missed/taken 不可确认，非 due 不可推迟）
var ErrInvalidTransition = errors.New("dose status does not allow this action")

// Windows 状态机时间窗口参数
type Windows struct {
	DueWindow      time.Duration // pending → due 触发窗口（tick 周期必须 ≤ 该窗口）
	SnoozeDuration time.Duration // 一次 snooze 的时长
	MissedAfter    time.Duration // 超过该时长未确认判定 missed
}

// DefaultWindows 默认窗口（due 1分钟，snooze 5分钟，missed 2小时）
func DefaultWindows() Windows {
	return Windows{
		DueWindow:      time.Minute,
		SnoozeDuration: 5 * time.Minute,
		MissedAfter:    2 * time.Hour,
	}
}

// Advance 自动状态转移（每个 tick 对每个剂量执行一次）
// 规则按序评估，命中即返回；所有规则以 tick 前状态为守卫，
// 因此同一 now 重复评估是幂等的，通知不会重复触发：
//  1. due/snoozed 且 elapsed ≥ MissedAfter → missed（missed 优先于 snooze 到期，
//     保证进程长时间停顿后只产生一次 missed 报警，而不是先弹回 due）
//  2. pending 且 0 ≤ elapsed < DueWindow → due
//  3. snoozed 且 now ≥ SnoozeUntil → due（清除 SnoozeUntil）
func Advance(dose models.DoseSchedule, now time.Time, w Windows) (models.DoseSchedule, models.DoseEffect, error) {
	doseTime, err := ResolveDoseTime(dose.Time, now)
	if err != nil {
		return dose, models.EffectNone, err
	}
	elapsed := Elapsed(doseTime, now)

	// 规则1：超时判定 missed
	if (dose.Status == models.DoseStatusDue || dose.Status == models.DoseStatusSnoozed) &&
		elapsed >= w.MissedAfter {
		dose.Status = models.DoseStatusMissed
		dose.SnoozeUntil = nil
		return dose, models.EffectNotifyMissed, nil
	}

	// 规则2：到达服药时间窗口
	if dose.Status == models.DoseStatusPending && elapsed >= 0 && elapsed < w.DueWindow {
		dose.Status = models.DoseStatusDue
		return dose, models.EffectNotifyDue, nil
	}

	// 规则3：snooze 到期
	if dose.Status == models.DoseStatusSnoozed && dose.SnoozeUntil != nil &&
		!now.Before(*dose.SnoozeUntil) {
		dose.Status = models.DoseStatusDue
		dose.SnoozeUntil = nil
		return dose, models.EffectNotifySnoozeEnd, nil
	}

	return dose, models.EffectNone, nil
}

// ApplyAction 用户驱动的状态转移（confirm/snooze）
// 调用方负责与 tick 的串行化（同一把锁），因此一次评估内
// 不会同时出现用户动作与自动转移；已 confirm 的剂量不会再被判 missed
func ApplyAction(dose models.DoseSchedule, now time.Time, action Action, w Windows) (models.DoseSchedule, models.DoseEffect, error) {
	switch action {
	case ActionConfirm:
		// 仅允许从 due/snoozed 确认（missed 不可补确认）
		if dose.Status != models.DoseStatusDue && dose.Status != models.DoseStatusSnoozed {
			return dose, models.EffectNone, ErrInvalidTransition
		}
		confirmedAt := now
		dose.Status = models.DoseStatusTaken
		dose.ConfirmedAt = &confirmedAt
		dose.SnoozeUntil = nil
		return dose, models.EffectNotifyConfirmed, nil

	case ActionSnooze:
		// 仅允许从 due 推迟
		if dose.Status != models.DoseStatusDue {
			return dose, models.EffectNone, ErrInvalidTransition
		}
		snoozeUntil := now.Add(w.SnoozeDuration)
		dose.Status = models.DoseStatusSnoozed
		dose.SnoozeUntil = &snoozeUntil
		return dose, models.EffectNotifySnoozed, nil

	default:
		return dose, models.EffectNone, nil
	}
}
