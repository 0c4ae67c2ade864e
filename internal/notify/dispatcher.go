package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/olayemidamola/medsync/internal/models"

	"go.uber.org/zap"
)

// Dispatcher 把剂量状态转移翻译为个人提醒
// 未启用时静默丢弃；启用后每个带副作用的转移恰好产生一条提醒
type Dispatcher struct {
	notifier Notifier
	logger   *zap.Logger

	mu      sync.RWMutex
	enabled bool
}

// NewDispatcher 创建通知分发器（初始未启用，需调用 EnableAlerts）
func NewDispatcher(notifier Notifier, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		logger:   logger,
	}
}

// EnableAlerts 请求授权并启用提醒，返回最终启用状态
func (d *Dispatcher) EnableAlerts(ctx context.Context) (bool, error) {
	granted, err := d.notifier.RequestPermission(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to request notification permission: %w", err)
	}

	d.mu.Lock()
	d.enabled = granted
	d.mu.Unlock()

	d.logger.Info("Notification permission requested",
		zap.Bool("granted", granted),
	)
	return granted, nil
}

// Enabled 当前是否启用提醒
func (d *Dispatcher) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// Dispatch 下发一条转移对应的提醒
// 永不返回错误：提醒严格位于状态变更下游，失败只记录日志
func (d *Dispatcher) Dispatch(ctx context.Context, transition models.DoseTransition) {
	if !d.Enabled() {
		return
	}

	title, body, ok := renderNotification(transition)
	if !ok {
		return
	}

	if err := d.notifier.Notify(ctx, title, body); err != nil {
		d.logger.Error("Failed to deliver notification",
			zap.String("medication_id", transition.Medication.ID),
			zap.Int("dose_index", transition.DoseIndex),
			zap.String("effect", string(transition.Effect)),
			zap.Error(err),
		)
	}
}

// renderNotification 按副作用类型生成提醒文案
func renderNotification(t models.DoseTransition) (title, body string, ok bool) {
	med := t.Medication
	switch t.Effect {
	case models.EffectNotifyDue:
		return fmt.Sprintf("💊 Medication Due: %s", med.Name),
			fmt.Sprintf("Time to take your %s dose", med.Dosage), true
	case models.EffectNotifySnoozeEnd:
		return fmt.Sprintf("💊 Snooze Ended: %s", med.Name),
			fmt.Sprintf("Reminder: Time to take your %s dose", med.Dosage), true
	case models.EffectNotifyMissed:
		return "🚨 MISSED DOSE ALERT",
			fmt.Sprintf("%s was not taken. Caregivers have been notified.", med.Name), true
	case models.EffectNotifyConfirmed:
		return "✅ Dose Confirmed", "Great job staying on track!", true
	case models.EffectNotifySnoozed:
		return "⏳ Dose Snoozed", "Reminder in 5 minutes", true
	default:
		return "", "", false
	}
}
