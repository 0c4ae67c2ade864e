package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/olayemidamola/medsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeNotifier struct {
	granted       bool
	permissionErr error
	notifyErr     error
	sent          [][2]string
}

func (f *fakeNotifier) RequestPermission(_ context.Context) (bool, error) {
	return f.granted, f.permissionErr
}

func (f *fakeNotifier) Notify(_ context.Context, title, body string) error {
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.sent = append(f.sent, [2]string{title, body})
	return nil
}

func transitionWithEffect(effect models.DoseEffect) models.DoseTransition {
	return models.DoseTransition{
		Medication: models.Medication{
			ID:       "med-1",
			Name:     "Metformin",
			Dosage:   "500mg",
			Schedule: []models.DoseSchedule{models.NewDoseSchedule("09:00")},
		},
		DoseIndex: 0,
		Effect:    effect,
		At:        time.Now(),
	}
}

func TestDispatcher_DisabledByDefault(t *testing.T) {
	notifier := &fakeNotifier{granted: true}
	d := NewDispatcher(notifier, zap.NewNop())

	d.Dispatch(context.Background(), transitionWithEffect(models.EffectNotifyDue))

	assert.False(t, d.Enabled())
	assert.Empty(t, notifier.sent)
}

func TestDispatcher_EnableAlerts(t *testing.T) {
	notifier := &fakeNotifier{granted: true}
	d := NewDispatcher(notifier, zap.NewNop())

	granted, err := d.EnableAlerts(context.Background())

	require.NoError(t, err)
	assert.True(t, granted)
	assert.True(t, d.Enabled())
}

func TestDispatcher_PermissionDenied(t *testing.T) {
	notifier := &fakeNotifier{granted: false}
	d := NewDispatcher(notifier, zap.NewNop())

	granted, err := d.EnableAlerts(context.Background())

	require.NoError(t, err)
	assert.False(t, granted)
	assert.False(t, d.Enabled())

	d.Dispatch(context.Background(), transitionWithEffect(models.EffectNotifyDue))
	assert.Empty(t, notifier.sent)
}

func TestDispatcher_PermissionError(t *testing.T) {
	notifier := &fakeNotifier{permissionErr: errors.New("channel unavailable")}
	d := NewDispatcher(notifier, zap.NewNop())

	_, err := d.EnableAlerts(context.Background())

	assert.Error(t, err)
	assert.False(t, d.Enabled())
}

func TestDispatcher_NotificationWording(t *testing.T) {
	notifier := &fakeNotifier{granted: true}
	d := NewDispatcher(notifier, zap.NewNop())
	_, err := d.EnableAlerts(context.Background())
	require.NoError(t, err)

	tests := []struct {
		effect models.DoseEffect
		title  string
		body   string
	}{
		{models.EffectNotifyDue, "💊 Medication Due: Metformin", "Time to take your 500mg dose"},
		{models.EffectNotifySnoozeEnd, "💊 Snooze Ended: Metformin", "Reminder: Time to take your 500mg dose"},
		{models.EffectNotifyMissed, "🚨 MISSED DOSE ALERT", "Metformin was not taken. Caregivers have been notified."},
		{models.EffectNotifyConfirmed, "✅ Dose Confirmed", "Great job staying on track!"},
		{models.EffectNotifySnoozed, "⏳ Dose Snoozed", "Reminder in 5 minutes"},
	}

	for _, tt := range tests {
		notifier.sent = nil
		d.Dispatch(context.Background(), transitionWithEffect(tt.effect))

		require.Len(t, notifier.sent, 1, "effect %s", tt.effect)
		assert.Equal(t, tt.title, notifier.sent[0][0])
		assert.Equal(t, tt.body, notifier.sent[0][1])
	}
}

func TestDispatcher_SilentEffectProducesNothing(t *testing.T) {
	notifier := &fakeNotifier{granted: true}
	d := NewDispatcher(notifier, zap.NewNop())
	_, err := d.EnableAlerts(context.Background())
	require.NoError(t, err)

	d.Dispatch(context.Background(), transitionWithEffect(models.EffectNone))

	assert.Empty(t, notifier.sent)
}

func TestDispatcher_NotifyFailureDoesNotPanic(t *testing.T) {
	notifier := &fakeNotifier{granted: true, notifyErr: errors.New("delivery failed")}
	d := NewDispatcher(notifier, zap.NewNop())
	_, err := d.EnableAlerts(context.Background())
	require.NoError(t, err)

	// 投递失败只记录日志
	d.Dispatch(context.Background(), transitionWithEffect(models.EffectNotifyDue))
}
