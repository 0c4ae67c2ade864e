package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/olayemidamola/medsync/internal/config"
	"github.com/olayemidamola/medsync/internal/models"

	"go.uber.org/zap"
)

// Evaluator 剂量评估器接口
type Evaluator interface {
	// EvaluateAll 对所有药物的所有剂量执行自动状态转移，返回新列表与转移集合
	EvaluateAll(meds []models.Medication, now time.Time) ([]models.Medication, []models.DoseTransition)
	// ResetForNewDay 跨天重置，归档转移的 Effect 为空
	ResetForNewDay(meds []models.Medication, now time.Time) ([]models.Medication, []models.DoseTransition)
}

// Dispatcher 通知下发接口（尽力而为，绝不阻塞或失败状态转移）
type Dispatcher interface {
	Dispatch(ctx context.Context, transition models.DoseTransition)
}

// AlertChannel 监护人报警侧通道接口
type AlertChannel interface {
	Alert(ctx context.Context, med models.Medication, doseIndex int, dose models.DoseSchedule, caregivers []models.Caregiver) error
}

// HistoryRecorder 剂量历史归档接口
type HistoryRecorder interface {
	Create(ctx context.Context, record *models.DoseHistoryRecord) error
}

// Store 药物与监护人列表的持久化接口
type Store interface {
	GetMedications(ctx context.Context) ([]models.Medication, error)
	SaveMedications(ctx context.Context, meds []models.Medication) error
	GetCaregivers(ctx context.Context) ([]models.Caregiver, error)
	SaveCaregivers(ctx context.Context, caregivers []models.Caregiver) error
}

// TickConsumer 评估循环（周期性 tick 驱动所有自动状态转移）
// 状态的读-改-写与用户动作共用同一把锁，两者不会交错
type TickConsumer struct {
	config     *config.Config
	store      Store
	evaluator  Evaluator
	dispatcher Dispatcher
	alerts     AlertChannel
	history    HistoryRecorder
	stateMu    *sync.Mutex
	logger     *zap.Logger

	now     func() time.Time    // 测试注入
	lastDay time.Time           // 上一个 tick 的时刻（跨天检测）
	carried []models.Medication // 写回失败时保留的内存状态（下一轮以此为基准）
}

// NewTickConsumer 创建评估循环
// stateMu 与用户动作服务共享，保护药物列表的读-改-写
func NewTickConsumer(
	cfg *config.Config,
	store Store,
	evaluator Evaluator,
	dispatcher Dispatcher,
	alerts AlertChannel,
	history HistoryRecorder,
	stateMu *sync.Mutex,
	logger *zap.Logger,
) *TickConsumer {
	return &TickConsumer{
		config:     cfg,
		store:      store,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		alerts:     alerts,
		history:    history,
		stateMu:    stateMu,
		logger:     logger,
		now:        time.Now,
	}
}

// Run 启动评估循环（阻塞直到 ctx 取消）
func (c *TickConsumer) Run(ctx context.Context) error {
	c.logger.Info("Tick consumer started",
		zap.Duration("poll_interval", c.config.Tracker.PollInterval),
	)

	ticker := time.NewTicker(c.config.Tracker.PollInterval)
	defer ticker.Stop()

	// 立即执行一次（ticker 要等一个周期才首次触发）
	if err := c.evaluatePass(ctx); err != nil {
		c.logger.Error("Failed to evaluate doses on startup",
			zap.Error(err),
		)
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Tick consumer stopped")
			return nil
		case <-ticker.C:
			if err := c.evaluatePass(ctx); err != nil {
				c.logger.Error("Failed to evaluate doses",
					zap.Error(err),
				)
				// 继续执行，不中断
			}
		}
	}
}

// evaluatePass 单个 tick 的完整评估
// 读取当前列表 → 跨天重置 → 自动转移 → 整体写回 → 下发副作用
// 任何下游失败只记录日志；循环本身永不因单次失败终止
func (c *TickConsumer) evaluatePass(ctx context.Context) error {
	now := c.now()

	// 锁只覆盖读-改-写；通知下发在锁外进行
	c.stateMu.Lock()

	var meds []models.Medication
	if c.carried != nil {
		// 上一轮写回失败：以内存状态为基准，
		// 从过期的 Store 副本重新评估会重复触发同一批通知
		meds = c.carried
	} else {
		var err error
		meds, err = c.store.GetMedications(ctx)
		if err != nil {
			c.stateMu.Unlock()
			// 读失败跳过本轮（不能用空列表整体写回，否则会清掉已有数据）
			return fmt.Errorf("failed to load medications: %w", err)
		}
	}

	changed := false

	// 跨天重置：剂量计划每日重复
	var rollovers []models.DoseTransition
	if !c.lastDay.IsZero() && !sameDay(c.lastDay, now) {
		meds, rollovers = c.evaluator.ResetForNewDay(meds, now)
		if len(rollovers) > 0 {
			changed = true
		}
	}
	c.lastDay = now

	updated, transitions := c.evaluator.EvaluateAll(meds, now)
	if len(transitions) > 0 {
		changed = true
	}

	// 先整体写回，再下发通知：通知严格位于状态变更下游
	if changed || c.carried != nil {
		if err := c.store.SaveMedications(ctx, updated); err != nil {
			c.logger.Error("Failed to save medications after evaluation",
				zap.Error(err),
			)
			// 写失败不回滚本轮已计算的转移；保留内存状态待下一轮重试写回
			c.carried = updated
		} else {
			c.carried = nil
		}
	}
	c.stateMu.Unlock()

	c.archiveRollovers(ctx, rollovers)
	c.dispatchTransitions(ctx, transitions)

	return nil
}

// dispatchTransitions 下发本轮转移：历史归档、个人通知、监护人报警
func (c *TickConsumer) dispatchTransitions(ctx context.Context, transitions []models.DoseTransition) {
	if len(transitions) == 0 {
		return
	}

	// 仅在出现 missed 时才需要监护人列表
	var caregivers []models.Caregiver
	for _, tr := range transitions {
		if tr.To == models.DoseStatusMissed {
			loaded, err := c.store.GetCaregivers(ctx)
			if err != nil {
				c.logger.Error("Failed to load caregivers for missed dose alert",
					zap.Error(err),
				)
				loaded = []models.Caregiver{}
			}
			caregivers = loaded
			break
		}
	}

	for _, tr := range transitions {
		record := models.HistoryFromTransition(tr)
		if tr.To == models.DoseStatusMissed {
			if data, err := json.Marshal(caregivers); err == nil {
				record.NotifiedCaregivers = data
			}
		}
		if err := c.history.Create(ctx, &record); err != nil {
			c.logger.Error("Failed to archive dose transition",
				zap.String("medication_id", tr.Medication.ID),
				zap.Int("dose_index", tr.DoseIndex),
				zap.Error(err),
			)
		}

		c.dispatcher.Dispatch(ctx, tr)

		// 监护人报警侧通道：每次进入 missed 恰好触发一次
		// （状态守卫保证已 missed 的剂量不会再次产生转移）
		if tr.To == models.DoseStatusMissed {
			if err := c.alerts.Alert(ctx, tr.Medication, tr.DoseIndex, tr.Dose(), caregivers); err != nil {
				c.logger.Error("Failed to alert caregivers",
					zap.String("medication_id", tr.Medication.ID),
					zap.Int("dose_index", tr.DoseIndex),
					zap.Error(err),
				)
			} else {
				c.logger.Info("Caregiver alert sent",
					zap.String("medication", tr.Medication.Name),
					zap.String("dose_time", tr.Dose().Time),
					zap.Int("caregiver_count", len(caregivers)),
				)
			}
		}
	}
}

// archiveRollovers 归档跨天重置（只写历史，不产生通知）
func (c *TickConsumer) archiveRollovers(ctx context.Context, rollovers []models.DoseTransition) {
	for _, tr := range rollovers {
		record := models.HistoryFromTransition(tr)
		record.Details = json.RawMessage(`{"reason":"day_rolled"}`)
		if err := c.history.Create(ctx, &record); err != nil {
			c.logger.Error("Failed to archive day rollover",
				zap.String("medication_id", tr.Medication.ID),
				zap.Int("dose_index", tr.DoseIndex),
				zap.Error(err),
			)
		}
	}
}

// sameDay 判断两个时刻是否在同一日历日
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
