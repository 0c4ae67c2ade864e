package evaluator

import (
	"time"

	"github.com/olayemidamola/medsync/internal/models"

	"go.uber.org/zap"
)

// Evaluator 剂量评估器（实现 consumer.Evaluator 接口）
// 对输入列表纯函数式评估：返回新列表与转移集合，不修改入参
type Evaluator struct {
	windows Windows
	logger  *zap.Logger
}

// NewEvaluator 创建评估器
func NewEvaluator(windows Windows, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		windows: windows,
		logger:  logger,
	}
}

// EvaluateAll 对所有药物的所有剂量执行自动状态转移
// 单个剂量评估失败（非法时间格式）只记录日志并跳过，不中断整体评估
func (e *Evaluator) EvaluateAll(meds []models.Medication, now time.Time) ([]models.Medication, []models.DoseTransition) {
	updated := copyMedications(meds)
	var transitions []models.DoseTransition

	for i := range updated {
		for j := range updated[i].Schedule {
			before := updated[i].Schedule[j]

			after, effect, err := Advance(before, now, e.windows)
			if err != nil {
				e.logger.Error("Failed to evaluate dose",
					zap.String("medication_id", updated[i].ID),
					zap.Int("dose_index", j),
					zap.Error(err),
				)
				continue
			}

			if after.Status == before.Status {
				continue
			}

			updated[i].Schedule[j] = after
			transitions = append(transitions, models.DoseTransition{
				Medication: updated[i],
				DoseIndex:  j,
				From:       before.Status,
				To:         after.Status,
				Effect:     effect,
				At:         now,
			})
		}
	}

	return updated, transitions
}

// ResetForNewDay 跨天重置：非 pending 的剂量归档并重置为 pending
// （剂量计划每日重复；由评估循环在日历日变化时调用）
func (e *Evaluator) ResetForNewDay(meds []models.Medication, now time.Time) ([]models.Medication, []models.DoseTransition) {
	updated := copyMedications(meds)
	var transitions []models.DoseTransition

	for i := range updated {
		for j := range updated[i].Schedule {
			before := updated[i].Schedule[j]
			if before.Status == models.DoseStatusPending {
				continue
			}

			updated[i].Schedule[j] = models.NewDoseSchedule(before.Time)
			transitions = append(transitions, models.DoseTransition{
				Medication: updated[i],
				DoseIndex:  j,
				From:       before.Status,
				To:         models.DoseStatusPending,
				Effect:     models.EffectNone,
				At:         now,
			})
		}
	}

	if len(transitions) > 0 {
		e.logger.Info("Reset doses for new day",
			zap.Int("reset_count", len(transitions)),
		)
	}

	return updated, transitions
}

// copyMedications 深拷贝药物列表（整体替换语义：评估不触碰调用方的列表）
func copyMedications(meds []models.Medication) []models.Medication {
	out := make([]models.Medication, len(meds))
	copy(out, meds)
	for i := range out {
		schedule := make([]models.DoseSchedule, len(meds[i].Schedule))
		copy(schedule, meds[i].Schedule)
		out[i].Schedule = schedule
	}
	return out
}
