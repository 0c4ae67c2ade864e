package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/olayemidamola/medsync/internal/consumer"
	"github.com/olayemidamola/medsync/internal/evaluator"
	"github.com/olayemidamola/medsync/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrMedicationNotFound 指定的药物不存在
	ErrMedicationNotFound = errors.New("medication not found")
	// ErrCaregiverNotFound 指定的监护人不存在
	ErrCaregiverNotFound = errors.New("caregiver not found")
	// ErrDoseIndexOutOfRange 剂量索引越界
	ErrDoseIndexOutOfRange = errors.New("dose index out of range")
)

// MedicationService 药物与剂量服务层
// 职责：
// 1. 业务规则验证（名称、剂量、HH:MM 格式）
// 2. 用户驱动的状态转移（confirm/snooze），与评估循环共用状态锁
// 3. 业务编排（状态写回 → 历史归档 → 通知下发）
type MedicationService struct {
	store      *consumer.StoreManager
	dispatcher consumer.Dispatcher
	history    consumer.HistoryRecorder
	windows    evaluator.Windows
	stateMu    *sync.Mutex
	logger     *zap.Logger

	now func() time.Time // 测试注入
}

// NewMedicationService 创建药物服务
// stateMu 与评估循环共享，保证用户动作与 tick 的读-改-写不交错
func NewMedicationService(
	store *consumer.StoreManager,
	dispatcher consumer.Dispatcher,
	history consumer.HistoryRecorder,
	windows evaluator.Windows,
	stateMu *sync.Mutex,
	logger *zap.Logger,
) *MedicationService {
	return &MedicationService{
		store:      store,
		dispatcher: dispatcher,
		history:    history,
		windows:    windows,
		stateMu:    stateMu,
		logger:     logger,
		now:        time.Now,
	}
}

// ============================================
// 药物 CRUD
// ============================================

// ListMedications 获取所有药物及其当前剂量状态
func (s *MedicationService) ListMedications(ctx context.Context) ([]models.Medication, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	meds, err := s.store.GetMedications(ctx)
	if err != nil {
		s.logger.Error("Failed to list medications",
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return meds, nil
}

// AddMedication 添加药物
// 业务规则：
// - name 和 dosage 必填
// - 至少一个剂量时间，均为合法 "HH:MM"
// - 所有剂量初始为 pending
func (s *MedicationService) AddMedication(ctx context.Context, name, dosage string, times []string) (*models.Medication, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if dosage == "" {
		return nil, fmt.Errorf("dosage is required")
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("at least one dose time is required")
	}

	schedule := make([]models.DoseSchedule, 0, len(times))
	for _, timeOfDay := range times {
		if _, err := evaluator.ResolveDoseTime(timeOfDay, s.now()); err != nil {
			return nil, fmt.Errorf("invalid dose time %q: expected HH:MM", timeOfDay)
		}
		schedule = append(schedule, models.NewDoseSchedule(timeOfDay))
	}

	med := models.Medication{
		ID:        uuid.New().String(),
		Name:      name,
		Dosage:    dosage,
		Schedule:  schedule,
		CreatedAt: s.now(),
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	meds, err := s.store.GetMedications(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load medications: %w", err)
	}
	meds = append(meds, med)
	if err := s.store.SaveMedications(ctx, meds); err != nil {
		return nil, fmt.Errorf("failed to save medications: %w", err)
	}

	s.logger.Info("Medication added",
		zap.String("medication_id", med.ID),
		zap.String("name", med.Name),
		zap.Int("dose_count", len(med.Schedule)),
	)
	return &med, nil
}

// DeleteMedication 删除药物
func (s *MedicationService) DeleteMedication(ctx context.Context, medicationID string) error {
	if medicationID == "" {
		return fmt.Errorf("medication_id is required")
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	meds, err := s.store.GetMedications(ctx)
	if err != nil {
		return fmt.Errorf("failed to load medications: %w", err)
	}

	kept := make([]models.Medication, 0, len(meds))
	found := false
	for _, med := range meds {
		if med.ID == medicationID {
			found = true
			continue
		}
		kept = append(kept, med)
	}
	if !found {
		return ErrMedicationNotFound
	}

	if err := s.store.SaveMedications(ctx, kept); err != nil {
		return fmt.Errorf("failed to save medications: %w", err)
	}

	s.logger.Info("Medication deleted",
		zap.String("medication_id", medicationID),
	)
	return nil
}

// ============================================
// 用户驱动的剂量状态转移
// ============================================

// ConfirmDose 确认服药（due/snoozed → taken）
// 其他状态下返回 evaluator.ErrInvalidTransition
func (s *MedicationService) ConfirmDose(ctx context.Context, medicationID string, doseIndex int) (*models.Medication, error) {
	return s.applyDoseAction(ctx, medicationID, doseIndex, evaluator.ActionConfirm)
}

// SnoozeDose 延后提醒（due → snoozed，snooze_until = now + SnoozeDuration）
// 其他状态下返回 evaluator.ErrInvalidTransition
func (s *MedicationService) SnoozeDose(ctx context.Context, medicationID string, doseIndex int) (*models.Medication, error) {
	return s.applyDoseAction(ctx, medicationID, doseIndex, evaluator.ActionSnooze)
}

// applyDoseAction 状态锁内执行用户动作并写回，锁外下发副作用
func (s *MedicationService) applyDoseAction(ctx context.Context, medicationID string, doseIndex int, action evaluator.Action) (*models.Medication, error) {
	if medicationID == "" {
		return nil, fmt.Errorf("medication_id is required")
	}

	now := s.now()

	s.stateMu.Lock()
	meds, err := s.store.GetMedications(ctx)
	if err != nil {
		s.stateMu.Unlock()
		return nil, fmt.Errorf("failed to load medications: %w", err)
	}

	medIdx := -1
	for i := range meds {
		if meds[i].ID == medicationID {
			medIdx = i
			break
		}
	}
	if medIdx < 0 {
		s.stateMu.Unlock()
		return nil, ErrMedicationNotFound
	}
	if doseIndex < 0 || doseIndex >= len(meds[medIdx].Schedule) {
		s.stateMu.Unlock()
		return nil, ErrDoseIndexOutOfRange
	}

	dose := meds[medIdx].Schedule[doseIndex]
	updated, effect, err := evaluator.ApplyAction(dose, now, action, s.windows)
	if err != nil {
		s.stateMu.Unlock()
		return nil, err
	}

	meds[medIdx].Schedule[doseIndex] = updated
	if err := s.store.SaveMedications(ctx, meds); err != nil {
		s.stateMu.Unlock()
		return nil, fmt.Errorf("failed to save medications: %w", err)
	}

	med := meds[medIdx]
	s.stateMu.Unlock()

	transition := models.DoseTransition{
		Medication: med,
		DoseIndex:  doseIndex,
		From:       dose.Status,
		To:         updated.Status,
		Effect:     effect,
		At:         now,
	}

	record := models.HistoryFromTransition(transition)
	if err := s.history.Create(ctx, &record); err != nil {
		s.logger.Error("Failed to archive dose action",
			zap.String("medication_id", medicationID),
			zap.Int("dose_index", doseIndex),
			zap.Error(err),
		)
	}
	s.dispatcher.Dispatch(ctx, transition)

	s.logger.Info("Dose action applied",
		zap.String("medication_id", medicationID),
		zap.Int("dose_index", doseIndex),
		zap.String("from", string(dose.Status)),
		zap.String("to", string(updated.Status)),
	)
	return &med, nil
}

// ============================================
// 监护人 CRUD
// ============================================

// ListCaregivers 获取所有监护人
func (s *MedicationService) ListCaregivers(ctx context.Context) ([]models.Caregiver, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	caregivers, err := s.store.GetCaregivers(ctx)
	if err != nil {
		s.logger.Error("Failed to list caregivers",
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to list caregivers: %w", err)
	}
	return caregivers, nil
}

// AddCaregiver 添加监护人
// 业务规则：name 和 email 必填
func (s *MedicationService) AddCaregiver(ctx context.Context, name, email string) (*models.Caregiver, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	caregiver := models.Caregiver{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		CreatedAt: s.now(),
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	caregivers, err := s.store.GetCaregivers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load caregivers: %w", err)
	}
	caregivers = append(caregivers, caregiver)
	if err := s.store.SaveCaregivers(ctx, caregivers); err != nil {
		return nil, fmt.Errorf("failed to save caregivers: %w", err)
	}

	s.logger.Info("Caregiver added",
		zap.String("caregiver_id", caregiver.ID),
	)
	return &caregiver, nil
}

// DeleteCaregiver 删除监护人
func (s *MedicationService) DeleteCaregiver(ctx context.Context, caregiverID string) error {
	if caregiverID == "" {
		return fmt.Errorf("caregiver_id is required")
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	caregivers, err := s.store.GetCaregivers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load caregivers: %w", err)
	}

	kept := make([]models.Caregiver, 0, len(caregivers))
	found := false
	for _, caregiver := range caregivers {
		if caregiver.ID == caregiverID {
			found = true
			continue
		}
		kept = append(kept, caregiver)
	}
	if !found {
		return ErrCaregiverNotFound
	}

	if err := s.store.SaveCaregivers(ctx, kept); err != nil {
		return fmt.Errorf("failed to save caregivers: %w", err)
	}

	s.logger.Info("Caregiver deleted",
		zap.String("caregiver_id", caregiverID),
	)
	return nil
}
