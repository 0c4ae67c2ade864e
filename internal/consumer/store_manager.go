package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/olayemidamola/medsync/internal/config"
	"github.com/olayemidamola/medsync/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StoreManager 外部 Store 协作者（Redis 键值存储）
// 药物/监护人列表序列化为不透明 JSON blob，整体读写
type StoreManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewStoreManager 创建 Store 管理器
func NewStoreManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *StoreManager {
	return &StoreManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// GetMedications 读取药物列表
// 键不存在视为首次运行，返回空列表而非错误
func (s *StoreManager) GetMedications(ctx context.Context) ([]models.Medication, error) {
	val, err := s.redisClient.Get(ctx, s.config.Tracker.Store.MedicationsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return []models.Medication{}, nil
		}
		return nil, fmt.Errorf("failed to get medications: %w", err)
	}

	var meds []models.Medication
	if err := json.Unmarshal([]byte(val), &meds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal medications: %w", err)
	}

	return meds, nil
}

// SaveMedications 整体写回药物列表
func (s *StoreManager) SaveMedications(ctx context.Context, meds []models.Medication) error {
	jsonData, err := json.Marshal(meds)
	if err != nil {
		return fmt.Errorf("failed to marshal medications: %w", err)
	}

	if err := s.redisClient.Set(ctx, s.config.Tracker.Store.MedicationsKey, jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to save medications: %w", err)
	}

	s.logger.Debug("Saved medications",
		zap.Int("medication_count", len(meds)),
	)

	return nil
}

// GetCaregivers 读取监护人列表（键不存在返回空列表）
func (s *StoreManager) GetCaregivers(ctx context.Context) ([]models.Caregiver, error) {
	val, err := s.redisClient.Get(ctx, s.config.Tracker.Store.CaregiversKey).Result()
	if err != nil {
		if err == redis.Nil {
			return []models.Caregiver{}, nil
		}
		return nil, fmt.Errorf("failed to get caregivers: %w", err)
	}

	var caregivers []models.Caregiver
	if err := json.Unmarshal([]byte(val), &caregivers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal caregivers: %w", err)
	}

	return caregivers, nil
}

// SaveCaregivers 整体写回监护人列表
func (s *StoreManager) SaveCaregivers(ctx context.Context, caregivers []models.Caregiver) error {
	jsonData, err := json.Marshal(caregivers)
	if err != nil {
		return fmt.Errorf("failed to marshal caregivers: %w", err)
	}

	if err := s.redisClient.Set(ctx, s.config.Tracker.Store.CaregiversKey, jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to save caregivers: %w", err)
	}

	s.logger.Debug("Saved caregivers",
		zap.Int("caregiver_count", len(caregivers)),
	)

	return nil
}
