package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/olayemidamola/medsync/internal/config"
	"github.com/olayemidamola/medsync/internal/consumer"
	"github.com/olayemidamola/medsync/internal/evaluator"
	"github.com/olayemidamola/medsync/internal/notify"
	"github.com/olayemidamola/medsync/internal/repository"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// TrackerService 剂量跟踪服务（整合各层）
type TrackerService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	// 各层组件
	storeManager *consumer.StoreManager
	historyRepo  *repository.DoseHistoryRepository
	evaluator    *evaluator.Evaluator
	dispatcher   *notify.Dispatcher
	tickConsumer *consumer.TickConsumer

	medicationService *MedicationService
	historyService    *HistoryService

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTrackerService 创建剂量跟踪服务
func NewTrackerService(cfg *config.Config, logger *zap.Logger) (*TrackerService, error) {
	// 1. 连接数据库
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试数据库连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 测试 Redis 连接
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 创建 Repository 层
	historyRepo := repository.NewDoseHistoryRepository(db, logger)

	// 4. 创建 Consumer 层
	storeManager := consumer.NewStoreManager(cfg, redisClient, logger)

	// 5. 创建 Evaluator 层
	windows := evaluator.Windows{
		DueWindow:      cfg.Tracker.DueWindow,
		SnoozeDuration: cfg.Tracker.SnoozeDuration,
		MissedAfter:    cfg.Tracker.MissedAfter,
	}
	eval := evaluator.NewEvaluator(windows, logger)

	// 6. 创建通知分发器与监护人报警通道
	dispatcher := notify.NewDispatcher(notify.NewLogNotifier(logger), logger)
	if cfg.Notify.Enabled {
		if _, err := dispatcher.EnableAlerts(ctx); err != nil {
			return nil, fmt.Errorf("failed to enable alerts: %w", err)
		}
	}
	alertChannel, err := buildAlertChannel(cfg, logger)
	if err != nil {
		return nil, err
	}

	// 7. 创建 TickConsumer 与服务层（共享同一把状态锁）
	stateMu := &sync.Mutex{}
	tickConsumer := consumer.NewTickConsumer(cfg, storeManager, eval, dispatcher, alertChannel, historyRepo, stateMu, logger)
	medicationService := NewMedicationService(storeManager, dispatcher, historyRepo, windows, stateMu, logger)
	historyService := NewHistoryService(historyRepo, logger)

	return &TrackerService{
		config:            cfg,
		db:                db,
		redisClient:       redisClient,
		logger:            logger,
		storeManager:      storeManager,
		historyRepo:       historyRepo,
		evaluator:         eval,
		dispatcher:        dispatcher,
		tickConsumer:      tickConsumer,
		medicationService: medicationService,
		historyService:    historyService,
	}, nil
}

// buildAlertChannel 按配置选择监护人报警通道
func buildAlertChannel(cfg *config.Config, logger *zap.Logger) (consumer.AlertChannel, error) {
	switch cfg.Notify.AlertChannel {
	case "email":
		if cfg.Notify.SendgridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required for email alert channel")
		}
		return notify.NewEmailAlertChannel(
			cfg.Notify.SendgridAPIKey,
			cfg.Notify.AlertFromEmail,
			cfg.Notify.AlertSubject,
			logger,
		), nil
	case "webhook":
		if cfg.Notify.WebhookURL == "" {
			return nil, fmt.Errorf("ALERT_WEBHOOK_URL is required for webhook alert channel")
		}
		return notify.NewWebhookAlertChannel(cfg.Notify.WebhookURL, logger), nil
	case "log":
		return notify.NewLogAlertChannel(logger), nil
	default:
		return nil, fmt.Errorf("unknown alert channel: %s", cfg.Notify.AlertChannel)
	}
}

// Start 启动服务（评估循环在后台运行）
func (s *TrackerService) Start(ctx context.Context) error {
	s.logger.Info("Starting tracker service",
		zap.Duration("poll_interval", s.config.Tracker.PollInterval),
		zap.String("alert_channel", s.config.Notify.AlertChannel),
	)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.tickConsumer.Run(runCtx); err != nil {
			s.logger.Error("Tick consumer exited with error",
				zap.Error(err),
			)
		}
	}()

	return nil
}

// Stop 停止服务
func (s *TrackerService) Stop() error {
	s.logger.Info("Stopping tracker service")

	if s.cancel != nil {
		s.cancel()
		<-s.done
	}

	// 关闭数据库连接
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	// 关闭 Redis 连接
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}

// Medications 药物服务
func (s *TrackerService) Medications() *MedicationService {
	return s.medicationService
}

// History 剂量历史服务
func (s *TrackerService) History() *HistoryService {
	return s.historyService
}

// Alerts 通知分发器
func (s *TrackerService) Alerts() *notify.Dispatcher {
	return s.dispatcher
}
