package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config 服药跟踪服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig

	HTTP struct {
		Addr string // 监听地址，如 ":8080"
	}

	// 跟踪服务特定配置
	Tracker struct {
		// Store 键配置（药物/监护人列表以 JSON blob 存储）
		Store struct {
			MedicationsKey string // 药物列表键，如 "medsync:medications"
			CaregiversKey  string // 监护人列表键，如 "medsync:caregivers"
		}

		// 轮询配置
		PollInterval time.Duration // 轮询间隔，默认 30秒

		// 状态机窗口配置
		DueWindow      time.Duration // pending → due 触发窗口，默认 1分钟
		SnoozeDuration time.Duration // snooze 时长，默认 5分钟
		MissedAfter    time.Duration // 超时判定 missed，默认 2小时
	}

	// 通知与报警配置
	Notify struct {
		Enabled bool // 启动时是否默认开启通知（可经 API 开启）

		// 监护人报警通道："log"、"email"、"webhook"
		AlertChannel string

		// email 通道（SendGrid）
		SendgridAPIKey string
		AlertFromEmail string
		AlertSubject   string

		// webhook 通道
		WebhookURL string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "medsync")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// 跟踪服务配置
	cfg.Tracker.Store.MedicationsKey = getEnv("STORE_MEDICATIONS_KEY", "medsync:medications")
	cfg.Tracker.Store.CaregiversKey = getEnv("STORE_CAREGIVERS_KEY", "medsync:caregivers")

	cfg.Tracker.PollInterval = getEnvDuration("POLL_INTERVAL", 30*time.Second)
	cfg.Tracker.DueWindow = getEnvDuration("DUE_WINDOW", time.Minute)
	cfg.Tracker.SnoozeDuration = getEnvDuration("SNOOZE_DURATION", 5*time.Minute)
	cfg.Tracker.MissedAfter = getEnvDuration("MISSED_AFTER", 2*time.Hour)

	// 轮询间隔超过 due 窗口会漏掉 pending → due 触发
	if cfg.Tracker.PollInterval > cfg.Tracker.DueWindow {
		return nil, fmt.Errorf("poll interval %s must not exceed due window %s",
			cfg.Tracker.PollInterval, cfg.Tracker.DueWindow)
	}

	// 通知配置
	cfg.Notify.Enabled = getEnvBool("NOTIFY_ENABLED", false)
	cfg.Notify.AlertChannel = getEnv("ALERT_CHANNEL", "log")
	cfg.Notify.SendgridAPIKey = getEnv("SENDGRID_API_KEY", "")
	cfg.Notify.AlertFromEmail = getEnv("ALERT_FROM_EMAIL", "bot@medsync.local")
	cfg.Notify.AlertSubject = getEnv("ALERT_SUBJECT", "MedSync Missed Dose Alert")
	cfg.Notify.WebhookURL = getEnv("ALERT_WEBHOOK_URL", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
