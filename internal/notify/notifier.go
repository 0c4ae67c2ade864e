package notify

import (
	"context"

	"go.uber.org/zap"
)

// Notifier 个人提醒通道接口
// 投递是尽力而为：失败只记录，不向调用方传播
type Notifier interface {
	// RequestPermission 请求通知授权，返回是否被授予
	RequestPermission(ctx context.Context) (bool, error)
	// Notify 发送一条提醒
	Notify(ctx context.Context, title, body string) error
}

// LogNotifier 日志提醒通道（默认实现，无外部依赖）
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 创建日志提醒通道
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// RequestPermission 日志通道总是授权
func (n *LogNotifier) RequestPermission(ctx context.Context) (bool, error) {
	return true, nil
}

// Notify 以结构化日志形式投递提醒
func (n *LogNotifier) Notify(ctx context.Context, title, body string) error {
	n.logger.Info("Notification",
		zap.String("title", title),
		zap.String("body", body),
	)
	return nil
}
