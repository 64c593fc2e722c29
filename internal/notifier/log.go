package notifier

import (
	"context"

	"firewatch/internal/models"

	"go.uber.org/zap"
)

// LogNotifier 仅写日志的通知器（开发环境或外部渠道未配置时使用）
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify 将通知内容写入日志
func (n *LogNotifier) Notify(_ context.Context, recipient *models.Firefighter, alert *models.Alert, isEscalation bool) error {
	n.logger.Info("Alert notification",
		zap.String("alert_id", alert.AlertID),
		zap.String("recipient_id", recipient.FirefighterID),
		zap.String("alert_type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.Bool("is_escalation", isEscalation),
	)
	return nil
}
