package notifier

import (
	"context"
	"fmt"

	"firewatch/internal/models"

	"github.com/nicholas-fedor/shoutrrr"
	"go.uber.org/zap"
)

// ShoutrrrNotifier 经 shoutrrr 推送通知
// 每名人员在档案中配置自己的服务 URL（ntfy/telegram/smtp 等），
// 未配置 URL 的接收人直接跳过
type ShoutrrrNotifier struct {
	logger *zap.Logger
}

// NewShoutrrrNotifier 创建 shoutrrr 通知器
func NewShoutrrrNotifier(logger *zap.Logger) *ShoutrrrNotifier {
	return &ShoutrrrNotifier{logger: logger}
}

// Notify 向单个接收人推送告警
func (n *ShoutrrrNotifier) Notify(_ context.Context, recipient *models.Firefighter, alert *models.Alert, isEscalation bool) error {
	if recipient.NotifyURL == "" {
		return nil
	}

	body := formatAlertMessage(alert, isEscalation)
	if err := shoutrrr.Send(recipient.NotifyURL, body); err != nil {
		return fmt.Errorf("shoutrrr send to %s: %w", recipient.FirefighterID, err)
	}
	return nil
}

func formatAlertMessage(alert *models.Alert, isEscalation bool) string {
	prefix := "ALERT"
	if isEscalation {
		prefix = fmt.Sprintf("ESCALATED (level %d)", alert.EscalationLevel)
	}
	return fmt.Sprintf("[%s] %s: %s (severity %s, firefighter %s)",
		prefix, alert.Title, alert.Message, alert.Severity, alert.FirefighterID)
}
