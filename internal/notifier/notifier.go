package notifier

import (
	"context"

	"firewatch/internal/models"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Notifier 通知发送接口（email/SMS/push 等渠道的统一抽象，可替换为桩实现）
type Notifier interface {
	Notify(ctx context.Context, recipient *models.Firefighter, alert *models.Alert, isEscalation bool) error
}

// Result 单个接收人的发送结果
type Result struct {
	RecipientID string
	Err         error
}

// Dispatcher 通知分发器
// 按接收人逐一发送并隔离失败：单个接收人失败只记日志，
// 不影响其余接收人，也不影响告警本身的落库状态
type Dispatcher struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewDispatcher 创建分发器
func NewDispatcher(logger *zap.Logger, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers, logger: logger}
}

// Dispatch 向全部接收人发送告警通知，返回逐人结果与聚合错误
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []*models.Firefighter, alert *models.Alert, isEscalation bool) ([]Result, error) {
	results := make([]Result, 0, len(recipients))
	var combined error

	for _, recipient := range recipients {
		err := d.notifyOne(ctx, recipient, alert, isEscalation)
		results = append(results, Result{RecipientID: recipient.FirefighterID, Err: err})
		if err != nil {
			d.logger.Warn("Notification delivery failed",
				zap.String("alert_id", alert.AlertID),
				zap.String("recipient_id", recipient.FirefighterID),
				zap.Error(err),
			)
			combined = multierr.Append(combined, err)
		}
	}

	return results, combined
}

func (d *Dispatcher) notifyOne(ctx context.Context, recipient *models.Firefighter, alert *models.Alert, isEscalation bool) error {
	var combined error
	for _, n := range d.notifiers {
		combined = multierr.Append(combined, n.Notify(ctx, recipient, alert, isEscalation))
	}
	return combined
}
