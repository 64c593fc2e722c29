package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"firewatch/internal/models"

	"go.uber.org/zap"
)

// Publisher MQTT 发布接口（platform.MQTTClient 实现）
type Publisher interface {
	Publish(topic string, payload []byte) error
	IsConnected() bool
}

// MQTTNotifier 经 MQTT 下发通知
// 主题按接收人划分：firewatch/notify/<firefighter_id>，
// 车载终端与移动端各自订阅自己的主题
type MQTTNotifier struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewMQTTNotifier 创建 MQTT 通知器
func NewMQTTNotifier(publisher Publisher, logger *zap.Logger) *MQTTNotifier {
	return &MQTTNotifier{publisher: publisher, logger: logger}
}

// mqttNotification MQTT 下发的通知载荷
type mqttNotification struct {
	AlertID       string           `json:"alert_id"`
	FirefighterID string           `json:"firefighter_id"`
	Type          models.AlertType `json:"alert_type"`
	Severity      models.Severity  `json:"severity"`
	Priority      int              `json:"priority"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	IsEscalation  bool             `json:"is_escalation"`
}

// Notify 向单个接收人的主题发布告警
func (n *MQTTNotifier) Notify(_ context.Context, recipient *models.Firefighter, alert *models.Alert, isEscalation bool) error {
	if !n.publisher.IsConnected() {
		return fmt.Errorf("mqtt broker not connected")
	}

	payload, err := json.Marshal(mqttNotification{
		AlertID:       alert.AlertID,
		FirefighterID: alert.FirefighterID,
		Type:          alert.Type,
		Severity:      alert.Severity,
		Priority:      alert.Priority,
		Title:         alert.Title,
		Message:       alert.Message,
		IsEscalation:  isEscalation,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	topic := "firewatch/notify/" + recipient.FirefighterID
	if err := n.publisher.Publish(topic, payload); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
