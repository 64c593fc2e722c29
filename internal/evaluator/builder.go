package evaluator

import (
	"time"

	"firewatch/internal/models"

	"github.com/google/uuid"
)

// BuildAlert 将候选转换为待落库的告警记录
// 候选未显式指定优先级时按严重级别推导；升级截止时间随记录持久化，
// 进程重启后可据此恢复未触发的自动升级
func BuildAlert(c Candidate, firefighterID string, triggeredAt time.Time) *models.Alert {
	priority := c.Priority
	if priority == 0 {
		priority = c.Severity.Priority()
	}

	deadline := triggeredAt.Add(c.Severity.EscalationDeadline())

	return &models.Alert{
		AlertID:            uuid.New().String(),
		FirefighterID:      firefighterID,
		Type:               c.Type,
		Severity:           c.Severity,
		Priority:           priority,
		Status:             models.StatusActive,
		Title:              c.Title,
		Message:            c.Message,
		TriggeredAt:        triggeredAt,
		EscalationLevel:    0,
		EscalationDeadline: &deadline,
		Trigger:            c.Trigger,
		NotifiedUsers:      "[]",
		CreatedAt:          triggeredAt,
		UpdatedAt:          triggeredAt,
	}
}
