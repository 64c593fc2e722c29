package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"firewatch/internal/models"
	"firewatch/internal/notifier"
	"firewatch/internal/store"
	"firewatch/internal/ws"

	"go.uber.org/zap"
)

// AlertStore 告警仓储接口（Postgres 实现见 store.AlertRepository）
type AlertStore interface {
	GetAlert(ctx context.Context, alertID string) (*models.Alert, error)
	CreateAlert(ctx context.Context, alert *models.Alert) error
	UpdateAlert(ctx context.Context, alertID string, updates map[string]interface{}) error
	ListAlerts(ctx context.Context, filters store.AlertFilters, page, size int) ([]*models.Alert, int, error)
	GetRecentActiveAlert(ctx context.Context, firefighterID string, alertType models.AlertType, window time.Duration) (*models.Alert, error)
	ListPendingEscalations(ctx context.Context) ([]*models.Alert, error)
	AcknowledgeAlert(ctx context.Context, alertID, by string, notes *string, now time.Time) error
	ResolveAlert(ctx context.Context, alertID, by, outcome string, notes *string, now time.Time) error
	DismissAlert(ctx context.Context, alertID, by, reason string) error
	EscalateAlert(ctx context.Context, alertID string, level int, severity models.Severity, priority int, auto bool, notes *string, now time.Time) error
	BulkAcknowledgeAlerts(ctx context.Context, alertIDs []string, by string, now time.Time) (int, error)
}

// Directory 人员目录接口
type Directory interface {
	GetFirefighter(ctx context.Context, firefighterID string) (*models.Firefighter, error)
}

// Scheduler 升级调度接口（escalation.Scheduler 实现）
type Scheduler interface {
	Schedule(alertID string, deadline time.Time, callback func()) error
	Cancel(alertID string) bool
}

// Broadcaster 实时推送接口（ws.Hub 实现）
type Broadcaster interface {
	Publish(event string, data interface{}, topics ...string)
}

// RecipientResolver 通知接收人解析接口
type RecipientResolver interface {
	Resolve(ctx context.Context, alert *models.Alert, subject *models.Firefighter) []*models.Firefighter
	ResolveEscalation(ctx context.Context, alert *models.Alert, subject *models.Firefighter) []*models.Firefighter
}

// NotificationDispatcher 通知分发接口
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, recipients []*models.Firefighter, alert *models.Alert, isEscalation bool) ([]notifier.Result, error)
}

// AlertService 告警生命周期服务层
// 职责：
// 1. 生命周期状态转换（acknowledge/resolve/dismiss/escalate/bulk-acknowledge）
// 2. 升级规则（级别只增不减，达到阈值后强制提升为 emergency）
// 3. 调度器联动（退出 active 时取消待触发的自动升级）
// 4. 实时推送（向 broadcast/personal/monitor 主题广播状态变化）
type AlertService struct {
	alerts    AlertStore
	personnel Directory
	scheduler Scheduler
	hub       Broadcaster
	resolver  RecipientResolver
	notify    NotificationDispatcher
	logger    *zap.Logger
}

// NewAlertService 创建告警服务
func NewAlertService(
	alerts AlertStore,
	personnel Directory,
	scheduler Scheduler,
	hub Broadcaster,
	resolver RecipientResolver,
	notify NotificationDispatcher,
	logger *zap.Logger,
) *AlertService {
	return &AlertService{
		alerts:    alerts,
		personnel: personnel,
		scheduler: scheduler,
		hub:       hub,
		resolver:  resolver,
		notify:    notify,
		logger:    logger,
	}
}

// ============================================
// 查询相关方法
// ============================================

// GetAlert 获取单个告警
func (s *AlertService) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	if alertID == "" {
		return nil, fmt.Errorf("%w: alert_id is required", store.ErrValidation)
	}
	return s.alerts.GetAlert(ctx, alertID)
}

// ListAlerts 查询告警列表（多条件过滤 + 分页）
func (s *AlertService) ListAlerts(ctx context.Context, filters store.AlertFilters, page, size int) ([]*models.Alert, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return s.alerts.ListAlerts(ctx, filters, page, size)
}

// ============================================
// 生命周期操作
// ============================================

// Acknowledge 确认告警：active → acknowledged
// 记录响应耗时并取消待触发的自动升级
func (s *AlertService) Acknowledge(ctx context.Context, alertID, by string, notes *string) (*models.Alert, error) {
	now := time.Now()
	if err := s.alerts.AcknowledgeAlert(ctx, alertID, by, notes, now); err != nil {
		return nil, err
	}

	s.scheduler.Cancel(alertID)

	alert, err := s.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Alert acknowledged",
		zap.String("alert_id", alertID),
		zap.String("acknowledged_by", by),
	)
	s.publishLifecycle(ws.EventAlertAcknowledged, alert)

	return alert, nil
}

// Resolve 解决告警：active/acknowledged/escalated → resolved（终态）
func (s *AlertService) Resolve(ctx context.Context, alertID, by, outcome string, notes *string) (*models.Alert, error) {
	now := time.Now()
	if err := s.alerts.ResolveAlert(ctx, alertID, by, outcome, notes, now); err != nil {
		return nil, err
	}

	s.scheduler.Cancel(alertID)

	alert, err := s.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Alert resolved",
		zap.String("alert_id", alertID),
		zap.String("resolved_by", by),
		zap.String("outcome", outcome),
	)
	s.publishLifecycle(ws.EventAlertResolved, alert)

	return alert, nil
}

// Dismiss 驳回告警：active → dismissed（终态，"无需处理"）
func (s *AlertService) Dismiss(ctx context.Context, alertID, by, reason string) (*models.Alert, error) {
	if err := s.alerts.DismissAlert(ctx, alertID, by, reason); err != nil {
		return nil, err
	}

	s.scheduler.Cancel(alertID)

	alert, err := s.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Alert dismissed",
		zap.String("alert_id", alertID),
		zap.String("dismissed_by", by),
	)
	s.publishLifecycle(ws.EventAlertDismissed, alert)

	return alert, nil
}

// Escalate 手动升级告警
// 级别 +1（上限 MaxEscalationLevel）；达到 EmergencyPromotionLevel 后
// 严重级别强制提升为 emergency，优先级提高 2（上限 10）
func (s *AlertService) Escalate(ctx context.Context, alertID, by string, notes *string) (*models.Alert, error) {
	alert, err := s.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: alert_id=%s status=%s", store.ErrNotActive, alertID, alert.Status)
	}
	if alert.EscalationLevel >= models.MaxEscalationLevel {
		return nil, fmt.Errorf("%w: alert already at max escalation level", store.ErrValidation)
	}

	newLevel := alert.EscalationLevel + 1
	severity, priority := escalatedSeverity(alert, newLevel)

	now := time.Now()
	if err := s.alerts.EscalateAlert(ctx, alertID, newLevel, severity, priority, false, notes, now); err != nil {
		return nil, err
	}

	s.scheduler.Cancel(alertID)

	updated, err := s.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Alert escalated",
		zap.String("alert_id", alertID),
		zap.String("escalated_by", by),
		zap.Int("escalation_level", newLevel),
		zap.String("severity", string(severity)),
	)
	s.publishLifecycle(ws.EventAlertEscalated, updated)

	return updated, nil
}

// BulkAcknowledge 批量确认
// 仅转换当前为 active 的告警，返回实际转换数量
func (s *AlertService) BulkAcknowledge(ctx context.Context, alertIDs []string, by string) (int, error) {
	if len(alertIDs) == 0 {
		return 0, nil
	}

	now := time.Now()
	count, err := s.alerts.BulkAcknowledgeAlerts(ctx, alertIDs, by, now)
	if err != nil {
		return 0, err
	}

	for _, id := range alertIDs {
		s.scheduler.Cancel(id)
	}

	s.logger.Info("Bulk acknowledged alerts",
		zap.Int("requested", len(alertIDs)),
		zap.Int("acknowledged", count),
		zap.String("acknowledged_by", by),
	)
	s.hub.Publish(ws.EventBulkAcknowledged, map[string]interface{}{
		"alert_ids":       alertIDs,
		"acknowledged":    count,
		"acknowledged_by": by,
	}, ws.TopicBroadcast)

	return count, nil
}

// AutoEscalate 自动升级（调度器回调）
// 仅对仍处于 active 且未自动升级过的告警生效，只触发一次；
// 升级后向扩大的接收人集合重新发送通知
func (s *AlertService) AutoEscalate(ctx context.Context, alertID string) {
	alert, err := s.alerts.GetAlert(ctx, alertID)
	if err != nil {
		s.logger.Warn("Auto-escalation lookup failed",
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
		return
	}
	if alert.Status != models.StatusActive || alert.AutoEscalated {
		// 已确认/已终态/已自动升级过：过期的调度回调，忽略
		return
	}

	newLevel := alert.EscalationLevel + 1
	severity, priority := escalatedSeverity(alert, newLevel)

	now := time.Now()
	if err := s.alerts.EscalateAlert(ctx, alertID, newLevel, severity, priority, true, nil, now); err != nil {
		s.logger.Error("Auto-escalation failed",
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
		return
	}

	updated, err := s.alerts.GetAlert(ctx, alertID)
	if err != nil {
		s.logger.Error("Failed to reload escalated alert",
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
		return
	}

	s.logger.Warn("Alert auto-escalated",
		zap.String("alert_id", alertID),
		zap.String("firefighter_id", updated.FirefighterID),
		zap.Int("escalation_level", newLevel),
		zap.String("severity", string(severity)),
	)
	s.publishLifecycle(ws.EventAlertEscalated, updated)

	subject, err := s.personnel.GetFirefighter(ctx, updated.FirefighterID)
	if err != nil {
		s.logger.Warn("Failed to resolve subject for escalation notification",
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
		return
	}

	recipients := s.resolver.ResolveEscalation(ctx, updated, subject)
	results, _ := s.notify.Dispatch(ctx, recipients, updated, true)
	s.recordNotifiedUsers(ctx, updated, results)
}

// ============================================
// 内部方法
// ============================================

// escalatedSeverity 计算升级后的严重级别与优先级
// 优先级随级别单调不减；达到 EmergencyPromotionLevel 后提升为 emergency
func escalatedSeverity(alert *models.Alert, newLevel int) (models.Severity, int) {
	severity := alert.Severity
	priority := alert.Priority

	if newLevel >= models.EmergencyPromotionLevel {
		severity = models.SeverityEmergency
		if p := alert.Priority + 2; p < 10 {
			priority = p
		} else {
			priority = 10
		}
	}
	return severity, priority
}

// publishLifecycle 向 broadcast、队员个人和监护主题广播状态变化
func (s *AlertService) publishLifecycle(event string, alert *models.Alert) {
	s.hub.Publish(event, alert,
		ws.TopicBroadcast,
		ws.TopicPersonal(alert.FirefighterID),
		ws.TopicMonitor(alert.FirefighterID),
	)
}

// recordNotifiedUsers 将成功送达的接收人写回告警记录
func (s *AlertService) recordNotifiedUsers(ctx context.Context, alert *models.Alert, results []notifier.Result) {
	notified := make([]string, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			notified = append(notified, r.RecipientID)
		}
	}
	if len(notified) == 0 {
		return
	}

	payload, err := json.Marshal(notified)
	if err != nil {
		return
	}
	if err := s.alerts.UpdateAlert(ctx, alert.AlertID, map[string]interface{}{
		"notified_users": string(payload),
	}); err != nil {
		s.logger.Warn("Failed to record notified users",
			zap.String("alert_id", alert.AlertID),
			zap.Error(err),
		)
	}
}
