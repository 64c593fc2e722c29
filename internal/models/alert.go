package models

import (
	"time"
)

// AlertType 告警类型（封闭枚举，不接受自由扩展）
type AlertType string

const (
	AlertHeartRateCritical   AlertType = "heart_rate_critical"
	AlertHeartRateHigh       AlertType = "heart_rate_high"
	AlertHeartRateModerate   AlertType = "heart_rate_moderate"
	AlertTemperatureCritical AlertType = "temperature_critical"
	AlertTemperatureHigh     AlertType = "temperature_high"
	AlertTemperatureModerate AlertType = "temperature_moderate"
	AlertHelmetOff           AlertType = "helmet_off"
	AlertSevereHeatStress    AlertType = "severe_heat_stress"
	AlertAirQualityCritical  AlertType = "air_quality_critical"
	AlertAirQualityHigh      AlertType = "air_quality_high"
	AlertFallDetected        AlertType = "fall_detected"
	AlertInactivityDetected  AlertType = "inactivity_detected"
	AlertHRVCritical         AlertType = "hrv_critical"
	AlertHRVHigh             AlertType = "hrv_high"
	AlertHRVModerate         AlertType = "hrv_moderate"
	AlertSCBAMalfunction     AlertType = "scba_malfunction"
	AlertHydrationReminder   AlertType = "hydration_reminder"
	AlertManualSOS           AlertType = "manual_sos"
	AlertCommunicationLoss   AlertType = "communication_loss"
	AlertEvacuationOrder     AlertType = "evacuation_order"
)

// DedupWindow 返回该类型的去重时间窗口
// 窗口内同一 (firefighter, type) 的重复候选被抑制，不产生新告警
func (t AlertType) DedupWindow() time.Duration {
	switch t {
	case AlertFallDetected:
		return 15 * time.Second
	case AlertHeartRateCritical, AlertHeartRateHigh, AlertHeartRateModerate,
		AlertTemperatureCritical, AlertTemperatureHigh, AlertTemperatureModerate:
		return 30 * time.Second
	case AlertInactivityDetected:
		return 60 * time.Second
	default:
		return 60 * time.Second
	}
}

// IsMedical 是否为生理/医疗类告警（medic 会被加入通知接收人）
func (t AlertType) IsMedical() bool {
	switch t {
	case AlertHeartRateCritical, AlertHeartRateHigh, AlertHeartRateModerate,
		AlertHRVCritical, AlertHRVHigh, AlertHRVModerate,
		AlertTemperatureCritical, AlertTemperatureHigh, AlertTemperatureModerate,
		AlertSevereHeatStress, AlertHydrationReminder:
		return true
	default:
		return false
	}
}

// Severity 告警严重级别
type Severity string

const (
	SeverityLow       Severity = "low"
	SeverityModerate  Severity = "moderate"
	SeverityHigh      Severity = "high"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

// Priority 返回严重级别到优先级（1-10）的固定映射
func (s Severity) Priority() int {
	switch s {
	case SeverityEmergency:
		return 10
	case SeverityCritical:
		return 9
	case SeverityHigh:
		return 7
	case SeverityModerate:
		return 5
	case SeverityLow:
		return 3
	default:
		return 5
	}
}

// EscalationDeadline 返回该级别告警在自动升级前允许的未确认时长
func (s Severity) EscalationDeadline() time.Duration {
	switch s {
	case SeverityEmergency, SeverityCritical:
		return 2 * time.Minute
	case SeverityHigh:
		return 5 * time.Minute
	case SeverityModerate:
		return 15 * time.Minute
	default:
		return 30 * time.Minute
	}
}

// Status 告警生命周期状态
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
	StatusDismissed    Status = "dismissed"
	StatusEscalated    Status = "escalated"
)

// IsTerminal 终态判断（resolved/dismissed 不允许任何后续状态转换）
func (st Status) IsTerminal() bool {
	return st == StatusResolved || st == StatusDismissed
}

// MaxEscalationLevel 最高升级级别
const MaxEscalationLevel = 5

// EmergencyPromotionLevel 达到该升级级别时强制提升为 emergency 并调高优先级
const EmergencyPromotionLevel = 3

// Alert 告警记录（对应 alerts 表）
type Alert struct {
	AlertID            string        `json:"alert_id" db:"alert_id"`
	FirefighterID      string        `json:"firefighter_id" db:"firefighter_id"`
	Type               AlertType     `json:"alert_type" db:"alert_type"`
	Severity           Severity      `json:"severity" db:"severity"`
	Priority           int           `json:"priority" db:"priority"`
	Status             Status        `json:"status" db:"status"`
	Title              string        `json:"title" db:"title"`
	Message            string        `json:"message" db:"message"`
	TriggeredAt        time.Time     `json:"triggered_at" db:"triggered_at"`
	AcknowledgedAt     *time.Time    `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	ResolvedAt         *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	EscalatedAt        *time.Time    `json:"escalated_at,omitempty" db:"escalated_at"`
	EscalationLevel    int           `json:"escalation_level" db:"escalation_level"`
	AutoEscalated      bool          `json:"auto_escalated" db:"auto_escalated"`
	EscalationDeadline *time.Time    `json:"escalation_deadline,omitempty" db:"escalation_deadline"`
	Trigger            TriggerDetail `json:"trigger" db:"trigger_data"`
	AcknowledgedBy     *string       `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	ResolvedBy         *string       `json:"resolved_by,omitempty" db:"resolved_by"`
	Outcome            *string       `json:"outcome,omitempty" db:"outcome"`
	Notes              *string       `json:"notes,omitempty" db:"notes"`
	ResponseTimeSec    *int64        `json:"response_time_sec,omitempty" db:"response_time_sec"`
	ResolutionTimeSec  *int64        `json:"resolution_time_sec,omitempty" db:"resolution_time_sec"`
	NotifiedUsers      string        `json:"notified_users" db:"notified_users"` // JSONB array of personnel ids
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}
