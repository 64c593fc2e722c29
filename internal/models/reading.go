package models

import "time"

// AirQualityLevel 空气质量分类枚举
type AirQualityLevel string

const (
	AirQualityGood      AirQualityLevel = "good"
	AirQualityModerate  AirQualityLevel = "moderate"
	AirQualityPoor      AirQualityLevel = "poor"
	AirQualityHazardous AirQualityLevel = "hazardous"
)

// Index 将分类值换算为 0-100 数值（无数值覆盖时使用）
func (l AirQualityLevel) Index() float64 {
	switch l {
	case AirQualityHazardous:
		return 20
	case AirQualityPoor:
		return 40
	case AirQualityModerate:
		return 65
	default:
		return 100
	}
}

// Acceleration 三轴加速度（单位 g）
type Acceleration struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HRVMetrics 心率变异性指标（可选）
type HRVMetrics struct {
	RMSSD *float64 `json:"rmssd,omitempty"`
	LFHF  *float64 `json:"lf_hf,omitempty"`
}

// ReadingMetadata 读数附加元数据（场景、类型白名单、场景预置的补水提醒时间）
type ReadingMetadata struct {
	Scenario              string      `json:"scenario,omitempty"`
	AllowedAlertTypes     []AlertType `json:"allowed_alert_types,omitempty"`
	LastHydrationReminder *time.Time  `json:"last_hydration_reminder,omitempty"`
}

// SensorReading 一次传感器读数（由采集边界校验后投递）
type SensorReading struct {
	FirefighterID   string           `json:"firefighter_id"`
	HeartRate       float64          `json:"heart_rate"`        // bpm
	BodyTemperature float64          `json:"body_temperature"`  // °C
	AirQuality      AirQualityLevel  `json:"air_quality"`       // 分类值
	AirQualityIndex *float64         `json:"air_quality_index,omitempty"` // 0-100 数值覆盖
	Movement        *Acceleration    `json:"movement,omitempty"`
	MovementScalar  *float64         `json:"movement_scalar,omitempty"` // 无三轴数据时的标量回退
	HRV             *HRVMetrics      `json:"hrv,omitempty"`
	Metadata        *ReadingMetadata `json:"metadata,omitempty"`
	RecordedAt      time.Time        `json:"recorded_at"`
}

// AllowsAlertType 检查类型白名单；白名单为空表示不限制
func (r *SensorReading) AllowsAlertType(t AlertType) bool {
	if r.Metadata == nil || len(r.Metadata.AllowedAlertTypes) == 0 {
		return true
	}
	for _, allowed := range r.Metadata.AllowedAlertTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// Scenario 返回读数所属的作业场景（可能为空）
func (r *SensorReading) Scenario() string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata.Scenario
}
