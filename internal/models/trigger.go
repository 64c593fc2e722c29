package models

// TriggerDetail 触发数据（JSONB 结构，按类型打标签的变体）
// kind 决定哪一个载荷字段非空，每种载荷只携带该类阈值用到的字段
type TriggerDetail struct {
	Kind        TriggerKind         `json:"kind"`
	Vital       *VitalTrigger       `json:"vital,omitempty"`
	Environment *EnvironmentTrigger `json:"environment,omitempty"`
	Movement    *MovementTrigger    `json:"movement,omitempty"`
	Equipment   *EquipmentTrigger   `json:"equipment,omitempty"`
	Hydration   *HydrationTrigger   `json:"hydration,omitempty"`
}

// TriggerKind 触发数据变体类型
type TriggerKind string

const (
	TriggerKindVital       TriggerKind = "vital"
	TriggerKindEnvironment TriggerKind = "environment"
	TriggerKindMovement    TriggerKind = "movement"
	TriggerKindEquipment   TriggerKind = "equipment"
	TriggerKindHydration   TriggerKind = "hydration"
)

// VitalTrigger 生理指标触发（心率、体温、HRV）
type VitalTrigger struct {
	Metric            string   `json:"metric"` // heart_rate, body_temperature, temperature_delta, rmssd, lf_hf
	Value             float64  `json:"value"`
	Threshold         float64  `json:"threshold"`
	HRPercent         *float64 `json:"hr_percent,omitempty"` // 心率占年龄预测最大心率的百分比
	RecommendedAction string   `json:"recommended_action"`
}

// EnvironmentTrigger 环境指标触发（空气质量）
type EnvironmentTrigger struct {
	AirQualityIndex   float64 `json:"air_quality_index"`
	Threshold         float64 `json:"threshold"`
	RecommendedAction string  `json:"recommended_action"`
}

// MovementTrigger 运动指标触发（跌倒、静止）
type MovementTrigger struct {
	Magnitude         float64 `json:"magnitude"`
	Threshold         float64 `json:"threshold"`
	RecommendedAction string  `json:"recommended_action"`
}

// EquipmentTrigger 装备故障触发（概率模型）
type EquipmentTrigger struct {
	Component         string  `json:"component"`
	Probability       float64 `json:"probability"`
	RecommendedAction string  `json:"recommended_action"`
}

// HydrationTrigger 补水提醒触发
type HydrationTrigger struct {
	BodyTemperature   float64 `json:"body_temperature"`
	HeartRate         float64 `json:"heart_rate"`
	IntervalMinutes   int     `json:"interval_minutes"`
	RecommendedAction string  `json:"recommended_action"`
}
