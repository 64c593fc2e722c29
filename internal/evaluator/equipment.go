package evaluator

import (
	"fmt"

	"firewatch/internal/models"
)

// 装备故障概率模型参数
// 基础风险 1%，按体温/空气质量/心率档位叠加，封顶 15%
const (
	faultBaseRisk     = 0.01
	faultTempCritical = 0.06
	faultTempHigh     = 0.03
	faultAQCritical   = 0.08
	faultAQPoor       = 0.04
	faultExtremeHR    = 0.02
	faultRiskCap      = 0.15
)

// equipmentFaultProbability 根据当前读数计算故障概率
func equipmentFaultProbability(reading *models.SensorReading) float64 {
	risk := faultBaseRisk

	switch {
	case reading.BodyTemperature >= tempCritical:
		risk += faultTempCritical
	case reading.BodyTemperature >= tempHigh:
		risk += faultTempHigh
	}

	aqi := airQualityIndex(reading)
	switch {
	case aqi <= aqiCritical:
		risk += faultAQCritical
	case aqi <= aqiHigh:
		risk += faultAQPoor
	}

	if reading.HeartRate >= hrCriticalAbs {
		risk += faultExtremeHR
	}

	if risk > faultRiskCap {
		risk = faultRiskCap
	}
	return risk
}

// evaluateEquipment 装备故障注入通道
// 概率模型 + 均匀随机抽样；随机源可注入以便测试固定结果
func (e *Evaluator) evaluateEquipment(reading *models.SensorReading) *Candidate {
	probability := equipmentFaultProbability(reading)
	if e.randFloat() >= probability {
		return nil
	}

	return &Candidate{
		Type:     models.AlertSCBAMalfunction,
		Severity: models.SeverityCritical,
		Title:    "SCBA malfunction suspected",
		Message:  fmt.Sprintf("Equipment fault model triggered (risk %.0f%%) - verify air supply", probability*100),
		Trigger: models.TriggerDetail{
			Kind: models.TriggerKindEquipment,
			Equipment: &models.EquipmentTrigger{
				Component:         "scba",
				Probability:       probability,
				RecommendedAction: "Check SCBA pressure and regulator immediately",
			},
		},
	}
}
