package evaluator

import (
	"fmt"

	"firewatch/internal/models"
)

// 体温阈值（°C）
const (
	tempCritical = 39.0
	tempHigh     = 38.5
	tempModerate = 38.0

	// 相对基线 37.0°C 的温差阈值，与绝对档位相互独立
	tempBaseline       = 37.0
	tempDeltaHelmetOff = -8.3 // 传感器暴露于环境温度，判定头盔脱落
	tempDeltaSevereHeat = 3.9
)

// evaluateTemperature 体温通道评估
// 绝对档位自上而下互斥；温差档位（helmet_off / severe_heat_stress）独立判定，
// 可与绝对档位在同一读数上共存。37.5–37.9°C 属正常区间，不告警。
func (e *Evaluator) evaluateTemperature(reading *models.SensorReading) []Candidate {
	temp := reading.BodyTemperature
	if temp <= 0 {
		return nil
	}

	var candidates []Candidate

	switch {
	case temp >= tempCritical:
		candidates = append(candidates, Candidate{
			Type:     models.AlertTemperatureCritical,
			Severity: models.SeverityCritical,
			Title:    "Critical core temperature",
			Message:  fmt.Sprintf("Core temperature %.1f°C - heat emergency protocol", temp),
			Trigger:  vitalTempTrigger(temp, tempCritical, "Immediate withdrawal and active cooling"),
		})
	case temp >= tempHigh:
		candidates = append(candidates, Candidate{
			Type:     models.AlertTemperatureHigh,
			Severity: models.SeverityHigh,
			Title:    "High core temperature",
			Message:  fmt.Sprintf("Core temperature %.1f°C - cooling required", temp),
			Trigger:  vitalTempTrigger(temp, tempHigh, "Move to rehab and begin cooling"),
		})
	case temp >= tempModerate && moderateTempScenarios[reading.Scenario()]:
		candidates = append(candidates, Candidate{
			Type:     models.AlertTemperatureModerate,
			Severity: models.SeverityModerate,
			Title:    "Elevated core temperature",
			Message:  fmt.Sprintf("Core temperature %.1f°C during %s", temp, reading.Scenario()),
			Trigger:  vitalTempTrigger(temp, tempModerate, "Increase hydration and monitor"),
		})
	}

	delta := temp - tempBaseline
	if delta <= tempDeltaHelmetOff {
		candidates = append(candidates, Candidate{
			Type:     models.AlertHelmetOff,
			Severity: models.SeverityCritical,
			Title:    "Helmet off detected",
			Message:  fmt.Sprintf("Temperature sensor reads %.1f°C below baseline - helmet likely removed", -delta),
			Trigger:  vitalDeltaTrigger(delta, tempDeltaHelmetOff, "Verify firefighter status immediately"),
		})
	}
	if delta >= tempDeltaSevereHeat {
		candidates = append(candidates, Candidate{
			Type:     models.AlertSevereHeatStress,
			Severity: models.SeverityCritical,
			Title:    "Severe heat stress",
			Message:  fmt.Sprintf("Temperature %.1f°C above baseline - severe heat stress", delta),
			Trigger:  vitalDeltaTrigger(delta, tempDeltaSevereHeat, "Heat emergency protocol"),
		})
	}

	return candidates
}

func vitalTempTrigger(value, threshold float64, action string) models.TriggerDetail {
	return models.TriggerDetail{
		Kind: models.TriggerKindVital,
		Vital: &models.VitalTrigger{
			Metric:            "body_temperature",
			Value:             value,
			Threshold:         threshold,
			RecommendedAction: action,
		},
	}
}

func vitalDeltaTrigger(delta, threshold float64, action string) models.TriggerDetail {
	return models.TriggerDetail{
		Kind: models.TriggerKindVital,
		Vital: &models.VitalTrigger{
			Metric:            "temperature_delta",
			Value:             delta,
			Threshold:         threshold,
			RecommendedAction: action,
		},
	}
}
