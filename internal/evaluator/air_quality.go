package evaluator

import (
	"fmt"

	"firewatch/internal/models"
)

// 空气质量指数阈值（0-100，数值越低越差）
const (
	aqiCritical = 25.0
	aqiHigh     = 50.0
)

// airQualityIndex 取数值覆盖，否则由分类枚举换算
func airQualityIndex(reading *models.SensorReading) float64 {
	if reading.AirQualityIndex != nil {
		return *reading.AirQualityIndex
	}
	return reading.AirQuality.Index()
}

// evaluateAirQuality 空气质量通道评估
func (e *Evaluator) evaluateAirQuality(reading *models.SensorReading) *Candidate {
	aqi := airQualityIndex(reading)

	switch {
	case aqi <= aqiCritical:
		return &Candidate{
			Type:     models.AlertAirQualityCritical,
			Severity: models.SeverityCritical,
			Title:    "Hazardous air quality",
			Message:  fmt.Sprintf("Air quality index %.0f - respiratory hazard", aqi),
			Trigger: models.TriggerDetail{
				Kind: models.TriggerKindEnvironment,
				Environment: &models.EnvironmentTrigger{
					AirQualityIndex:   aqi,
					Threshold:         aqiCritical,
					RecommendedAction: "Verify SCBA seal and consider withdrawal",
				},
			},
		}
	case aqi <= aqiHigh:
		return &Candidate{
			Type:     models.AlertAirQualityHigh,
			Severity: models.SeverityHigh,
			Title:    "Poor air quality",
			Message:  fmt.Sprintf("Air quality index %.0f - degraded atmosphere", aqi),
			Trigger: models.TriggerDetail{
				Kind: models.TriggerKindEnvironment,
				Environment: &models.EnvironmentTrigger{
					AirQualityIndex:   aqi,
					Threshold:         aqiHigh,
					RecommendedAction: "Check air supply and limit exposure time",
				},
			},
		}
	}

	return nil
}
