package evaluator

import (
	"fmt"

	"firewatch/internal/models"
)

// 心率阈值（bpm / 占年龄预测最大心率百分比）
const (
	hrCriticalAbs = 200.0
	hrCriticalPct = 95.0
	hrHighAbs     = 185.0
	hrHighPct     = 90.0
	hrModerateAbs = 150.0
	hrModeratePct = 80.0
)

// evaluateHeartRate 心率通道评估
// 档位自上而下互斥，阈值命中即消费本通道。类型白名单只由 critical 和
// moderate 两档检查，high 档从不检查白名单——这是既有规则的不一致之处，
// 按原样保留；被白名单拒绝的档位令整个通道静默，不落入下一档。
func (e *Evaluator) evaluateHeartRate(reading *models.SensorReading, ff *models.Firefighter) *Candidate {
	hr := reading.HeartRate
	if hr <= 0 {
		return nil
	}

	maxHR := ff.MaxHeartRate(reading.RecordedAt)
	pct := hr / maxHR * 100

	switch {
	case hr >= hrCriticalAbs || pct >= hrCriticalPct:
		if !reading.AllowsAlertType(models.AlertHeartRateCritical) {
			return nil
		}
		return &Candidate{
			Type:     models.AlertHeartRateCritical,
			Severity: models.SeverityCritical,
			Priority: 10, // 危及生命，固定最高优先级
			Title:    "Critical heart rate",
			Message:  fmt.Sprintf("Heart rate %.0f bpm (%.0f%% of age-predicted max) - immediate rest required", hr, pct),
			Trigger: models.TriggerDetail{
				Kind: models.TriggerKindVital,
				Vital: &models.VitalTrigger{
					Metric:            "heart_rate",
					Value:             hr,
					Threshold:         hrCriticalAbs,
					HRPercent:         &pct,
					RecommendedAction: "Withdraw from operations and begin active cooling",
				},
			},
		}
	case hr >= hrHighAbs || pct >= hrHighPct:
		return &Candidate{
			Type:     models.AlertHeartRateHigh,
			Severity: models.SeverityHigh,
			Title:    "High heart rate",
			Message:  fmt.Sprintf("Heart rate %.0f bpm (%.0f%% of age-predicted max) - rotation recommended", hr, pct),
			Trigger: models.TriggerDetail{
				Kind: models.TriggerKindVital,
				Vital: &models.VitalTrigger{
					Metric:            "heart_rate",
					Value:             hr,
					Threshold:         hrHighAbs,
					HRPercent:         &pct,
					RecommendedAction: "Rotate to rehab at next opportunity",
				},
			},
		}
	case hr >= hrModerateAbs || pct >= hrModeratePct:
		if !reading.AllowsAlertType(models.AlertHeartRateModerate) {
			return nil
		}
		return &Candidate{
			Type:     models.AlertHeartRateModerate,
			Severity: models.SeverityModerate,
			Title:    "Elevated heart rate",
			Message:  fmt.Sprintf("Heart rate %.0f bpm (%.0f%% of age-predicted max)", hr, pct),
			Trigger: models.TriggerDetail{
				Kind: models.TriggerKindVital,
				Vital: &models.VitalTrigger{
					Metric:            "heart_rate",
					Value:             hr,
					Threshold:         hrModerateAbs,
					HRPercent:         &pct,
					RecommendedAction: "Monitor exertion level",
				},
			},
		}
	}

	return nil
}
