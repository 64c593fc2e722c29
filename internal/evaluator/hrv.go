package evaluator

import (
	"fmt"

	"firewatch/internal/models"
)

// HRV 阈值（RMSSD 单位 ms；LF/HF 为功率比值）
// 每档位内两项指标为 OR 逻辑，任一命中即判定该档
const (
	rmssdCritical = 10.0
	rmssdHigh     = 15.0
	rmssdModerate = 20.0
	lfhfCritical  = 8.0
	lfhfHigh      = 6.0
	lfhfModerate  = 4.0
)

// evaluateHRV 心率变异性通道评估（可选指标，缺失时跳过）
func (e *Evaluator) evaluateHRV(reading *models.SensorReading) *Candidate {
	hrv := reading.HRV
	if hrv == nil {
		return nil
	}

	rmssdBelow := func(threshold float64) bool {
		return hrv.RMSSD != nil && *hrv.RMSSD < threshold
	}
	lfhfAbove := func(threshold float64) bool {
		return hrv.LFHF != nil && *hrv.LFHF > threshold
	}

	switch {
	case rmssdBelow(rmssdCritical) || lfhfAbove(lfhfCritical):
		return &Candidate{
			Type:     models.AlertHRVCritical,
			Severity: models.SeverityCritical,
			Title:    "Critical autonomic stress",
			Message:  hrvMessage(hrv, "severe autonomic stress"),
			Trigger:  hrvTrigger(hrv, rmssdCritical, "Withdraw from operations immediately"),
		}
	case rmssdBelow(rmssdHigh) || lfhfAbove(lfhfHigh):
		return &Candidate{
			Type:     models.AlertHRVHigh,
			Severity: models.SeverityHigh,
			Title:    "High autonomic stress",
			Message:  hrvMessage(hrv, "elevated autonomic stress"),
			Trigger:  hrvTrigger(hrv, rmssdHigh, "Rotate to rehab and reassess"),
		}
	case rmssdBelow(rmssdModerate) || lfhfAbove(lfhfModerate):
		return &Candidate{
			Type:     models.AlertHRVModerate,
			Severity: models.SeverityModerate,
			Title:    "Moderate autonomic stress",
			Message:  hrvMessage(hrv, "early autonomic stress"),
			Trigger:  hrvTrigger(hrv, rmssdModerate, "Monitor stress indicators"),
		}
	}

	return nil
}

func hrvMessage(hrv *models.HRVMetrics, label string) string {
	switch {
	case hrv.RMSSD != nil && hrv.LFHF != nil:
		return fmt.Sprintf("HRV indicates %s (RMSSD %.1fms, LF/HF %.1f)", label, *hrv.RMSSD, *hrv.LFHF)
	case hrv.RMSSD != nil:
		return fmt.Sprintf("HRV indicates %s (RMSSD %.1fms)", label, *hrv.RMSSD)
	case hrv.LFHF != nil:
		return fmt.Sprintf("HRV indicates %s (LF/HF %.1f)", label, *hrv.LFHF)
	default:
		return fmt.Sprintf("HRV indicates %s", label)
	}
}

func hrvTrigger(hrv *models.HRVMetrics, threshold float64, action string) models.TriggerDetail {
	value := 0.0
	if hrv.RMSSD != nil {
		value = *hrv.RMSSD
	}
	return models.TriggerDetail{
		Kind: models.TriggerKindVital,
		Vital: &models.VitalTrigger{
			Metric:            "rmssd",
			Value:             value,
			Threshold:         threshold,
			RecommendedAction: action,
		},
	}
}
