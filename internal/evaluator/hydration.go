package evaluator

import (
	"context"
	"fmt"
	"time"

	"firewatch/internal/models"

	"go.uber.org/zap"
)

// 补水提醒触发条件与频率
const (
	hydrationTempThreshold = 38.0
	hydrationHRThreshold   = 150.0
	hydrationInterval      = 15 * time.Minute
)

// evaluateHydration 补水提醒通道
// 体温 ≥38.0°C 或心率 ≥150 时触发，每名队员 15 分钟内至多一次，
// 仅适用于高消耗/高热场景；上次提醒时间优先取读数元数据，否则查状态存储
func (e *Evaluator) evaluateHydration(ctx context.Context, reading *models.SensorReading) *Candidate {
	if reading.BodyTemperature < hydrationTempThreshold && reading.HeartRate < hydrationHRThreshold {
		return nil
	}
	if !hydrationScenarios[reading.Scenario()] {
		return nil
	}

	now := reading.RecordedAt
	last := e.lastReminder(ctx, reading)
	if last != nil && now.Sub(*last) < hydrationInterval {
		return nil
	}

	if err := e.hydration.MarkHydrationReminded(ctx, reading.FirefighterID, now, hydrationInterval); err != nil {
		e.logger.Warn("Failed to record hydration reminder time",
			zap.String("firefighter_id", reading.FirefighterID),
			zap.Error(err),
		)
	}

	return &Candidate{
		Type:     models.AlertHydrationReminder,
		Severity: models.SeverityLow,
		Title:    "Hydration reminder",
		Message:  fmt.Sprintf("Sustained exertion during %s - hydration recommended", reading.Scenario()),
		Trigger: models.TriggerDetail{
			Kind: models.TriggerKindHydration,
			Hydration: &models.HydrationTrigger{
				BodyTemperature:   reading.BodyTemperature,
				HeartRate:         reading.HeartRate,
				IntervalMinutes:   int(hydrationInterval.Minutes()),
				RecommendedAction: "Drink 250ml of water or electrolyte solution",
			},
		},
	}
}

func (e *Evaluator) lastReminder(ctx context.Context, reading *models.SensorReading) *time.Time {
	if reading.Metadata != nil && reading.Metadata.LastHydrationReminder != nil {
		return reading.Metadata.LastHydrationReminder
	}
	last, err := e.hydration.LastHydrationReminder(ctx, reading.FirefighterID)
	if err != nil {
		e.logger.Warn("Failed to look up hydration reminder state",
			zap.String("firefighter_id", reading.FirefighterID),
			zap.Error(err),
		)
		return nil
	}
	return last
}
