package evaluator

import (
	"fmt"
	"math"

	"firewatch/internal/models"
)

// 运动幅值阈值（单位 g）
const (
	movementFall       = 20.0
	movementInactivity = 0.8
)

// movementMagnitude 计算合加速度；无三轴数据时回退到标量，两者都缺为 0
func movementMagnitude(reading *models.SensorReading) float64 {
	if m := reading.Movement; m != nil {
		return math.Sqrt(m.X*m.X + m.Y*m.Y + m.Z*m.Z)
	}
	if reading.MovementScalar != nil {
		return *reading.MovementScalar
	}
	return 0
}

// evaluateMovement 运动通道评估
// 幅值 >20g 判定跌倒；0<幅值<0.8g 判定静止；0 表示无数据，不告警
func (e *Evaluator) evaluateMovement(reading *models.SensorReading) *Candidate {
	magnitude := movementMagnitude(reading)

	switch {
	case magnitude > movementFall:
		return &Candidate{
			Type:     models.AlertFallDetected,
			Severity: models.SeverityCritical,
			Title:    "Fall detected",
			Message:  fmt.Sprintf("Impact of %.1fg detected - possible fall", magnitude),
			Trigger: models.TriggerDetail{
				Kind: models.TriggerKindMovement,
				Movement: &models.MovementTrigger{
					Magnitude:         magnitude,
					Threshold:         movementFall,
					RecommendedAction: "Contact firefighter and dispatch RIT if unresponsive",
				},
			},
		}
	case magnitude > 0 && magnitude < movementInactivity:
		return &Candidate{
			Type:     models.AlertInactivityDetected,
			Severity: models.SeverityHigh,
			Title:    "Inactivity detected",
			Message:  fmt.Sprintf("Movement magnitude %.2fg - firefighter may be down", magnitude),
			Trigger: models.TriggerDetail{
				Kind: models.TriggerKindMovement,
				Movement: &models.MovementTrigger{
					Magnitude:         magnitude,
					Threshold:         movementInactivity,
					RecommendedAction: "Radio check and verify firefighter status",
				},
			},
		}
	}

	return nil
}
