package evaluator

import (
	"context"
	"math/rand"
	"time"

	"firewatch/internal/models"

	"go.uber.org/zap"
)

// Candidate 告警候选（阈值命中但尚未经过去重/落库）
type Candidate struct {
	Type     models.AlertType
	Severity models.Severity
	Priority int // 0 表示落库时按严重级别推导
	Title    string
	Message  string
	Trigger  models.TriggerDetail
}

// HydrationState 补水提醒状态访问接口（Redis 实现见 consumer.StateManager）
type HydrationState interface {
	LastHydrationReminder(ctx context.Context, firefighterID string) (*time.Time, error)
	MarkHydrationReminded(ctx context.Context, firefighterID string, at time.Time, interval time.Duration) error
}

// Evaluator 阈值评估器
// 将一次读数 + 人员基线映射为零个或多个告警候选；除补水状态外无副作用
type Evaluator struct {
	hydration HydrationState
	randFloat func() float64 // 装备故障注入的随机源（测试中可固定）
	logger    *zap.Logger
}

// NewEvaluator 创建评估器（生产环境使用未播种的 math/rand）
func NewEvaluator(hydration HydrationState, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		hydration: hydration,
		randFloat: rand.Float64,
		logger:    logger,
	}
}

// NewEvaluatorWithRand 创建评估器并注入随机源（测试用）
func NewEvaluatorWithRand(hydration HydrationState, randFloat func() float64, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		hydration: hydration,
		randFloat: randFloat,
		logger:    logger,
	}
}

// Evaluate 评估一次读数，返回有序候选列表（可能为空）
// 各通道相互独立；同一通道内档位自上而下互斥，先命中者生效
func (e *Evaluator) Evaluate(ctx context.Context, reading *models.SensorReading, ff *models.Firefighter) []Candidate {
	var candidates []Candidate

	if c := e.evaluateHeartRate(reading, ff); c != nil {
		candidates = append(candidates, *c)
	}
	candidates = append(candidates, e.evaluateTemperature(reading)...)
	if c := e.evaluateAirQuality(reading); c != nil {
		candidates = append(candidates, *c)
	}
	if c := e.evaluateMovement(reading); c != nil {
		candidates = append(candidates, *c)
	}
	if c := e.evaluateHRV(reading); c != nil {
		candidates = append(candidates, *c)
	}
	if c := e.evaluateEquipment(reading); c != nil {
		candidates = append(candidates, *c)
	}
	if c := e.evaluateHydration(ctx, reading); c != nil {
		candidates = append(candidates, *c)
	}

	if len(candidates) > 0 {
		e.logger.Debug("Evaluation produced candidates",
			zap.String("firefighter_id", reading.FirefighterID),
			zap.Int("candidate_count", len(candidates)),
		)
	}

	return candidates
}
