package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"firewatch/internal/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StateManager 评估状态管理器（Redis 存储，带 TTL）
// 目前管理补水提醒的最近触发时间
type StateManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewStateManager 创建状态管理器
func NewStateManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *StateManager {
	return &StateManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// SetState 设置状态（带 TTL）
func (s *StateManager) SetState(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := s.redisClient.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}

	return nil
}

// GetState 获取状态（不存在返回 redis.Nil 包装错误）
func (s *StateManager) GetState(ctx context.Context, key string, dest interface{}) error {
	val, err := s.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("state not found: %s", key)
		}
		return fmt.Errorf("failed to get state: %w", err)
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return nil
}

// DeleteState 删除状态
func (s *StateManager) DeleteState(ctx context.Context, key string) error {
	if err := s.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

// ============================================
// 补水提醒状态
// ============================================

func (s *StateManager) hydrationKey(firefighterID string) string {
	return s.config.Cache.HydrationKeyPrefix + firefighterID
}

// LastHydrationReminder 获取最近一次补水提醒时间；无记录返回 (nil, nil)
func (s *StateManager) LastHydrationReminder(ctx context.Context, firefighterID string) (*time.Time, error) {
	var unix int64
	err := s.GetState(ctx, s.hydrationKey(firefighterID), &unix)
	if err != nil {
		// 键不存在视为"从未提醒"
		return nil, nil
	}
	t := time.Unix(unix, 0)
	return &t, nil
}

// MarkHydrationReminded 记录补水提醒时间，TTL 即提醒间隔
func (s *StateManager) MarkHydrationReminded(ctx context.Context, firefighterID string, at time.Time, interval time.Duration) error {
	return s.SetState(ctx, s.hydrationKey(firefighterID), at.Unix(), interval)
}
