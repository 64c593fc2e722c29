package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ReadingProcessor 读数处理接口（由告警引擎实现）
type ReadingProcessor interface {
	ProcessReading(ctx context.Context, reading *models.SensorReading) error
}

// StreamConsumer 读数流消费者（Redis Streams，consumer group 模式）
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewStreamConsumer 创建读数流消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// ensureGroup 创建消费者组（已存在时忽略 BUSYGROUP）
func (c *StreamConsumer) ensureGroup(ctx context.Context) error {
	err := c.redisClient.XGroupCreateMkStream(ctx,
		c.config.Ingest.Stream,
		c.config.Ingest.ConsumerGroup,
		"0",
	).Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Start 启动消费循环，阻塞直到 ctx 取消
func (c *StreamConsumer) Start(ctx context.Context, processor ReadingProcessor) error {
	if err := c.ensureGroup(ctx); err != nil {
		if ctx.Err() != nil {
			c.logger.Info("Stream consumer stopped")
			return nil
		}
		return err
	}

	c.logger.Info("Stream consumer started",
		zap.String("stream", c.config.Ingest.Stream),
		zap.String("group", c.config.Ingest.ConsumerGroup),
		zap.String("consumer", c.config.Ingest.ConsumerName),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stream consumer stopped")
			return nil
		default:
		}

		streams, err := c.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.config.Ingest.ConsumerGroup,
			Consumer: c.config.Ingest.ConsumerName,
			Streams:  []string{c.config.Ingest.Stream, ">"},
			Count:    c.config.Ingest.BatchSize,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue // 阻塞超时，无新消息
			}
			if ctx.Err() != nil {
				c.logger.Info("Stream consumer stopped")
				return nil
			}
			c.logger.Error("Failed to read from stream",
				zap.Error(err),
			)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				c.handleMessage(ctx, processor, msg)
			}
		}
	}
}

// handleMessage 处理单条消息
// 畸形消息记录日志后 ACK 丢弃；处理失败同样 ACK（评估管道内部已按候选降级，不重试）
func (c *StreamConsumer) handleMessage(ctx context.Context, processor ReadingProcessor, msg redis.XMessage) {
	defer func() {
		if err := c.redisClient.XAck(ctx,
			c.config.Ingest.Stream,
			c.config.Ingest.ConsumerGroup,
			msg.ID,
		).Err(); err != nil {
			c.logger.Error("Failed to ack message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}()

	raw, ok := msg.Values["data"].(string)
	if !ok {
		c.logger.Warn("Message missing data field",
			zap.String("message_id", msg.ID),
		)
		return
	}

	var reading models.SensorReading
	if err := json.Unmarshal([]byte(raw), &reading); err != nil {
		c.logger.Warn("Failed to unmarshal reading",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return
	}
	if reading.RecordedAt.IsZero() {
		reading.RecordedAt = time.Now()
	}

	if err := processor.ProcessReading(ctx, &reading); err != nil {
		c.logger.Error("Failed to process reading",
			zap.String("message_id", msg.ID),
			zap.String("firefighter_id", reading.FirefighterID),
			zap.Error(err),
		)
	}
}
