package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProcessor 记录收到的读数
type fakeProcessor struct {
	mu       sync.Mutex
	readings []*models.SensorReading
	err      error
}

func (p *fakeProcessor) ProcessReading(_ context.Context, reading *models.SensorReading) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readings = append(p.readings, reading)
	return p.err
}

func (p *fakeProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.readings)
}

func setupStreamConsumer(t *testing.T) (*miniredis.Miniredis, *redis.Client, *config.Config, *StreamConsumer) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{}
	cfg.Ingest.Stream = "firewatch:readings"
	cfg.Ingest.ConsumerGroup = "firewatch-alert"
	cfg.Ingest.ConsumerName = "test-consumer"
	cfg.Ingest.BatchSize = 10

	return mr, client, cfg, NewStreamConsumer(cfg, client, zap.NewNop())
}

func addReading(t *testing.T, client *redis.Client, cfg *config.Config, reading models.SensorReading) {
	t.Helper()
	data, err := json.Marshal(reading)
	require.NoError(t, err)

	err = client.XAdd(context.Background(), &redis.XAddArgs{
		Stream: cfg.Ingest.Stream,
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
	require.NoError(t, err)
}

func TestStreamConsumer_DeliversReadings(t *testing.T) {
	_, client, cfg, sc := setupStreamConsumer(t)
	processor := &fakeProcessor{}

	addReading(t, client, cfg, models.SensorReading{
		FirefighterID: "ff-001",
		HeartRate:     185,
		RecordedAt:    time.Now(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sc.Start(ctx, processor) }()

	require.Eventually(t, func() bool {
		return processor.count() == 1
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, "ff-001", processor.readings[0].FirefighterID)
	assert.Equal(t, 185.0, processor.readings[0].HeartRate)
}

func TestStreamConsumer_AcksMalformedMessages(t *testing.T) {
	_, client, cfg, sc := setupStreamConsumer(t)
	processor := &fakeProcessor{}

	// 畸形消息：缺少 data 字段 / JSON 非法
	require.NoError(t, client.XAdd(context.Background(), &redis.XAddArgs{
		Stream: cfg.Ingest.Stream,
		Values: map[string]interface{}{"other": "x"},
	}).Err())
	require.NoError(t, client.XAdd(context.Background(), &redis.XAddArgs{
		Stream: cfg.Ingest.Stream,
		Values: map[string]interface{}{"data": "{not json"},
	}).Err())
	addReading(t, client, cfg, models.SensorReading{FirefighterID: "ff-001"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sc.Start(ctx, processor) }()

	// 畸形消息被丢弃，合法消息正常处理
	require.Eventually(t, func() bool {
		return processor.count() == 1
	}, 3*time.Second, 10*time.Millisecond)

	// 全部消息都被 ACK，pending 清零
	require.Eventually(t, func() bool {
		pending, err := client.XPending(context.Background(), cfg.Ingest.Stream, cfg.Ingest.ConsumerGroup).Result()
		return err == nil && pending.Count == 0
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestStreamConsumer_ProcessorErrorStillAcks(t *testing.T) {
	_, client, cfg, sc := setupStreamConsumer(t)
	processor := &fakeProcessor{err: errors.New("downstream failure")}

	addReading(t, client, cfg, models.SensorReading{FirefighterID: "ff-001"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sc.Start(ctx, processor) }()

	// 先等消息被处理，再确认 ACK；消费者组建立前 pending 查询恒为零
	require.Eventually(t, func() bool {
		return processor.count() == 1
	}, 3*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		pending, err := client.XPending(context.Background(), cfg.Ingest.Stream, cfg.Ingest.ConsumerGroup).Result()
		return err == nil && pending.Count == 0
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, processor.count())
}

func TestStreamConsumer_CancelBeforeGroupCreate(t *testing.T) {
	_, _, _, sc := setupStreamConsumer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, sc.Start(ctx, &fakeProcessor{}))
}

func TestStreamConsumer_DefaultsRecordedAt(t *testing.T) {
	_, client, cfg, sc := setupStreamConsumer(t)
	processor := &fakeProcessor{}

	addReading(t, client, cfg, models.SensorReading{FirefighterID: "ff-001"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sc.Start(ctx, processor) }()

	require.Eventually(t, func() bool {
		return processor.count() == 1
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.False(t, processor.readings[0].RecordedAt.IsZero())
}
