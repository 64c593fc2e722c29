package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/consumer"
	"firewatch/internal/escalation"
	"firewatch/internal/evaluator"
	"firewatch/internal/models"
	"firewatch/internal/notifier"
	"firewatch/internal/platform"
	"firewatch/internal/store"
	"firewatch/internal/ws"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Engine 告警引擎（整合各层）
// 读数经 Redis Streams 进入，走 评估 → 去重 → 落库 → 调度升级 → 通知 → 推送 流水线
type Engine struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *platform.MQTTClient
	logger      *zap.Logger

	// 各层组件
	alertRepo      *store.AlertRepository
	personnelRepo  *store.PersonnelRepository
	stateManager   *consumer.StateManager
	streamConsumer *consumer.StreamConsumer
	evaluator      *evaluator.Evaluator
	scheduler      *escalation.Scheduler
	resolver       *escalation.RecipientResolver
	dispatcher     *notifier.Dispatcher
	hub            *ws.Hub
	alertService   *AlertService

	wsServer *http.Server
}

// NewEngine 创建告警引擎
func NewEngine(cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	// 1. 连接数据库
	db, err := platform.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := platform.NewRedisClient(&cfg.Redis)
	if err := platform.PingRedis(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 创建仓储层
	alertRepo := store.NewAlertRepository(db, logger)
	personnelRepo := store.NewPersonnelRepository(db, logger)

	// 4. 创建消费层
	stateManager := consumer.NewStateManager(cfg, redisClient, logger)
	streamConsumer := consumer.NewStreamConsumer(cfg, redisClient, logger)

	// 5. 创建评估器与升级调度
	eval := evaluator.NewEvaluator(stateManager, logger)
	scheduler := escalation.NewScheduler(logger)
	resolver := escalation.NewRecipientResolver(personnelRepo, logger)

	// 6. 创建通知渠道（MQTT 可选）
	notifiers := []notifier.Notifier{
		notifier.NewLogNotifier(logger),
		notifier.NewShoutrrrNotifier(logger),
	}
	var mqttClient *platform.MQTTClient
	if cfg.MQTT.Enabled {
		mqttClient, err = platform.NewMQTTClient(&cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		notifiers = append(notifiers, notifier.NewMQTTNotifier(mqttClient, logger))
	}
	dispatcher := notifier.NewDispatcher(logger, notifiers...)

	// 7. 创建实时推送与生命周期服务
	hub := ws.NewHub(logger)
	alertService := NewAlertService(alertRepo, personnelRepo, scheduler, hub, resolver, dispatcher, logger)

	return &Engine{
		config:         cfg,
		db:             db,
		redisClient:    redisClient,
		mqttClient:     mqttClient,
		logger:         logger,
		alertRepo:      alertRepo,
		personnelRepo:  personnelRepo,
		stateManager:   stateManager,
		streamConsumer: streamConsumer,
		evaluator:      eval,
		scheduler:      scheduler,
		resolver:       resolver,
		dispatcher:     dispatcher,
		hub:            hub,
		alertService:   alertService,
	}, nil
}

// AlertService 返回生命周期服务（供 API 边界使用）
func (e *Engine) AlertService() *AlertService {
	return e.alertService
}

// Hub 返回实时推送中心
func (e *Engine) Hub() *ws.Hub {
	return e.hub
}

// Start 启动引擎，阻塞直到 ctx 取消
func (e *Engine) Start(ctx context.Context) error {
	e.scheduler.Start()

	// 重启恢复：重新注册所有未触发的自动升级
	if err := e.recoverPendingEscalations(ctx); err != nil {
		return fmt.Errorf("failed to recover pending escalations: %w", err)
	}

	// WebSocket 服务
	mux := http.NewServeMux()
	mux.Handle(e.config.WebSocket.Path, e.hub)
	e.wsServer = &http.Server{
		Addr:    e.config.WebSocket.ListenAddr,
		Handler: mux,
	}
	go func() {
		if err := e.wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("WebSocket server error", zap.Error(err))
		}
	}()

	e.logger.Info("Alert engine started",
		zap.String("stream", e.config.Ingest.Stream),
		zap.String("ws_addr", e.config.WebSocket.ListenAddr),
	)

	// 消费循环（阻塞）
	return e.streamConsumer.Start(ctx, e)
}

// Stop 停止引擎并释放资源
func (e *Engine) Stop() error {
	e.scheduler.Stop()
	e.hub.Close()

	if e.wsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.wsServer.Shutdown(shutdownCtx); err != nil {
			e.logger.Warn("WebSocket server shutdown error", zap.Error(err))
		}
	}
	if e.mqttClient != nil {
		e.mqttClient.Disconnect()
	}
	if e.redisClient != nil {
		if err := e.redisClient.Close(); err != nil {
			e.logger.Warn("Redis close error", zap.Error(err))
		}
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.logger.Warn("Database close error", zap.Error(err))
		}
	}

	e.logger.Info("Alert engine stopped")
	return nil
}

// ============================================
// 读数处理流水线
// ============================================

// ProcessReading 处理一条读数（consumer.ReadingProcessor 实现）
// 单个候选落库失败只记日志，不影响其余候选（尽力而为，非事务批）
func (e *Engine) ProcessReading(ctx context.Context, reading *models.SensorReading) error {
	if reading.FirefighterID == "" {
		return fmt.Errorf("%w: firefighter_id is required", store.ErrValidation)
	}

	ff, err := e.personnelRepo.GetFirefighter(ctx, reading.FirefighterID)
	if err != nil {
		// 未知人员的读数在进入评估器前拒绝
		return fmt.Errorf("failed to resolve firefighter %s: %w", reading.FirefighterID, err)
	}

	candidates := e.evaluator.Evaluate(ctx, reading, ff)
	for _, candidate := range candidates {
		if err := e.processCandidate(ctx, candidate, reading, ff); err != nil {
			e.logger.Error("Failed to process alert candidate",
				zap.String("firefighter_id", reading.FirefighterID),
				zap.String("alert_type", string(candidate.Type)),
				zap.Error(err),
			)
		}
	}

	return nil
}

// processCandidate 去重 → 落库 → 调度升级 → 通知 → 推送
func (e *Engine) processCandidate(ctx context.Context, candidate evaluator.Candidate, reading *models.SensorReading, ff *models.Firefighter) error {
	// 去重：窗口内已有同类 active 告警则幂等跳过
	// 查重与落库之间没有事务隔离，并发下可能产生重复告警；
	// 窗口很短且消费端按分区串行，实际风险可接受
	existing, err := e.alertRepo.GetRecentActiveAlert(ctx, reading.FirefighterID, candidate.Type, candidate.Type.DedupWindow())
	if err != nil {
		return fmt.Errorf("dedup lookup failed: %w", err)
	}
	if existing != nil {
		e.logger.Debug("Duplicate alert suppressed",
			zap.String("firefighter_id", reading.FirefighterID),
			zap.String("alert_type", string(candidate.Type)),
			zap.String("existing_alert_id", existing.AlertID),
		)
		return nil
	}

	alert := evaluator.BuildAlert(candidate, reading.FirefighterID, reading.RecordedAt)
	if err := e.alertRepo.CreateAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	e.logger.Info("Alert created",
		zap.String("alert_id", alert.AlertID),
		zap.String("firefighter_id", alert.FirefighterID),
		zap.String("alert_type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.Int("priority", alert.Priority),
	)

	e.scheduleEscalation(alert)
	e.notifyAndBroadcast(ctx, alert, ff)

	return nil
}

// scheduleEscalation 注册自动升级任务
// 调度失败只记日志，不重试
func (e *Engine) scheduleEscalation(alert *models.Alert) {
	if alert.EscalationDeadline == nil {
		return
	}
	alertID := alert.AlertID
	err := e.scheduler.Schedule(alertID, *alert.EscalationDeadline, func() {
		e.alertService.AutoEscalate(context.Background(), alertID)
	})
	if err != nil {
		e.logger.Warn("Failed to schedule auto-escalation",
			zap.String("alert_id", alertID),
			zap.Error(err),
		)
	}
}

// notifyAndBroadcast 解析接收人、发送通知并推送实时事件
func (e *Engine) notifyAndBroadcast(ctx context.Context, alert *models.Alert, ff *models.Firefighter) {
	recipients := e.resolver.Resolve(ctx, alert, ff)
	results, _ := e.dispatcher.Dispatch(ctx, recipients, alert, false)
	e.recordNotifiedUsers(ctx, alert, results)

	e.hub.Publish(ws.EventNewAlert, alert,
		ws.TopicBroadcast,
		ws.TopicDepartment(ff.Department),
		ws.TopicMonitor(alert.FirefighterID),
	)
	e.hub.Publish(ws.EventPersonalAlert, alert, ws.TopicPersonal(alert.FirefighterID))
}

// recordNotifiedUsers 将成功送达的接收人写回告警记录
func (e *Engine) recordNotifiedUsers(ctx context.Context, alert *models.Alert, results []notifier.Result) {
	notified := make([]string, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			notified = append(notified, r.RecipientID)
		}
	}
	if len(notified) == 0 {
		return
	}

	payload, err := json.Marshal(notified)
	if err != nil {
		return
	}
	if err := e.alertRepo.UpdateAlert(ctx, alert.AlertID, map[string]interface{}{
		"notified_users": string(payload),
	}); err != nil {
		e.logger.Warn("Failed to record notified users",
			zap.String("alert_id", alert.AlertID),
			zap.Error(err),
		)
	}
}

// recoverPendingEscalations 进程重启后恢复未触发的自动升级
// 截止时间已过的告警立即触发升级回调
func (e *Engine) recoverPendingEscalations(ctx context.Context) error {
	pending, err := e.alertRepo.ListPendingEscalations(ctx)
	if err != nil {
		return err
	}

	for _, alert := range pending {
		if alert.EscalationDeadline == nil {
			continue
		}
		alertID := alert.AlertID
		deadline := *alert.EscalationDeadline
		if err := e.scheduler.Schedule(alertID, deadline, func() {
			e.alertService.AutoEscalate(context.Background(), alertID)
		}); err != nil {
			e.logger.Warn("Failed to re-schedule escalation",
				zap.String("alert_id", alertID),
				zap.Error(err),
			)
		}
	}

	if len(pending) > 0 {
		e.logger.Info("Recovered pending escalations",
			zap.Int("count", len(pending)),
		)
	}
	return nil
}
