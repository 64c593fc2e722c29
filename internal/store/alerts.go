package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"firewatch/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// AlertRepository 告警仓库
// 遵循"bottom-up"设计原则，使用强规则实现
type AlertRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertRepository 创建告警仓库
func NewAlertRepository(db *sql.DB, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

// alertColumns 查询列（与 scanAlert 的扫描顺序一致）
const alertColumns = `
	alert_id,
	firefighter_id,
	alert_type,
	severity,
	priority,
	status,
	title,
	message,
	triggered_at,
	acknowledged_at,
	resolved_at,
	escalated_at,
	escalation_level,
	auto_escalated,
	escalation_deadline,
	trigger_data,
	acknowledged_by,
	resolved_by,
	outcome,
	notes,
	response_time_sec,
	resolution_time_sec,
	notified_users,
	created_at,
	updated_at`

// AlertFilters 告警过滤条件
type AlertFilters struct {
	// 时间段过滤（triggered_at）
	StartTime *time.Time
	EndTime   *time.Time

	// 人员过滤
	FirefighterID *string

	// 类型和级别过滤
	Type       *models.AlertType
	Severity   *models.Severity
	Severities []models.Severity

	// 状态过滤
	Status   *models.Status
	Statuses []models.Status
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAlert 扫描一行告警记录（处理可空字段和 JSONB 字段）
func scanAlert(row rowScanner) (*models.Alert, error) {
	var alert models.Alert
	var ackAt, resolvedAt, escalatedAt, deadline sql.NullTime
	var ackBy, resolvedBy, outcome, notes sql.NullString
	var responseSec, resolutionSec sql.NullInt64
	var triggerData, notifiedUsers []byte

	err := row.Scan(
		&alert.AlertID,
		&alert.FirefighterID,
		&alert.Type,
		&alert.Severity,
		&alert.Priority,
		&alert.Status,
		&alert.Title,
		&alert.Message,
		&alert.TriggeredAt,
		&ackAt,
		&resolvedAt,
		&escalatedAt,
		&alert.EscalationLevel,
		&alert.AutoEscalated,
		&deadline,
		&triggerData,
		&ackBy,
		&resolvedBy,
		&outcome,
		&notes,
		&responseSec,
		&resolutionSec,
		&notifiedUsers,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ackAt.Valid {
		alert.AcknowledgedAt = &ackAt.Time
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = &resolvedAt.Time
	}
	if escalatedAt.Valid {
		alert.EscalatedAt = &escalatedAt.Time
	}
	if deadline.Valid {
		alert.EscalationDeadline = &deadline.Time
	}
	if ackBy.Valid {
		alert.AcknowledgedBy = &ackBy.String
	}
	if resolvedBy.Valid {
		alert.ResolvedBy = &resolvedBy.String
	}
	if outcome.Valid {
		alert.Outcome = &outcome.String
	}
	if notes.Valid {
		alert.Notes = &notes.String
	}
	if responseSec.Valid {
		alert.ResponseTimeSec = &responseSec.Int64
	}
	if resolutionSec.Valid {
		alert.ResolutionTimeSec = &resolutionSec.Int64
	}

	if len(triggerData) > 0 {
		if err := json.Unmarshal(triggerData, &alert.Trigger); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
		}
	}
	if len(notifiedUsers) > 0 {
		alert.NotifiedUsers = string(notifiedUsers)
	} else {
		alert.NotifiedUsers = "[]"
	}

	return &alert, nil
}

// ============================================
// 基础 CRUD 操作
// ============================================

// GetAlert 根据 alert_id 获取单个告警
func (r *AlertRepository) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	if alertID == "" {
		return nil, fmt.Errorf("%w: alert_id is required", ErrValidation)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE alert_id = $1
	`, alertColumns)

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, alertID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: alert_id=%s", ErrNotFound, alertID)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return alert, nil
}

// CreateAlert 创建告警
func (r *AlertRepository) CreateAlert(ctx context.Context, alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("%w: alert is required", ErrValidation)
	}
	if alert.AlertID == "" {
		return fmt.Errorf("%w: alert_id is required", ErrValidation)
	}
	if alert.FirefighterID == "" {
		return fmt.Errorf("%w: firefighter_id is required", ErrValidation)
	}
	if alert.TriggeredAt.IsZero() {
		return fmt.Errorf("%w: triggered_at is required", ErrValidation)
	}

	triggerJSON, err := json.Marshal(alert.Trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}
	notifiedUsers := alert.NotifiedUsers
	if notifiedUsers == "" {
		notifiedUsers = "[]"
	}

	query := `
		INSERT INTO alerts (
			alert_id,
			firefighter_id,
			alert_type,
			severity,
			priority,
			status,
			title,
			message,
			triggered_at,
			escalation_level,
			auto_escalated,
			escalation_deadline,
			trigger_data,
			notified_users,
			created_at,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`

	_, err = r.db.ExecContext(ctx, query,
		alert.AlertID,
		alert.FirefighterID,
		alert.Type,
		alert.Severity,
		alert.Priority,
		alert.Status,
		alert.Title,
		alert.Message,
		alert.TriggeredAt,
		alert.EscalationLevel,
		alert.AutoEscalated,
		alert.EscalationDeadline,
		triggerJSON,
		notifiedUsers,
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// UpdateAlert 部分更新（仅允许更新 notes / notified_users / escalation_deadline）
func (r *AlertRepository) UpdateAlert(ctx context.Context, alertID string, updates map[string]interface{}) error {
	if alertID == "" {
		return fmt.Errorf("%w: alert_id is required", ErrValidation)
	}
	if len(updates) == 0 {
		return fmt.Errorf("%w: updates cannot be empty", ErrValidation)
	}

	allowedFields := map[string]bool{
		"notes":               true,
		"notified_users":      true,
		"escalation_deadline": true,
	}

	setParts := []string{}
	args := []interface{}{}
	argN := 1

	for field, value := range updates {
		if !allowedFields[field] {
			return fmt.Errorf("%w: field '%s' is not allowed to update", ErrValidation, field)
		}
		setParts = append(setParts, fmt.Sprintf("%s = $%d", field, argN))
		args = append(args, value)
		argN++
	}

	setParts = append(setParts, "updated_at = CURRENT_TIMESTAMP")

	args = append(args, alertID)
	query := fmt.Sprintf(`
		UPDATE alerts
		SET %s
		WHERE alert_id = $%d
	`, strings.Join(setParts, ", "), argN)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: alert_id=%s", ErrNotFound, alertID)
	}

	return nil
}

// ============================================
// 查询操作
// ============================================

func buildWhereClause(filters AlertFilters, args *[]interface{}, argN *int) []string {
	where := []string{}

	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("triggered_at >= $%d", *argN))
		*args = append(*args, *filters.StartTime)
		*argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("triggered_at <= $%d", *argN))
		*args = append(*args, *filters.EndTime)
		*argN++
	}
	if filters.FirefighterID != nil {
		where = append(where, fmt.Sprintf("firefighter_id = $%d", *argN))
		*args = append(*args, *filters.FirefighterID)
		*argN++
	}
	if filters.Type != nil {
		where = append(where, fmt.Sprintf("alert_type = $%d", *argN))
		*args = append(*args, *filters.Type)
		*argN++
	}
	if filters.Severity != nil {
		where = append(where, fmt.Sprintf("severity = $%d", *argN))
		*args = append(*args, *filters.Severity)
		*argN++
	}
	if len(filters.Severities) > 0 {
		placeholders := make([]string, len(filters.Severities))
		for i := range filters.Severities {
			placeholders[i] = fmt.Sprintf("$%d", *argN)
			*args = append(*args, filters.Severities[i])
			*argN++
		}
		where = append(where, fmt.Sprintf("severity IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filters.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", *argN))
		*args = append(*args, *filters.Status)
		*argN++
	}
	if len(filters.Statuses) > 0 {
		placeholders := make([]string, len(filters.Statuses))
		for i := range filters.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", *argN)
			*args = append(*args, filters.Statuses[i])
			*argN++
		}
		where = append(where, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	return where
}

// ListAlerts 列表查询（支持多条件过滤、分页），返回 (记录, 总数, 错误)
func (r *AlertRepository) ListAlerts(ctx context.Context, filters AlertFilters, page, size int) ([]*models.Alert, int, error) {
	args := []interface{}{}
	argN := 1
	where := buildWhereClause(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	queryCount := fmt.Sprintf(`SELECT COUNT(*) FROM alerts %s`, whereClause)

	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		%s
		ORDER BY triggered_at DESC
		LIMIT $%d OFFSET $%d
	`, alertColumns, whereClause, len(args)+1, len(args)+2)

	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*models.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, total, nil
}

// GetRecentActiveAlert 去重检查：查找时间窗口内同一 (firefighter, type) 的活跃告警
// 未命中返回 (nil, nil)
func (r *AlertRepository) GetRecentActiveAlert(ctx context.Context, firefighterID string, alertType models.AlertType, window time.Duration) (*models.Alert, error) {
	if firefighterID == "" {
		return nil, fmt.Errorf("%w: firefighter_id is required", ErrValidation)
	}
	if alertType == "" {
		return nil, fmt.Errorf("%w: alert_type is required", ErrValidation)
	}

	thresholdTime := time.Now().Add(-window)

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE firefighter_id = $1
		  AND alert_type = $2
		  AND triggered_at > $3
		  AND status = 'active'
		ORDER BY triggered_at DESC
		LIMIT 1
	`, alertColumns)

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, firefighterID, alertType, thresholdTime))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query recent active alert: %w", err)
	}

	return alert, nil
}

// ListPendingEscalations 进程重启恢复：查找仍带升级期限的活跃告警
func (r *AlertRepository) ListPendingEscalations(ctx context.Context) ([]*models.Alert, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE status = 'active'
		  AND auto_escalated = FALSE
		  AND escalation_deadline IS NOT NULL
		ORDER BY escalation_deadline ASC
	`, alertColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending escalations: %w", err)
	}
	defer rows.Close()

	alerts := []*models.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending escalations: %w", err)
	}

	return alerts, nil
}

// ============================================
// 生命周期操作
// ============================================

// classifyZeroRows 更新影响 0 行时，区分"不存在"与"状态不满足"
func (r *AlertRepository) classifyZeroRows(ctx context.Context, alertID string) error {
	if _, err := r.GetAlert(ctx, alertID); err != nil {
		return err
	}
	return fmt.Errorf("%w: alert_id=%s", ErrNotActive, alertID)
}

// AcknowledgeAlert 确认告警（仅 active，记录响应耗时）
func (r *AlertRepository) AcknowledgeAlert(ctx context.Context, alertID, by string, notes *string, now time.Time) error {
	if alertID == "" {
		return fmt.Errorf("%w: alert_id is required", ErrValidation)
	}
	if by == "" {
		return fmt.Errorf("%w: acknowledged_by is required", ErrValidation)
	}

	query := `
		UPDATE alerts
		SET status = 'acknowledged',
		    acknowledged_at = $2,
		    acknowledged_by = $3,
		    notes = COALESCE($4, notes),
		    response_time_sec = EXTRACT(EPOCH FROM ($2::timestamptz - triggered_at))::bigint,
		    escalation_deadline = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = $1
		  AND status = 'active'
	`

	result, err := r.db.ExecContext(ctx, query, alertID, now, by, notes)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return r.classifyZeroRows(ctx, alertID)
	}

	return nil
}

// ResolveAlert 解决告警（active/acknowledged/escalated，记录处置耗时）
func (r *AlertRepository) ResolveAlert(ctx context.Context, alertID, by, outcome string, notes *string, now time.Time) error {
	if alertID == "" {
		return fmt.Errorf("%w: alert_id is required", ErrValidation)
	}
	if by == "" {
		return fmt.Errorf("%w: resolved_by is required", ErrValidation)
	}

	query := `
		UPDATE alerts
		SET status = 'resolved',
		    resolved_at = $2,
		    resolved_by = $3,
		    outcome = $4,
		    notes = COALESCE($5, notes),
		    resolution_time_sec = EXTRACT(EPOCH FROM ($2::timestamptz - triggered_at))::bigint,
		    escalation_deadline = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = $1
		  AND status IN ('active', 'acknowledged', 'escalated')
	`

	result, err := r.db.ExecContext(ctx, query, alertID, now, by, outcome, notes)
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return r.classifyZeroRows(ctx, alertID)
	}

	return nil
}

// DismissAlert 驳回告警（仅 active；"无需处理"，区别于 resolve）
func (r *AlertRepository) DismissAlert(ctx context.Context, alertID, by, reason string) error {
	if alertID == "" {
		return fmt.Errorf("%w: alert_id is required", ErrValidation)
	}
	if by == "" {
		return fmt.Errorf("%w: dismissed_by is required", ErrValidation)
	}

	query := `
		UPDATE alerts
		SET status = 'dismissed',
		    resolved_by = $2,
		    outcome = 'no_action_required',
		    notes = $3,
		    escalation_deadline = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = $1
		  AND status = 'active'
	`

	result, err := r.db.ExecContext(ctx, query, alertID, by, reason)
	if err != nil {
		return fmt.Errorf("failed to dismiss alert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return r.classifyZeroRows(ctx, alertID)
	}

	return nil
}

// EscalateAlert 升级告警（active/acknowledged/escalated，级别只增不减）
// severity/priority 由上层按升级规则计算后传入
func (r *AlertRepository) EscalateAlert(
	ctx context.Context,
	alertID string,
	level int,
	severity models.Severity,
	priority int,
	auto bool,
	notes *string,
	now time.Time,
) error {
	if alertID == "" {
		return fmt.Errorf("%w: alert_id is required", ErrValidation)
	}
	if level <= 0 {
		return fmt.Errorf("%w: escalation level must be positive", ErrValidation)
	}

	query := `
		UPDATE alerts
		SET status = 'escalated',
		    escalated_at = $2,
		    escalation_level = $3,
		    severity = $4,
		    priority = $5,
		    auto_escalated = (auto_escalated OR $6),
		    notes = COALESCE($7, notes),
		    escalation_deadline = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = $1
		  AND status IN ('active', 'acknowledged', 'escalated')
		  AND escalation_level < $3
	`

	result, err := r.db.ExecContext(ctx, query, alertID, now, level, severity, priority, auto, notes)
	if err != nil {
		return fmt.Errorf("failed to escalate alert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return r.classifyZeroRows(ctx, alertID)
	}

	return nil
}

// BulkAcknowledgeAlerts 批量确认
// 仅转换当前为 active 的记录；已确认/已终态的 id 静默跳过，返回实际转换数量
func (r *AlertRepository) BulkAcknowledgeAlerts(ctx context.Context, alertIDs []string, by string, now time.Time) (int, error) {
	if len(alertIDs) == 0 {
		return 0, nil
	}
	if by == "" {
		return 0, fmt.Errorf("%w: acknowledged_by is required", ErrValidation)
	}

	query := `
		UPDATE alerts
		SET status = 'acknowledged',
		    acknowledged_at = $2,
		    acknowledged_by = $3,
		    response_time_sec = EXTRACT(EPOCH FROM ($2::timestamptz - triggered_at))::bigint,
		    escalation_deadline = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = ANY($1)
		  AND status = 'active'
	`

	result, err := r.db.ExecContext(ctx, query, pq.Array(alertIDs), now, by)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk acknowledge alerts: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// ============================================
// 统计查询
// ============================================

// CountAlerts 统计告警数量（按条件）
func (r *AlertRepository) CountAlerts(ctx context.Context, filters AlertFilters) (int, error) {
	args := []interface{}{}
	argN := 1
	where := buildWhereClause(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM alerts %s`, whereClause)

	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	return total, nil
}

// GetActiveAlerts 获取活跃告警（便捷查询）
func (r *AlertRepository) GetActiveAlerts(ctx context.Context, filters AlertFilters, page, size int) ([]*models.Alert, int, error) {
	status := models.StatusActive
	filters.Status = &status
	return r.ListAlerts(ctx, filters, page, size)
}

// GetAlertsByFirefighter 按人员查询
func (r *AlertRepository) GetAlertsByFirefighter(ctx context.Context, firefighterID string, filters AlertFilters, page, size int) ([]*models.Alert, int, error) {
	filters.FirefighterID = &firefighterID
	return r.ListAlerts(ctx, filters, page, size)
}
