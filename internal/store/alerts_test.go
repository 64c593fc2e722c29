package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"firewatch/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockAlertDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AlertRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewAlertRepository(db, logger)

	return db, mock, repo
}

var alertColumnNames = []string{
	"alert_id", "firefighter_id", "alert_type", "severity", "priority",
	"status", "title", "message", "triggered_at", "acknowledged_at",
	"resolved_at", "escalated_at", "escalation_level", "auto_escalated",
	"escalation_deadline", "trigger_data", "acknowledged_by", "resolved_by",
	"outcome", "notes", "response_time_sec", "resolution_time_sec",
	"notified_users", "created_at", "updated_at",
}

func activeAlertRow(alertID, firefighterID string, triggeredAt time.Time) *sqlmock.Rows {
	deadline := triggeredAt.Add(2 * time.Minute)
	return sqlmock.NewRows(alertColumnNames).AddRow(
		alertID, firefighterID, "fall_detected", "critical", 9,
		"active", "Fall detected", "Impact of 25.5g detected", triggeredAt, nil,
		nil, nil, 0, false,
		deadline, `{"kind":"movement","movement":{"magnitude":25.5,"threshold":20,"recommended_action":"Contact firefighter"}}`, nil, nil,
		nil, nil, nil, nil,
		`[]`, triggeredAt, triggeredAt,
	)
}

// ============================================
// 基础 CRUD 操作测试
// ============================================

func TestGetAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID := uuid.New().String()
	triggeredAt := time.Now()

	mock.ExpectQuery(`SELECT`).
		WithArgs(alertID).
		WillReturnRows(activeAlertRow(alertID, "ff-001", triggeredAt))

	alert, err := repo.GetAlert(ctx, alertID)

	require.NoError(t, err)
	assert.Equal(t, alertID, alert.AlertID)
	assert.Equal(t, "ff-001", alert.FirefighterID)
	assert.Equal(t, models.AlertFallDetected, alert.Type)
	assert.Equal(t, models.SeverityCritical, alert.Severity)
	assert.Equal(t, models.StatusActive, alert.Status)
	require.NotNil(t, alert.EscalationDeadline)

	// trigger_data JSONB 反序列化
	assert.Equal(t, models.TriggerKindMovement, alert.Trigger.Kind)
	require.NotNil(t, alert.Trigger.Movement)
	assert.Equal(t, 25.5, alert.Trigger.Movement.Magnitude)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAlert_NotFound(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	alertID := uuid.New().String()
	mock.ExpectQuery(`SELECT`).
		WithArgs(alertID).
		WillReturnError(sql.ErrNoRows)

	alert, err := repo.GetAlert(context.Background(), alertID)

	assert.Nil(t, alert)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAlert_Validation(t *testing.T) {
	db, _, repo := setupMockAlertDB(t)
	defer db.Close()

	_, err := repo.GetAlert(context.Background(), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	now := time.Now()
	deadline := now.Add(2 * time.Minute)
	alert := &models.Alert{
		AlertID:            uuid.New().String(),
		FirefighterID:      "ff-001",
		Type:               models.AlertFallDetected,
		Severity:           models.SeverityCritical,
		Priority:           9,
		Status:             models.StatusActive,
		Title:              "Fall detected",
		Message:            "Impact of 25.5g detected",
		TriggeredAt:        now,
		EscalationDeadline: &deadline,
		Trigger: models.TriggerDetail{
			Kind: models.TriggerKindMovement,
			Movement: &models.MovementTrigger{
				Magnitude: 25.5,
				Threshold: 20,
			},
		},
		NotifiedUsers: "[]",
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	mock.ExpectExec(`INSERT INTO alerts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateAlert(context.Background(), alert)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAlert_Validation(t *testing.T) {
	db, _, repo := setupMockAlertDB(t)
	defer db.Close()

	ctx := context.Background()

	err := repo.CreateAlert(ctx, nil)
	assert.ErrorIs(t, err, ErrValidation)

	err = repo.CreateAlert(ctx, &models.Alert{FirefighterID: "ff-001", TriggeredAt: time.Now()})
	assert.ErrorIs(t, err, ErrValidation)

	err = repo.CreateAlert(ctx, &models.Alert{AlertID: "a", FirefighterID: "ff-001"})
	assert.ErrorIs(t, err, ErrValidation)
}

// ============================================
// 去重查询测试
// ============================================

func TestGetRecentActiveAlert_Found(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	alertID := uuid.New().String()
	triggeredAt := time.Now().Add(-5 * time.Second)

	mock.ExpectQuery(`SELECT`).
		WillReturnRows(activeAlertRow(alertID, "ff-001", triggeredAt))

	alert, err := repo.GetRecentActiveAlert(context.Background(), "ff-001", models.AlertFallDetected, 15*time.Second)

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, alertID, alert.AlertID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentActiveAlert_NoneInWindow(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WillReturnError(sql.ErrNoRows)

	// 窗口内无同类 active 告警：返回 nil, nil 而非错误
	alert, err := repo.GetRecentActiveAlert(context.Background(), "ff-001", models.AlertFallDetected, 15*time.Second)

	require.NoError(t, err)
	assert.Nil(t, alert)

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 生命周期操作测试
// ============================================

func TestAcknowledgeAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	alertID := uuid.New().String()
	mock.ExpectExec(`UPDATE alerts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AcknowledgeAlert(context.Background(), alertID, "cmd-1", nil, time.Now())

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeAlert_NotActive(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	alertID := uuid.New().String()
	triggeredAt := time.Now().Add(-time.Hour)

	// 0 行受影响 → 重查区分"不存在"与"状态不满足"
	mock.ExpectExec(`UPDATE alerts`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	row := sqlmock.NewRows(alertColumnNames).AddRow(
		alertID, "ff-001", "fall_detected", "critical", 9,
		"resolved", "Fall detected", "msg", triggeredAt, nil,
		triggeredAt, nil, 0, false,
		nil, `{"kind":"movement"}`, nil, "cmd-1",
		"treated_on_scene", nil, nil, int64(300),
		`[]`, triggeredAt, triggeredAt,
	)
	mock.ExpectQuery(`SELECT`).
		WithArgs(alertID).
		WillReturnRows(row)

	err := repo.AcknowledgeAlert(context.Background(), alertID, "cmd-1", nil, time.Now())

	assert.ErrorIs(t, err, ErrNotActive)
	assert.NotErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeAlert_NotFound(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	alertID := uuid.New().String()
	mock.ExpectExec(`UPDATE alerts`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT`).
		WithArgs(alertID).
		WillReturnError(sql.ErrNoRows)

	err := repo.AcknowledgeAlert(context.Background(), alertID, "cmd-1", nil, time.Now())

	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeAlert_Validation(t *testing.T) {
	db, _, repo := setupMockAlertDB(t)
	defer db.Close()

	err := repo.AcknowledgeAlert(context.Background(), "", "cmd-1", nil, time.Now())
	assert.ErrorIs(t, err, ErrValidation)

	err = repo.AcknowledgeAlert(context.Background(), "alert-1", "", nil, time.Now())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResolveAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE alerts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ResolveAlert(context.Background(), uuid.New().String(), "cmd-1", "treated_on_scene", nil, time.Now())

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDismissAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE alerts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DismissAlert(context.Background(), uuid.New().String(), "cmd-1", "sensor glitch")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalateAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE alerts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.EscalateAlert(context.Background(), uuid.New().String(), 1, models.SeverityCritical, 9, true, nil, time.Now())

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalateAlert_Validation(t *testing.T) {
	db, _, repo := setupMockAlertDB(t)
	defer db.Close()

	err := repo.EscalateAlert(context.Background(), "alert-1", 0, models.SeverityCritical, 9, true, nil, time.Now())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBulkAcknowledgeAlerts_ReturnsActualCount(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	// 请求 3 条，其中 1 条已非 active：只转换 2 条
	mock.ExpectExec(`UPDATE alerts`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	count, err := repo.BulkAcknowledgeAlerts(context.Background(),
		[]string{"alert-1", "alert-2", "alert-3"}, "cmd-1", time.Now())

	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkAcknowledgeAlerts_EmptyInput(t *testing.T) {
	db, _, repo := setupMockAlertDB(t)
	defer db.Close()

	count, err := repo.BulkAcknowledgeAlerts(context.Background(), nil, "cmd-1", time.Now())

	require.NoError(t, err)
	assert.Zero(t, count)
}

// ============================================
// 查询测试
// ============================================

func TestListAlerts_Pagination(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	triggeredAt := time.Now()
	mock.ExpectQuery(`SELECT COUNT`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectQuery(`SELECT`).
		WillReturnRows(activeAlertRow(uuid.New().String(), "ff-001", triggeredAt))

	status := models.StatusActive
	alerts, total, err := repo.ListAlerts(context.Background(), AlertFilters{Status: &status}, 1, 20)

	require.NoError(t, err)
	assert.Equal(t, 42, total)
	assert.Len(t, alerts, 1)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingEscalations(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	triggeredAt := time.Now()
	mock.ExpectQuery(`SELECT`).
		WillReturnRows(activeAlertRow(uuid.New().String(), "ff-001", triggeredAt))

	pending, err := repo.ListPendingEscalations(context.Background())

	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.NotNil(t, pending[0].EscalationDeadline)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAlert_AllowedFieldsOnly(t *testing.T) {
	db, mock, repo := setupMockAlertDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE alerts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateAlert(context.Background(), uuid.New().String(), map[string]interface{}{
		"notified_users": `["cmd-1"]`,
	})
	require.NoError(t, err)

	// 不在白名单内的字段被拒绝
	err = repo.UpdateAlert(context.Background(), uuid.New().String(), map[string]interface{}{
		"status": "resolved",
	})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, mock.ExpectationsWereMet())
}
