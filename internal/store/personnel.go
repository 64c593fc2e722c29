package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"firewatch/internal/models"

	"go.uber.org/zap"
)

// PersonnelRepository 人员目录仓库（只读）
type PersonnelRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPersonnelRepository 创建人员目录仓库
func NewPersonnelRepository(db *sql.DB, logger *zap.Logger) *PersonnelRepository {
	return &PersonnelRepository{
		db:     db,
		logger: logger,
	}
}

const personnelColumns = `
	firefighter_id,
	name,
	role,
	department,
	date_of_birth,
	resting_heart_rate,
	notify_url,
	email,
	phone,
	created_at,
	updated_at`

func scanFirefighter(row rowScanner) (*models.Firefighter, error) {
	var f models.Firefighter
	var restingHR sql.NullInt64
	var notifyURL, email, phone sql.NullString

	err := row.Scan(
		&f.FirefighterID,
		&f.Name,
		&f.Role,
		&f.Department,
		&f.DateOfBirth,
		&restingHR,
		&notifyURL,
		&email,
		&phone,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if restingHR.Valid {
		hr := int(restingHR.Int64)
		f.RestingHeartRate = &hr
	}
	if notifyURL.Valid {
		f.NotifyURL = notifyURL.String
	}
	if email.Valid {
		f.Email = email.String
	}
	if phone.Valid {
		f.Phone = phone.String
	}

	return &f, nil
}

// GetFirefighter 根据 firefighter_id 获取人员
func (r *PersonnelRepository) GetFirefighter(ctx context.Context, firefighterID string) (*models.Firefighter, error) {
	if firefighterID == "" {
		return nil, fmt.Errorf("%w: firefighter_id is required", ErrValidation)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM personnel
		WHERE firefighter_id = $1
	`, personnelColumns)

	f, err := scanFirefighter(r.db.QueryRowContext(ctx, query, firefighterID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: firefighter_id=%s", ErrNotFound, firefighterID)
		}
		return nil, fmt.Errorf("failed to get firefighter: %w", err)
	}

	return f, nil
}

// ListByDepartment 按部门查询人员，可按角色过滤
// 部门不存在或无匹配人员时返回空列表（不视为错误）
func (r *PersonnelRepository) ListByDepartment(ctx context.Context, department string, roles ...string) ([]*models.Firefighter, error) {
	if department == "" {
		return []*models.Firefighter{}, nil
	}

	args := []interface{}{department}
	query := fmt.Sprintf(`
		SELECT %s
		FROM personnel
		WHERE department = $1
	`, personnelColumns)

	if len(roles) > 0 {
		placeholders := make([]string, len(roles))
		for i, role := range roles {
			placeholders[i] = fmt.Sprintf("$%d", i+2)
			args = append(args, role)
		}
		query += fmt.Sprintf(" AND role IN (%s)", strings.Join(placeholders, ", "))
	}
	query += " ORDER BY firefighter_id"

	return r.queryPersonnel(ctx, query, args...)
}

// ListByRole 按角色查询全体人员（跨部门）
func (r *PersonnelRepository) ListByRole(ctx context.Context, role string) ([]*models.Firefighter, error) {
	if role == "" {
		return []*models.Firefighter{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM personnel
		WHERE role = $1
		ORDER BY firefighter_id
	`, personnelColumns)

	return r.queryPersonnel(ctx, query, role)
}

func (r *PersonnelRepository) queryPersonnel(ctx context.Context, query string, args ...interface{}) ([]*models.Firefighter, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query personnel: %w", err)
	}
	defer rows.Close()

	personnel := []*models.Firefighter{}
	for rows.Next() {
		f, err := scanFirefighter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan firefighter: %w", err)
		}
		personnel = append(personnel, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate personnel: %w", err)
	}

	return personnel, nil
}
