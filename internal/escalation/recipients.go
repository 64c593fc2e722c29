package escalation

import (
	"context"
	"time"

	"firewatch/internal/models"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Directory 人员目录只读接口（Postgres 实现见 store.PersonnelRepository）
type Directory interface {
	GetFirefighter(ctx context.Context, firefighterID string) (*models.Firefighter, error)
	ListByDepartment(ctx context.Context, department string, roles ...string) ([]*models.Firefighter, error)
	ListByRole(ctx context.Context, role string) ([]*models.Firefighter, error)
}

// RecipientResolver 通知接收人解析器
// 目录查询结果短时缓存，减少每条告警对 personnel 表的重复查询
type RecipientResolver struct {
	directory Directory
	cache     *gocache.Cache
	logger    *zap.Logger
}

// NewRecipientResolver 创建接收人解析器
func NewRecipientResolver(directory Directory, logger *zap.Logger) *RecipientResolver {
	return &RecipientResolver{
		directory: directory,
		cache:     gocache.New(5*time.Minute, 10*time.Minute),
		logger:    logger,
	}
}

// Resolve 解析一条新告警的通知接收人
// 基础接收人为队员所在部门的 commander/admin；critical 及以上追加全部 admin；
// 医疗类告警追加全部 medic。目录数据缺失时降级为空集合，不报错。
func (r *RecipientResolver) Resolve(ctx context.Context, alert *models.Alert, subject *models.Firefighter) []*models.Firefighter {
	recipients := r.departmentCommand(ctx, subject.Department)

	if alert.Severity == models.SeverityCritical || alert.Severity == models.SeverityEmergency {
		recipients = append(recipients, r.byRole(ctx, models.RoleAdmin)...)
	}
	if alert.Type.IsMedical() {
		recipients = append(recipients, r.byRole(ctx, models.RoleMedic)...)
	}

	return dedupRecipients(recipients)
}

// ResolveEscalation 解析自动升级后的扩大接收人集合
// 在基础集合之上无条件追加全部 admin
func (r *RecipientResolver) ResolveEscalation(ctx context.Context, alert *models.Alert, subject *models.Firefighter) []*models.Firefighter {
	recipients := r.Resolve(ctx, alert, subject)
	recipients = append(recipients, r.byRole(ctx, models.RoleAdmin)...)
	return dedupRecipients(recipients)
}

func (r *RecipientResolver) departmentCommand(ctx context.Context, department string) []*models.Firefighter {
	if department == "" {
		return nil
	}

	cacheKey := "dept:" + department
	if cached, ok := r.cache.Get(cacheKey); ok {
		return cached.([]*models.Firefighter)
	}

	personnel, err := r.directory.ListByDepartment(ctx, department, models.RoleCommander, models.RoleAdmin)
	if err != nil {
		r.logger.Warn("Failed to resolve department command staff",
			zap.String("department", department),
			zap.Error(err),
		)
		return nil
	}

	r.cache.Set(cacheKey, personnel, gocache.DefaultExpiration)
	return personnel
}

func (r *RecipientResolver) byRole(ctx context.Context, role string) []*models.Firefighter {
	cacheKey := "role:" + role
	if cached, ok := r.cache.Get(cacheKey); ok {
		return cached.([]*models.Firefighter)
	}

	personnel, err := r.directory.ListByRole(ctx, role)
	if err != nil {
		r.logger.Warn("Failed to resolve personnel by role",
			zap.String("role", role),
			zap.Error(err),
		)
		return nil
	}

	r.cache.Set(cacheKey, personnel, gocache.DefaultExpiration)
	return personnel
}

func dedupRecipients(recipients []*models.Firefighter) []*models.Firefighter {
	seen := make(map[string]bool, len(recipients))
	result := make([]*models.Firefighter, 0, len(recipients))
	for _, p := range recipients {
		if p == nil || seen[p.FirefighterID] {
			continue
		}
		seen[p.FirefighterID] = true
		result = append(result, p)
	}
	return result
}
