package escalation

import (
	"context"
	"errors"
	"testing"

	"firewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeDirectory 内存版人员目录
type fakeDirectory struct {
	byDepartment map[string][]*models.Firefighter
	byRole       map[string][]*models.Firefighter
	deptCalls    int
	failAll      bool
}

func (d *fakeDirectory) GetFirefighter(_ context.Context, id string) (*models.Firefighter, error) {
	return nil, errors.New("not implemented")
}

func (d *fakeDirectory) ListByDepartment(_ context.Context, department string, _ ...string) ([]*models.Firefighter, error) {
	d.deptCalls++
	if d.failAll {
		return nil, errors.New("db down")
	}
	return d.byDepartment[department], nil
}

func (d *fakeDirectory) ListByRole(_ context.Context, role string) ([]*models.Firefighter, error) {
	if d.failAll {
		return nil, errors.New("db down")
	}
	return d.byRole[role], nil
}

func person(id, role, department string) *models.Firefighter {
	return &models.Firefighter{FirefighterID: id, Role: role, Department: department}
}

func recipientIDs(recipients []*models.Firefighter) []string {
	ids := make([]string, 0, len(recipients))
	for _, p := range recipients {
		ids = append(ids, p.FirefighterID)
	}
	return ids
}

func testAlert(alertType models.AlertType, severity models.Severity) *models.Alert {
	return &models.Alert{
		AlertID:       "alert-1",
		FirefighterID: "ff-001",
		Type:          alertType,
		Severity:      severity,
	}
}

func TestResolve_DepartmentCommandOnly(t *testing.T) {
	dir := &fakeDirectory{
		byDepartment: map[string][]*models.Firefighter{
			"station-1": {person("cmd-1", models.RoleCommander, "station-1")},
		},
		byRole: map[string][]*models.Firefighter{},
	}
	r := NewRecipientResolver(dir, zap.NewNop())

	// high 级非医疗告警：只通知部门指挥人员
	alert := testAlert(models.AlertFallDetected, models.SeverityHigh)
	subject := person("ff-001", models.RoleFirefighter, "station-1")

	recipients := r.Resolve(context.Background(), alert, subject)

	assert.Equal(t, []string{"cmd-1"}, recipientIDs(recipients))
}

func TestResolve_CriticalAddsAdmins(t *testing.T) {
	dir := &fakeDirectory{
		byDepartment: map[string][]*models.Firefighter{
			"station-1": {person("cmd-1", models.RoleCommander, "station-1")},
		},
		byRole: map[string][]*models.Firefighter{
			models.RoleAdmin: {person("admin-1", models.RoleAdmin, "hq")},
		},
	}
	r := NewRecipientResolver(dir, zap.NewNop())

	alert := testAlert(models.AlertFallDetected, models.SeverityCritical)
	subject := person("ff-001", models.RoleFirefighter, "station-1")

	recipients := r.Resolve(context.Background(), alert, subject)

	assert.ElementsMatch(t, []string{"cmd-1", "admin-1"}, recipientIDs(recipients))
}

func TestResolve_MedicalAddsMedics(t *testing.T) {
	dir := &fakeDirectory{
		byDepartment: map[string][]*models.Firefighter{
			"station-1": {person("cmd-1", models.RoleCommander, "station-1")},
		},
		byRole: map[string][]*models.Firefighter{
			models.RoleMedic: {person("medic-1", models.RoleMedic, "hq")},
		},
	}
	r := NewRecipientResolver(dir, zap.NewNop())

	// moderate 级医疗告警：部门指挥 + medic，不含 admin
	alert := testAlert(models.AlertHeartRateModerate, models.SeverityModerate)
	subject := person("ff-001", models.RoleFirefighter, "station-1")

	recipients := r.Resolve(context.Background(), alert, subject)

	assert.ElementsMatch(t, []string{"cmd-1", "medic-1"}, recipientIDs(recipients))
}

func TestResolve_DeduplicatesOverlap(t *testing.T) {
	// 同一 admin 既在部门指挥集合又在全局 admin 集合中，只出现一次
	admin := person("admin-1", models.RoleAdmin, "station-1")
	dir := &fakeDirectory{
		byDepartment: map[string][]*models.Firefighter{
			"station-1": {admin},
		},
		byRole: map[string][]*models.Firefighter{
			models.RoleAdmin: {admin},
		},
	}
	r := NewRecipientResolver(dir, zap.NewNop())

	alert := testAlert(models.AlertSCBAMalfunction, models.SeverityCritical)
	subject := person("ff-001", models.RoleFirefighter, "station-1")

	recipients := r.Resolve(context.Background(), alert, subject)

	assert.Equal(t, []string{"admin-1"}, recipientIDs(recipients))
}

func TestResolveEscalation_WidensToAllAdmins(t *testing.T) {
	dir := &fakeDirectory{
		byDepartment: map[string][]*models.Firefighter{
			"station-1": {person("cmd-1", models.RoleCommander, "station-1")},
		},
		byRole: map[string][]*models.Firefighter{
			models.RoleAdmin: {person("admin-1", models.RoleAdmin, "hq")},
		},
	}
	r := NewRecipientResolver(dir, zap.NewNop())

	// high 级告警本不通知 admin，升级后扩大到全部 admin
	alert := testAlert(models.AlertFallDetected, models.SeverityHigh)
	subject := person("ff-001", models.RoleFirefighter, "station-1")

	base := r.Resolve(context.Background(), alert, subject)
	assert.Equal(t, []string{"cmd-1"}, recipientIDs(base))

	escalated := r.ResolveEscalation(context.Background(), alert, subject)
	assert.ElementsMatch(t, []string{"cmd-1", "admin-1"}, recipientIDs(escalated))
}

func TestResolve_DirectoryFailureDegrades(t *testing.T) {
	dir := &fakeDirectory{failAll: true}
	r := NewRecipientResolver(dir, zap.NewNop())

	alert := testAlert(models.AlertHeartRateCritical, models.SeverityCritical)
	subject := person("ff-001", models.RoleFirefighter, "station-1")

	recipients := r.Resolve(context.Background(), alert, subject)
	assert.Empty(t, recipients)
}

func TestResolve_EmptyDepartment(t *testing.T) {
	dir := &fakeDirectory{byRole: map[string][]*models.Firefighter{}}
	r := NewRecipientResolver(dir, zap.NewNop())

	alert := testAlert(models.AlertFallDetected, models.SeverityHigh)
	subject := person("ff-001", models.RoleFirefighter, "")

	recipients := r.Resolve(context.Background(), alert, subject)
	assert.Empty(t, recipients)
	assert.Zero(t, dir.deptCalls)
}

func TestResolve_CachesDirectoryLookups(t *testing.T) {
	dir := &fakeDirectory{
		byDepartment: map[string][]*models.Firefighter{
			"station-1": {person("cmd-1", models.RoleCommander, "station-1")},
		},
		byRole: map[string][]*models.Firefighter{},
	}
	r := NewRecipientResolver(dir, zap.NewNop())

	alert := testAlert(models.AlertFallDetected, models.SeverityHigh)
	subject := person("ff-001", models.RoleFirefighter, "station-1")

	r.Resolve(context.Background(), alert, subject)
	r.Resolve(context.Background(), alert, subject)

	require.Equal(t, 1, dir.deptCalls)
}
