package models

import "time"

// 人员角色（personnel.role）
const (
	RoleFirefighter = "firefighter"
	RoleCommander   = "commander"
	RoleAdmin       = "admin"
	RoleMedic       = "medic"
)

// Firefighter 人员档案（personnel 表，目录服务只读视图）
type Firefighter struct {
	FirefighterID    string    `json:"firefighter_id" db:"firefighter_id"`
	Name             string    `json:"name" db:"name"`
	Role             string    `json:"role" db:"role"`
	Department       string    `json:"department" db:"department"`
	DateOfBirth      time.Time `json:"date_of_birth" db:"date_of_birth"`
	RestingHeartRate *int      `json:"resting_heart_rate,omitempty" db:"resting_heart_rate"`
	NotifyURL        string    `json:"notify_url,omitempty" db:"notify_url"`
	Email            string    `json:"email,omitempty" db:"email"`
	Phone            string    `json:"phone,omitempty" db:"phone"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Age 按出生日期计算当前年龄（整岁）
// 以 (月, 日) 比较生日是否已过；YearDay 会在闰年错位一天
func (f *Firefighter) Age(now time.Time) int {
	age := now.Year() - f.DateOfBirth.Year()
	if now.Month() < f.DateOfBirth.Month() ||
		(now.Month() == f.DateOfBirth.Month() && now.Day() < f.DateOfBirth.Day()) {
		age--
	}
	if age < 0 {
		age = 0
	}
	return age
}

// MaxHeartRate 年龄预测最大心率（Tanaka 公式：208 − 0.7×age）
func (f *Firefighter) MaxHeartRate(now time.Time) float64 {
	return 208 - 0.7*float64(f.Age(now))
}

// CanMonitor 是否允许创建 monitor:<firefighterId> 订阅
func CanMonitor(role string) bool {
	switch role {
	case RoleCommander, RoleAdmin, RoleMedic:
		return true
	default:
		return false
	}
}
