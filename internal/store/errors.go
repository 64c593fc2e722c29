package store

import "errors"

// 错误类别（errors.Is 判别）
// 边界层映射：ErrNotFound → 404，ErrValidation → 400，ErrNotActive → 409，其余 → 500
var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("not found")

	// ErrNotActive 告警已处于终态或不满足当前操作要求的状态
	ErrNotActive = errors.New("alert not active")

	// ErrValidation 入参校验失败
	ErrValidation = errors.New("validation failed")
)
