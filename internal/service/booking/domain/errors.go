package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound 实体不存在。读操作用它表达"没有"，而不是返回 nil, nil
	ErrNotFound = errors.New("entity not found")
	// ErrDuplicate 违反唯一约束（邮箱、促销码）
	ErrDuplicate = errors.New("duplicate entity")
	// ErrValidation 写入的数据不满足插入约束
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized 会话缺失、过期或身份令牌无效
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError 携带每条未通过的规则说明，errors.Is(err, ErrValidation) 为真
type ValidationError struct {
	Schema     string
	Violations []string
}

func (e *ValidationError) Error() string {
	return e.Schema + ": " + strings.Join(e.Violations, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
