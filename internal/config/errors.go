package config

import (
	"errors"
	"fmt"
)

// FieldError 提供字段路径与错误原因，便于在日志中定位配置问题。
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// newFieldError 创建包含字段路径与原因的 error。
func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// ErrConfigMissing 表示配置文件不存在或内容为空，需要写出默认文档。
var ErrConfigMissing = errors.New("config file missing or empty")
