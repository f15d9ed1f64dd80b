package logging

import (
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/kingstatic/kingstatic/internal/pipeline"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供审计事件的结构化字段，文件日志据此检索。
func RequestFields(event pipeline.AuditEvent) logrus.Fields {
	return logrus.Fields{
		"action":  "access",
		"client":  event.Client,
		"method":  event.Method,
		"path":    event.Path,
		"status":  event.Status,
		"outcome": string(event.Kind),
		"size":    humanize.Bytes(uint64(event.Bytes)),
	}
}
