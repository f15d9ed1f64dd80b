package config

import (
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对快照做语义级校验，--check-config 与静态快照构造时使用。
func (p *Policy) Validate() error {
	if p == nil {
		return errors.New("策略为空")
	}
	if strings.TrimSpace(p.BindAddress) == "" {
		return newFieldError("ip", "不能为空")
	}
	if err := validatePort(p.BindPort); err != nil {
		return err
	}
	if len(p.Page404) == 0 {
		return newFieldError("page404Custom", "响应体不能为空")
	}
	if len(p.Page403) == 0 {
		return newFieldError("page403Custom", "响应体不能为空")
	}
	if len(p.PageEmpty) == 0 {
		return newFieldError("pageEmptyCustom", "响应体不能为空")
	}
	if p.FileLogging && strings.TrimSpace(p.LogFilePath) == "" {
		return newFieldError("logFilePath", "启用文件日志时不能为空")
	}
	return validateLogLevel(p.LogLevel)
}

func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return newFieldError("port", "必须在 0-65535")
	}
	return nil
}

func validateLogLevel(level string) error {
	if _, err := logrus.ParseLevel(strings.TrimSpace(level)); err != nil {
		return newFieldError("logLevel", err.Error())
	}
	return nil
}

// normalizeBlacklist 去除首尾空白并丢弃空前缀，空前缀会匹配所有路径。
func normalizeBlacklist(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if trimmed := strings.TrimSpace(entry); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
