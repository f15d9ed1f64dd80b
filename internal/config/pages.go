package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// loadPage 读取自定义错误页。空串表示使用内置页面；相对路径以配置文件所在目录为基准；
// 文件缺失、不可读或为空时记录 WARNING 并回退到 fallback，保证总有可用的响应体。
func loadPage(baseDir, configured, kind string, fallback []byte, logger logrus.FieldLogger) []byte {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		return fallback
	}

	target := configured
	if !filepath.IsAbs(target) {
		target = filepath.Join(baseDir, target)
	}

	fields := logrus.Fields{
		"action": "custom_page",
		"page":   kind,
		"path":   target,
	}

	data, err := os.ReadFile(target)
	if err != nil {
		fields["action"] = "custom_page_missing"
		logger.WithFields(fields).WithError(err).Warn("The provided " + kind + " page was not found, using the built-in page")
		return fallback
	}
	if len(data) == 0 {
		logger.WithFields(fields).Warn("The provided " + kind + " page is empty, using the built-in page")
		return fallback
	}

	logger.WithFields(fields).Info("Custom " + kind + " page successfully loaded!")
	return data
}
