package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

var helpInfo = map[string]string{
	"ip":                 "The IP the server binds to in order to listen.",
	"port":               "The port the server listens on.",
	"blackListedPaths":   "Path prefixes that every client is denied access to, e.g. /private/ or /secret.txt.",
	"mimeTypesCustom":    "Custom MIME types keyed by extension, e.g. {\".md\": \"text/markdown\"}.",
	"mimeOverridePolicy": "replace: custom MIME types overwrite the whole built-in table. merge: they are layered on top of it.",
	"page403Custom":      "File served when a client requests a blacklisted path.",
	"page404Custom":      "File served when a client requests a file that does not exist.",
	"pageEmptyCustom":    "File served when a client requests a file that exists but is empty.",
	"useFileLogging":     "Also write logs to logFilePath.",
	"hidePublicIp":       "Hide public client addresses in logs; private addresses stay visible.",
	"logFilePath":        "Log file used when useFileLogging is true.",
	"logLevel":           "Minimum log level: debug, info, warning or error.",
}

var comments = map[string]string{
	"_comment0": "This is the default configuration for the server.",
	"_comment1": "Restart the server after editing this file unless it runs with --watch.",
	"_comment2": "If the server exits right after start, the port is probably in use or an option is malformed.",
	"_comment3": "Custom page paths may be absolute or relative to this file, e.g. ./my404.html.",
}

// DefaultDocument 返回带说明字段的默认配置文档。
func DefaultDocument(configPath string) Document {
	return Document{
		SchemaVersion:      SchemaVersion,
		HelpInfo:           helpInfo,
		Comments:           comments,
		IP:                 DefaultBindAddress,
		Port:               DefaultPort,
		BlackListedPaths:   defaultBlacklist(configPath, DefaultLogFile),
		MimeTypesCustom:    map[string]string{},
		MimeOverridePolicy: "replace",
		UseFileLogging:     true,
		HidePublicIP:       false,
		LogFilePath:        DefaultLogFile,
		LogLevel:           DefaultLogLevel,
	}
}

// Bootstrap 以 4 空格缩进写出默认配置文档。通过临时文件 + rename 保证写入原子性。
func Bootstrap(path string) error {
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := json.MarshalIndent(DefaultDocument(path), "", "    ")
	if err != nil {
		return fmt.Errorf("编码默认配置失败: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*")
	if err != nil {
		return fmt.Errorf("写入默认配置失败: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, 0o644)
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("写入默认配置失败: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("写入默认配置失败: %w", err)
	}
	return nil
}
