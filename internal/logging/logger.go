package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ConsoleTimestampFormat 是控制台日志的时间格式（日-月-年 时:分:秒）。
const ConsoleTimestampFormat = "02-01-06 15:04:05"

// Options 控制控制台日志。Output 为空时写入 stdout。
type Options struct {
	Level  string
	Output io.Writer
}

// FileOptions 控制滚动日志文件。
type FileOptions struct {
	Path       string
	MaxSize    int
	MaxBackups int
	Compress   bool
}

// InitLogger 创建控制台 logger。文件输出在策略加载完成后通过 EnableFileOutput 追加，
// 因此配置加载阶段的日志只会出现在控制台。
func InitLogger(opts Options) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("无法解析日志级别: %w", err)
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: ConsoleTimestampFormat,
	})

	logrus.SetFormatter(logger.Formatter)
	logrus.SetOutput(logger.Out)
	logrus.SetLevel(logger.GetLevel())

	return logger, nil
}

// SetLevel 在策略加载后按配置调整级别；无法解析时保持原级别并返回错误。
func SetLevel(logger *logrus.Logger, level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("无法解析日志级别: %w", err)
	}
	logger.SetLevel(parsed)
	logrus.SetLevel(parsed)
	return nil
}

// FileHook 以 JSON 行格式把日志追加到滚动文件，所有写入经同一把锁串行化。
type FileHook struct {
	mu        sync.Mutex
	writer    io.WriteCloser
	formatter logrus.Formatter
}

// EnableFileOutput 为 logger 追加文件输出。目录无法创建时不安装 hook，
// 记录 logger_fallback 并返回错误，控制台输出不受影响。
func EnableFileOutput(logger *logrus.Logger, opts FileOptions) (*FileHook, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("日志文件路径为空")
	}

	dir := filepath.Dir(opts.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		err = fmt.Errorf("创建日志目录失败: %w", err)
		logger.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"path":   opts.Path,
		}).Warn(err.Error())
		return nil, err
	}

	hook := &FileHook{
		writer: &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			Compress:   opts.Compress,
			LocalTime:  true,
		},
		formatter: &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano},
	}
	logger.AddHook(hook)
	return hook, nil
}

// Levels 实现 logrus.Hook，过滤交给 logger 自身的级别。
func (h *FileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire 实现 logrus.Hook。
func (h *FileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.writer.Write(line)
	return err
}

// Close 关闭底层文件。
func (h *FileHook) Close() error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writer.Close()
}
