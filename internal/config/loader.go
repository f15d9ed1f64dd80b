package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/kingstatic/kingstatic/internal/mimetype"
)

// 兼容历史版本的字段别名，排在前面的键优先。
var (
	ipKeys        = []string{"ip", "hostName"}
	blacklistKeys = []string{"blackListedPaths", "blackListPaths"}
	page404Keys   = []string{"page404Custom", "custom404Path"}
	page403Keys   = []string{"page403Custom", "custom403Path"}
	pageEmptyKeys = []string{"pageEmptyCustom", "customEmptyPath"}
	mimeKeys      = []string{"mimeTypesCustom", "customMimeTypes"}
)

// Load 读取 JSON 配置并构建策略快照，任何错误都只记录日志而不向上传播：
// 文件不存在或内容为空时写出默认文档并使用内存默认值；文档无法解析时沿用默认值；
// 单个字段类型错误时仅该字段保留默认值。
func Load(path string, logger logrus.FieldLogger) *Policy {
	if path == "" {
		path = DefaultConfigFile
	}
	logger = ensureLogger(logger)

	policy, err := load(path, logger)
	switch {
	case err == nil:
		return policy
	case errors.Is(err, ErrConfigMissing):
		logger.WithFields(baseFields("config_bootstrap", path)).
			Info("A server config was not found. A new one has been written")
		if writeErr := Bootstrap(path); writeErr != nil {
			logger.WithFields(baseFields("config_bootstrap", path)).
				WithError(writeErr).
				Error("写出默认配置失败")
		}
		defaults := Defaults(path)
		defaults.Bootstrapped = true
		return defaults
	default:
		logger.WithFields(baseFields("config_parse_failed", path)).
			WithError(err).
			Error("Failed to parse config data, using defaults")
		return Defaults(path)
	}
}

// load 返回整文档级错误（缺失/不可读/语法错误）；字段级错误在内部记录并降级。
func load(path string, logger logrus.FieldLogger) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrConfigMissing
		}
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrConfigMissing
	}

	// 扩展名键本身包含 '.'，需要换掉 viper 默认的路径分隔符。
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	logger.WithFields(baseFields("config_load", path)).Info("Config found!")

	policy := Defaults(path)
	for _, fieldErr := range applyDocument(v, policy, filepath.Dir(path), logger) {
		logger.WithFields(baseFields("config_field_invalid", path)).
			WithError(fieldErr).
			Error("配置字段无效，保留默认值")
	}
	return policy.seal(), nil
}

// applyDocument 逐字段解码，返回所有字段级错误。
func applyDocument(v *viper.Viper, p *Policy, baseDir string, logger logrus.FieldLogger) []error {
	var errs []error

	decode := func(keys []string, target interface{}) bool {
		key, raw, ok := lookup(v, keys)
		if !ok {
			return false
		}
		if err := decodeField(raw, target); err != nil {
			errs = append(errs, newFieldError(key, err.Error()))
			return false
		}
		return true
	}

	var ip string
	if decode(ipKeys, &ip) {
		if ip = strings.TrimSpace(ip); ip == "" {
			errs = append(errs, newFieldError("ip", "不能为空"))
		} else {
			p.BindAddress = ip
		}
	}

	var port int
	if decode([]string{"port"}, &port) {
		if err := validatePort(port); err != nil {
			errs = append(errs, err)
		} else {
			p.BindPort = port
		}
	}

	var logFile string
	if decode([]string{"logFilePath"}, &logFile) {
		if logFile = strings.TrimSpace(logFile); logFile == "" {
			errs = append(errs, newFieldError("logFilePath", "不能为空"))
		} else {
			p.LogFilePath = logFile
		}
	}

	var blacklist []string
	if decode(blacklistKeys, &blacklist) {
		p.Blacklist = normalizeBlacklist(blacklist)
	} else {
		p.Blacklist = defaultBlacklist(p.Source, p.LogFilePath)
	}

	var policyName string
	if decode([]string{"mimeOverridePolicy"}, &policyName) {
		if parsed, err := mimetype.ParseOverridePolicy(policyName); err != nil {
			errs = append(errs, newFieldError("mimeOverridePolicy", err.Error()))
		} else {
			p.MimePolicy = parsed
		}
	}

	overrides := map[string]string{}
	applied := false
	for _, key := range mimeKeys {
		raw := v.Get(key)
		if raw == nil {
			continue
		}
		entries, ok, mimeErrs := parseMimeOverrides(key, raw)
		for _, err := range mimeErrs {
			logger.WithFields(baseFields("config_mime_entry_skipped", p.Source)).WithError(err).Warn("自定义 MIME 条目已忽略")
		}
		if !ok {
			continue
		}
		applied = true
		for ext, contentType := range entries {
			overrides[ext] = contentType
		}
	}
	if applied {
		p.MimeOverrides = overrides
		logger.WithFields(baseFields("config_mime_loaded", p.Source)).
			WithField("entries", len(overrides)).
			WithField("policy", string(p.MimePolicy)).
			Info("Custom mime types loaded.")
	}

	var page string
	if decode(page404Keys, &page) {
		p.Page404 = loadPage(baseDir, page, "404", p.Page404, logger)
	}
	page = ""
	if decode(page403Keys, &page) {
		p.Page403 = loadPage(baseDir, page, "403", p.Page403, logger)
	}
	page = ""
	if decode(pageEmptyKeys, &page) {
		p.PageEmpty = loadPage(baseDir, page, "empty", p.PageEmpty, logger)
	}

	var flag bool
	if decode([]string{"useFileLogging"}, &flag) {
		p.FileLogging = flag
	}
	flag = false
	if decode([]string{"hidePublicIp"}, &flag) {
		p.RedactPublicIP = flag
	}

	var level string
	if decode([]string{"logLevel"}, &level) {
		if err := validateLogLevel(level); err != nil {
			errs = append(errs, err)
		} else {
			p.LogLevel = strings.ToLower(strings.TrimSpace(level))
		}
	}

	return errs
}

// lookup 按别名顺序查找第一个非 null 的键。
func lookup(v *viper.Viper, keys []string) (string, interface{}, bool) {
	for _, key := range keys {
		if raw := v.Get(key); raw != nil {
			return key, raw, true
		}
	}
	return "", nil, false
}

// decodeField 严格解码单个字段：类型不符即报错，例如 "6432"、true 都不能写入 int。
// JSON 数字统一为 float64，写入整型字段时必须是整数。
func decodeField(raw interface{}, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: wholeNumberHook,
		Result:     target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// wholeNumberHook 拒绝把带小数的数字截断写入整型字段。
func wholeNumberHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.Float64 && from.Kind() != reflect.Float32 {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f := reflect.ValueOf(data).Float()
		if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
			return nil, fmt.Errorf("expected whole number, got %v", f)
		}
	}
	return data, nil
}

// parseMimeOverrides 接受对象形式 {".md": "text/markdown"} 或单键对象数组
// [{".md": "text/markdown"}]；空值或其它形态返回 ok=false，保持内置表不变。
func parseMimeOverrides(key string, raw interface{}) (map[string]string, bool, []error) {
	switch value := raw.(type) {
	case map[string]interface{}:
		if len(value) == 0 {
			return nil, false, nil
		}
		out := make(map[string]string, len(value))
		var errs []error
		for ext, contentType := range value {
			s, ok := contentType.(string)
			if !ok || strings.TrimSpace(s) == "" {
				errs = append(errs, newFieldError(key+"."+ext, "必须是非空字符串"))
				continue
			}
			out[ext] = s
		}
		return out, len(out) > 0, errs
	case []interface{}:
		if len(value) == 0 {
			return nil, false, nil
		}
		out := make(map[string]string, len(value))
		var errs []error
		for i, item := range value {
			entry, ok := item.(map[string]interface{})
			if !ok || len(entry) != 1 {
				errs = append(errs, newFieldError(fmt.Sprintf("%s[%d]", key, i), "必须是只有一个键的对象"))
				continue
			}
			for ext, contentType := range entry {
				s, ok := contentType.(string)
				if !ok || strings.TrimSpace(s) == "" {
					errs = append(errs, newFieldError(fmt.Sprintf("%s[%d]", key, i), "必须是非空字符串"))
					continue
				}
				out[ext] = s
			}
		}
		return out, len(out) > 0, errs
	default:
		return nil, false, []error{newFieldError(key, fmt.Sprintf("不支持的类型 %T", raw))}
	}
}

func baseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

func ensureLogger(logger logrus.FieldLogger) logrus.FieldLogger {
	if logger != nil {
		return logger
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return discard
}
