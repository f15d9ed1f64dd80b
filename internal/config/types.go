package config

import (
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kingstatic/kingstatic/internal/mimetype"
)

const (
	// DefaultConfigFile 是未显式指定时读取/生成的配置文件名。
	DefaultConfigFile = "ServerConfig.json"
	// DefaultLogFile 是文件日志的默认输出位置。
	DefaultLogFile = "ServerLogs.log"
	// DefaultBindAddress 监听全部网卡。
	DefaultBindAddress = "0.0.0.0"
	// DefaultPort 是历史版本沿用的默认端口。
	DefaultPort = 6432
	// DefaultLogLevel 对应 logrus 的 info 级别。
	DefaultLogLevel = "info"
	// SchemaVersion 标记默认文档的结构版本，字段语义变化时递增。
	SchemaVersion = 1
)

// 内置错误页，在未配置或自定义页面不可读时使用。
const (
	BuiltinPage404   = "<h3 style='color: red;'>404 - File Not found</h3>"
	BuiltinPageEmpty = "<h3 style='color: red;'>404 - File was found but is empty</h3>"
	BuiltinPage403   = "<h3 style='color: red;'>403 - File Forbidden</h3>"
)

// Document 是磁盘上 JSON 配置文件的结构，Bootstrap 按此结构写出默认文档。
type Document struct {
	SchemaVersion      int               `json:"schemaVersion"`
	HelpInfo           map[string]string `json:"helpInfo,omitempty"`
	Comments           map[string]string `json:"comments,omitempty"`
	IP                 string            `json:"ip"`
	Port               int               `json:"port"`
	BlackListedPaths   []string          `json:"blackListedPaths"`
	MimeTypesCustom    map[string]string `json:"mimeTypesCustom"`
	MimeOverridePolicy string            `json:"mimeOverridePolicy"`
	Page403Custom      string            `json:"page403Custom"`
	Page404Custom      string            `json:"page404Custom"`
	PageEmptyCustom    string            `json:"pageEmptyCustom"`
	UseFileLogging     bool              `json:"useFileLogging"`
	HidePublicIP       bool              `json:"hidePublicIp"`
	LogFilePath        string            `json:"logFilePath"`
	LogLevel           string            `json:"logLevel"`
}

// Policy 是一次加载得到的只读策略快照。构造完成后不再修改，热加载时整体替换。
type Policy struct {
	BindAddress    string
	BindPort       int
	Blacklist      []string
	MimeOverrides  map[string]string
	MimePolicy     mimetype.OverridePolicy
	Page404        []byte
	Page403        []byte
	PageEmpty      []byte
	FileLogging    bool
	RedactPublicIP bool
	LogFilePath    string
	LogLevel       string

	// Source 记录快照来源的配置路径；--noconfig 时为空。
	Source string
	// LoadedAt 是快照构建时间，供诊断端输出。
	LoadedAt time.Time
	// Bootstrapped 表示本次运行写出了默认配置文件。
	Bootstrapped bool

	mime *mimetype.Registry
}

// Defaults 返回内存默认策略。configPath 用于把配置文件自身加入黑名单。
func Defaults(configPath string) *Policy {
	p := &Policy{
		BindAddress:    DefaultBindAddress,
		BindPort:       DefaultPort,
		Blacklist:      defaultBlacklist(configPath, DefaultLogFile),
		MimeOverrides:  map[string]string{},
		MimePolicy:     mimetype.PolicyReplace,
		Page404:        []byte(BuiltinPage404),
		Page403:        []byte(BuiltinPage403),
		PageEmpty:      []byte(BuiltinPageEmpty),
		FileLogging:    true,
		RedactPublicIP: false,
		LogFilePath:    DefaultLogFile,
		LogLevel:       DefaultLogLevel,
		Source:         configPath,
	}
	return p.seal()
}

// Mime 返回与该快照绑定的 MIME 表。
func (p *Policy) Mime() *mimetype.Registry {
	if p == nil || p.mime == nil {
		return mimetype.Default()
	}
	return p.mime
}

// ListenAddress 返回 host:port 形式的监听地址。
func (p *Policy) ListenAddress() string {
	return net.JoinHostPort(p.BindAddress, strconv.Itoa(p.BindPort))
}

// seal 构建派生字段并记录加载时间，之后快照视为只读。
func (p *Policy) seal() *Policy {
	p.mime = mimetype.New(p.MimeOverrides, p.MimePolicy)
	p.LoadedAt = time.Now()
	return p
}

func defaultBlacklist(configPath, logPath string) []string {
	configName := DefaultConfigFile
	if configPath != "" {
		configName = filepath.Base(configPath)
	}
	logName := DefaultLogFile
	if logPath != "" {
		logName = filepath.Base(logPath)
	}
	if configName == logName {
		return []string{"/" + configName}
	}
	return []string{"/" + configName, "/" + logName}
}
