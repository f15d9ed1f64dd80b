package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/kingstatic/kingstatic/internal/config"
	"github.com/kingstatic/kingstatic/internal/docroot"
	"github.com/kingstatic/kingstatic/internal/logging"
	"github.com/kingstatic/kingstatic/internal/pipeline"
	"github.com/kingstatic/kingstatic/internal/server"
	"github.com/kingstatic/kingstatic/internal/server/routes"
	"github.com/kingstatic/kingstatic/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	rootDir     string
	noConfig    bool
	watch       bool
	diagnostics bool
	checkOnly   bool
	showVersion bool
}

// 文件日志滚动参数，单位与 lumberjack 一致（MB / 个）。
const (
	logMaxSizeMB  = 50
	logMaxBackups = 3
)

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runContext(ctx, opts)
}

// runContext 在 ctx 结束时优雅关闭 HTTP 服务。
func runContext(ctx context.Context, opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	logger, err := logging.InitLogger(logging.Options{Level: config.DefaultLogLevel, Output: stdOut})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	// 启动顺序：控制台日志 → 策略快照 → 文件日志 → 站点根目录 → pipeline/审计 → Fiber。
	// 配置加载期间只有控制台输出，文件日志开关取决于加载结果。
	errorsSeen := &levelCounter{level: logrus.ErrorLevel}
	logger.AddHook(errorsSeen)

	var store *config.Store
	if opts.noConfig {
		policy := config.Defaults("")
		policy.FileLogging = false
		store = config.NewStaticStore(policy)
		logger.WithFields(logging.BaseFields("noconfig", "")).Info("Running without a config file, using defaults")
	} else {
		store = config.NewStore(opts.configPath, logger)
	}
	policy := store.Current()

	if err := logging.SetLevel(logger, policy.LogLevel); err != nil {
		logger.WithFields(logging.BaseFields("log_level", opts.configPath)).Warn(err.Error())
	}

	if opts.checkOnly {
		return checkConfig(logger, opts, policy, errorsSeen.count())
	}

	if policy.FileLogging {
		hook, err := logging.EnableFileOutput(logger, logging.FileOptions{
			Path:       policy.LogFilePath,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
		})
		if err == nil {
			defer hook.Close()
		}
	}

	files, err := docroot.New(opts.rootDir)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化站点根目录失败: %v\n", err)
		return 1
	}

	if opts.watch && store.Path() != "" {
		if err := store.Watch(ctx); err != nil {
			logger.WithFields(logging.BaseFields("config_watch", store.Path())).WithError(err).Warn("配置热加载未启用")
		}
	}

	audit := logging.NewAuditSink(logger, logging.DefaultAuditBuffer)
	defer audit.Close()

	resolver := pipeline.New(store, files, logger)

	fields := logging.BaseFields("startup", store.Path())
	fields["root"] = files.Root()
	fields["listen"] = policy.ListenAddress()
	fields["blacklist"] = len(policy.Blacklist)
	fields["file_logging"] = policy.FileLogging
	fields["hide_public_ip"] = policy.RedactPublicIP
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	var diagnosticsPaths []string
	if opts.diagnostics {
		diagnosticsPaths = []string{routes.StatusPath}
	}
	app, err := server.NewApp(server.AppOptions{
		Logger:           logger,
		Resolver:         resolver,
		Audit:            audit,
		DiagnosticsPaths: diagnosticsPaths,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	if opts.diagnostics {
		routes.RegisterStatusRoutes(app, routes.StatusOptions{
			Policies: store,
			Audit:    audit,
			Root:     files.Root(),
		})
	}

	if err := startHTTPServer(ctx, app, policy.ListenAddress(), logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

func checkConfig(logger *logrus.Logger, opts cliOptions, policy *config.Policy, loadErrors int64) int {
	fields := logging.BaseFields("check_config", opts.configPath)
	fields["listen"] = policy.ListenAddress()
	fields["blacklist"] = len(policy.Blacklist)
	fields["mime_types"] = policy.Mime().Len()

	if err := policy.Validate(); err != nil {
		fields["result"] = "invalid"
		logger.WithFields(fields).WithError(err).Error("配置校验失败")
		return 1
	}
	if loadErrors > 0 {
		fields["result"] = "invalid"
		fields["errors"] = loadErrors
		logger.WithFields(fields).Error("配置校验失败")
		return 1
	}

	fields["result"] = "ok"
	logger.WithFields(fields).Info("配置校验通过")
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径与站点根目录。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("kingstatic", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag  string
		rootFlag    string
		noConfig    bool
		watch       bool
		diagnostics bool
		checkOnly   bool
		showVer     bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./ServerConfig.json，可被 KINGSTATIC_CONFIG 覆盖）")
	fs.StringVar(&rootFlag, "root", "", "站点根目录（默认当前目录，可被 KINGSTATIC_ROOT 覆盖）")
	fs.BoolVar(&noConfig, "noconfig", false, "不读取也不生成配置文件，使用内置默认值")
	fs.BoolVar(&watch, "watch", false, "配置文件变更时自动重载")
	fs.BoolVar(&diagnostics, "diagnostics", false, "启用 /-/status 诊断接口")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}
	if fs.NArg() > 0 {
		return cliOptions{}, fmt.Errorf("解析参数失败: 未知参数 %v", fs.Args())
	}

	path := envOrDefault(configFlag, "KINGSTATIC_CONFIG", config.DefaultConfigFile)
	root := envOrDefault(rootFlag, "KINGSTATIC_ROOT", ".")

	return cliOptions{
		configPath:  path,
		rootDir:     root,
		noConfig:    noConfig,
		watch:       watch,
		diagnostics: diagnostics,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// envOrDefault 按 flag → 环境变量 → 默认值的优先级取值。
func envOrDefault(flagValue, envKey, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return fallback
}

// startHTTPServer 阻塞直到监听失败或 ctx 结束。绑定失败直接返回错误，不做重试。
func startHTTPServer(ctx context.Context, app *fiber.App, addr string, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"addr":   addr,
	}).Info("Fiber 服务启动")

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	logger.WithFields(logrus.Fields{
		"action": "shutdown",
		"addr":   addr,
	}).Info("Fiber 服务关闭")
	if err := app.Shutdown(); err != nil {
		return err
	}
	return <-listenErr
}

// levelCounter 统计指定级别及更严重的日志条数，--check-config 据此判断加载是否出错。
type levelCounter struct {
	level logrus.Level
	n     atomic.Int64
}

func (h *levelCounter) Levels() []logrus.Level {
	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= h.level {
			levels = append(levels, l)
		}
	}
	return levels
}

func (h *levelCounter) Fire(*logrus.Entry) error {
	h.n.Add(1)
	return nil
}

func (h *levelCounter) count() int64 {
	return h.n.Load()
}
