package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Store 持有当前策略快照。读路径只做一次原子加载，热加载时整体替换指针，
// 因此并发请求无需加锁，也不会观察到半更新的策略。
type Store struct {
	path    string
	logger  logrus.FieldLogger
	current atomic.Pointer[Policy]
	reloads atomic.Int64

	reloadDelay time.Duration
	watching    sync.WaitGroup
}

// DefaultReloadDelay 是写入事件之后、触发重载之前的静默期。
const DefaultReloadDelay = 200 * time.Millisecond

// NewStore 通过 Load 构建初始快照；配置缺失时会写出默认文档。
func NewStore(path string, logger logrus.FieldLogger) *Store {
	if path == "" {
		path = DefaultConfigFile
	}
	s := &Store{path: path, logger: ensureLogger(logger), reloadDelay: DefaultReloadDelay}
	s.current.Store(Load(path, s.logger))
	return s
}

// NewStaticStore 包装一个固定快照，不关联配置文件（--noconfig 与测试使用）。
func NewStaticStore(p *Policy) *Store {
	if p == nil {
		p = Defaults("")
	}
	s := &Store{logger: ensureLogger(nil), reloadDelay: DefaultReloadDelay}
	s.current.Store(p)
	return s
}

// Current 返回当前快照，调用方不得修改返回值。
func (s *Store) Current() *Policy {
	return s.current.Load()
}

// Path 返回关联的配置文件路径，静态快照返回空串。
func (s *Store) Path() string {
	return s.path
}

// Reloads 返回成功热加载的次数。
func (s *Store) Reloads() int64 {
	return s.reloads.Load()
}

// Reload 重新读取配置文件并原子替换快照。与启动阶段不同，文件缺失或整体无法解析时
// 保留旧快照并返回错误，不会写出默认文档。
func (s *Store) Reload() (*Policy, error) {
	if s.path == "" {
		return s.Current(), errors.New("store has no config file")
	}

	next, err := load(s.path, s.logger)
	if err != nil {
		s.logger.WithFields(baseFields("config_reload", s.path)).
			WithError(err).
			Warn("配置重载失败，继续使用当前策略")
		return s.Current(), err
	}

	s.current.Store(next)
	s.reloads.Add(1)
	s.logger.WithFields(baseFields("config_reload", s.path)).
		WithField("blacklist", len(next.Blacklist)).
		WithField("mime_types", next.Mime().Len()).
		Info("配置已重载")
	return next, nil
}

// Watch 监听配置文件所在目录，目标文件被写入或替换后，静默 reloadDelay 再触发 Reload，
// 以免读到写了一半的文件。ctx 结束时关闭监听器并退出后台协程。
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return errors.New("store has no config file")
	}

	target, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("监听配置失败: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("监听配置失败: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("监听配置失败: %w", err)
	}

	s.watching.Add(1)
	go s.watchLoop(ctx, watcher, target)

	s.logger.WithFields(baseFields("config_watch", s.path)).Info("开始监听配置文件变更")
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, target string) {
	defer s.watching.Done()
	defer watcher.Close()

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			debounce.Reset(s.reloadDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.WithFields(baseFields("config_watch", s.path)).WithError(err).Warn("配置监听出错")
		case <-debounce.C:
			if ctx.Err() != nil {
				return
			}
			s.Reload()
		}
	}
}
