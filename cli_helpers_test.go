package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingstatic/kingstatic/internal/config"
)

// useBufferWriters swaps stdOut/stdErr with in-memory buffers for the duration
// of a test, allowing assertions on CLI output without polluting test logs.
func useBufferWriters(t *testing.T) {
	t.Helper()

	outBuf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}

	prevOut := stdOut
	prevErr := stdErr

	stdOut = outBuf
	stdErr = errBuf

	t.Cleanup(func() {
		stdOut = prevOut
		stdErr = prevErr
	})
}

// stdOutBuffer returns the in-use stdout buffer when useBufferWriters is active.
func stdOutBuffer() *bytes.Buffer {
	buf, _ := stdOut.(*bytes.Buffer)
	return buf
}

// stdErrBuffer returns the in-use stderr buffer when useBufferWriters is active.
func stdErrBuffer() *bytes.Buffer {
	buf, _ := stdErr.(*bytes.Buffer)
	return buf
}

// writeConfigFile writes a JSON config into a fresh temp dir.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	if err := os.WriteFile(file, []byte(strings.TrimSpace(content)), 0o600); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return file
}

// jsonConfig renders a loopback config on port with extra raw JSON members.
func jsonConfig(port int, extra ...string) string {
	members := append([]string{`"ip": "127.0.0.1"`, fmt.Sprintf(`"port": %d`, port)}, extra...)
	return "{" + strings.Join(members, ", ") + "}"
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("获取空闲端口失败: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

type runningServer struct {
	base   string
	cancel context.CancelFunc
	done   chan int
}

func (s *runningServer) url(path string) string {
	return s.base + path
}

// stop cancels the run context and returns the exit code.
func (s *runningServer) stop() int {
	s.cancel()
	select {
	case code := <-s.done:
		return code
	case <-time.After(10 * time.Second):
		return -1
	}
}

// startServer runs the CLI in the background and waits until the port answers.
func startServer(t *testing.T, opts cliOptions) *runningServer {
	t.Helper()

	policy := config.Load(opts.configPath, nil)
	ctx, cancel := context.WithCancel(context.Background())
	srv := &runningServer{
		base:   "http://" + policy.ListenAddress(),
		cancel: cancel,
		done:   make(chan int, 1),
	}
	go func() {
		srv.done <- runContext(ctx, opts)
	}()
	t.Cleanup(func() { cancel() })

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", policy.ListenAddress(), 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return srv
		}
		select {
		case code := <-srv.done:
			t.Fatalf("服务提前退出，退出码 %d", code)
		case <-time.After(20 * time.Millisecond):
		}
	}
	t.Fatalf("服务未在期限内就绪")
	return nil
}

func httpGet(t *testing.T, url string) (int, string) {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

// configFixture resolves a file under internal/config/testdata. Tests of the
// main package run with the module root as working directory.
func configFixture(t *testing.T, name string) string {
	t.Helper()

	path, err := filepath.Abs(filepath.Join("internal", "config", "testdata", name))
	if err != nil {
		t.Fatalf("解析配置样例路径失败: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("配置样例 %s 不存在: %v", name, err)
	}
	return path
}
