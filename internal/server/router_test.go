package server

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/kingstatic/kingstatic/internal/config"
	"github.com/kingstatic/kingstatic/internal/docroot"
	"github.com/kingstatic/kingstatic/internal/pipeline"
)

func TestRouterServesResolvedFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>home</h1>"), 0o644); err != nil {
		t.Fatalf("写入站点文件失败: %v", err)
	}
	app, audit := newPipelineApp(t, root)

	resp, err := app.Test(httptest.NewRequest("GET", "http://static.local/", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 status, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "<h1>home</h1>" {
		t.Fatalf("unexpected body: %s", body)
	}
	if ct := resp.Header.Get(fiber.HeaderContentType); ct != "text/html" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if reqID := resp.Header.Get("X-Request-ID"); reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	events := audit.all()
	if len(events) != 1 || events[0].Path != "/index.html" || events[0].Status != 200 {
		t.Fatalf("unexpected audit events: %+v", events)
	}
}

func TestRouterWritesErrorPages(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "empty.txt"), nil, 0o644); err != nil {
		t.Fatalf("写入站点文件失败: %v", err)
	}
	app, _ := newPipelineApp(t, root)

	cases := []struct {
		path   string
		status int
		body   string
	}{
		{"/ServerConfig.json", fiber.StatusForbidden, config.BuiltinPage403},
		{"/missing.txt", fiber.StatusNotFound, config.BuiltinPage404},
		{"/empty.txt", fiber.StatusNotFound, config.BuiltinPageEmpty},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", "http://static.local"+tc.path, nil))
		if err != nil {
			t.Fatalf("app.Test failed: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != tc.status || string(body) != tc.body {
			t.Fatalf("%s: expected %d %q, got %d %q", tc.path, tc.status, tc.body, resp.StatusCode, body)
		}
		if ct := resp.Header.Get(fiber.HeaderContentType); ct != "text/html" {
			t.Fatalf("%s: unexpected content type %s", tc.path, ct)
		}
	}
}

func TestRouterPassesMethodAndPath(t *testing.T) {
	var got pipeline.Request
	app := newResolverApp(t, ResolverFunc(func(req pipeline.Request) pipeline.Outcome {
		got = req
		return pipeline.Outcome{Kind: pipeline.KindOK, Status: 200, ContentType: "text/plain", Body: []byte("ok")}
	}))

	resp, err := app.Test(httptest.NewRequest("POST", "http://static.local/docs/a%20b.txt", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 status, got %d", resp.StatusCode)
	}
	if got.Method != "POST" || got.Path != "/docs/a b.txt" {
		t.Fatalf("unexpected request view: %+v", got)
	}
}

func TestRouterDiagnosticsPrefixDisabled(t *testing.T) {
	var called bool
	app := newResolverApp(t, ResolverFunc(func(req pipeline.Request) pipeline.Outcome {
		called = true
		return pipeline.Outcome{Kind: pipeline.KindNotFound, Status: 404, ContentType: "text/html", Body: []byte("nf")}
	}))

	resp, err := app.Test(httptest.NewRequest("GET", "http://static.local/-/status", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if !called || resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("disabled diagnostics should fall through to resolver (called=%v status=%d)", called, resp.StatusCode)
	}
}

func TestRouterDiagnosticsPrefixEnabled(t *testing.T) {
	var called bool
	app := newResolverApp(t, ResolverFunc(func(req pipeline.Request) pipeline.Outcome {
		called = true
		return pipeline.Outcome{Status: 404}
	}), "/-/ping")
	app.Get("/-/ping", func(c fiber.Ctx) error {
		return c.SendString("pong")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "http://static.local/-/ping", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if called || string(body) != "pong" {
		t.Fatalf("diagnostics route should bypass resolver (called=%v body=%s)", called, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("diagnostics responses should carry X-Request-ID")
	}
}

func TestRouterUnregisteredDiagnosticsPathUsesResolver(t *testing.T) {
	root := t.TempDir()
	app, audit := newPipelineApp(t, root, "/-/ping")
	app.Get("/-/ping", func(c fiber.Ctx) error {
		return c.SendString("pong")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "http://static.local/-/other", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusNotFound || string(body) != config.BuiltinPage404 {
		t.Fatalf("unregistered /-/ path should get the policy 404 page, got %d %q", resp.StatusCode, body)
	}
	if events := audit.all(); len(events) != 1 || events[0].Path != "/-/other" {
		t.Fatalf("unexpected audit events: %+v", events)
	}
}

func TestRouterRecoversFromPanic(t *testing.T) {
	app := newResolverApp(t, ResolverFunc(func(pipeline.Request) pipeline.Outcome {
		panic("boom")
	}))

	resp, err := app.Test(httptest.NewRequest("GET", "http://static.local/x", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", resp.StatusCode)
	}
}

func TestNewAppRequiresDependencies(t *testing.T) {
	if _, err := NewApp(AppOptions{}); err == nil {
		t.Fatalf("expected error without logger")
	}
	if _, err := NewApp(AppOptions{Logger: logrus.New()}); err == nil {
		t.Fatalf("expected error without resolver")
	}
}

type auditRecorder struct {
	mu     sync.Mutex
	events []pipeline.AuditEvent
}

func (r *auditRecorder) Emit(event pipeline.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *auditRecorder) all() []pipeline.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pipeline.AuditEvent(nil), r.events...)
}

func newPipelineApp(t *testing.T, root string, diagnostics ...string) (*fiber.App, *auditRecorder) {
	t.Helper()

	files, err := docroot.New(root)
	if err != nil {
		t.Fatalf("docroot init failed: %v", err)
	}
	logger := quietLogger()
	resolver := pipeline.New(config.NewStaticStore(config.Defaults(config.DefaultConfigFile)), files, logger)
	audit := &auditRecorder{}

	app, err := NewApp(AppOptions{
		Logger:           logger,
		Resolver:         resolver,
		Audit:            audit,
		DiagnosticsPaths: diagnostics,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app, audit
}

func newResolverApp(t *testing.T, resolver Resolver, diagnostics ...string) *fiber.App {
	t.Helper()

	app, err := NewApp(AppOptions{
		Logger:           quietLogger(),
		Resolver:         resolver,
		DiagnosticsPaths: diagnostics,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
