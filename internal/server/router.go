package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kingstatic/kingstatic/internal/pipeline"
)

// Resolver turns a request view into an outcome. *pipeline.Pipeline is the
// production implementation; tests inject fakes.
type Resolver interface {
	Handle(pipeline.Request) pipeline.Outcome
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(pipeline.Request) pipeline.Outcome

// Handle makes ResolverFunc satisfy Resolver.
func (f ResolverFunc) Handle(req pipeline.Request) pipeline.Outcome {
	return f(req)
}

// AppOptions controls how the Fiber application serves requests.
type AppOptions struct {
	Logger   *logrus.Logger
	Resolver Resolver
	// Audit receives one event per resolved request. Optional.
	Audit pipeline.Auditor
	// DiagnosticsPaths lists the exact /-/ paths served by routes registered
	// after NewApp. Every other path, /-/ included, goes to the resolver.
	DiagnosticsPaths []string
}

const contextKeyRequestID = "_kingstatic_request_id"

// NewApp builds a Fiber application that sends every method and path through
// the resolver.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("resolver is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			opts.Logger.WithFields(logrus.Fields{
				"action":     "panic",
				"path":       requestPath(c),
				"request_id": RequestID(c),
			}).Error(fmt.Sprint(e))
		},
	}))
	app.Use(requestIDMiddleware())

	app.All("/*", func(c fiber.Ctx) error {
		path := requestPath(c)
		if isDiagnosticsPath(path, opts.DiagnosticsPaths) {
			return c.Next()
		}
		return serveOutcome(c, opts, path)
	})

	return app, nil
}

func serveOutcome(c fiber.Ctx, opts AppOptions, path string) error {
	out := opts.Resolver.Handle(pipeline.Request{
		Method:        c.Method(),
		Path:          path,
		RemoteAddress: c.IP(),
	})
	if opts.Audit != nil {
		opts.Audit.Emit(out.Audit)
	}

	if out.Kind != pipeline.KindOK {
		opts.Logger.WithFields(logrus.Fields{
			"action":     "resolve",
			"path":       out.Audit.Path,
			"outcome":    string(out.Kind),
			"request_id": RequestID(c),
		}).Debug("request not served")
	}

	c.Set(fiber.HeaderContentType, out.ContentType)
	return c.Status(out.Status).Send(out.Body)
}

// requestIDMiddleware 为每个请求生成 ID，并写回 X-Request-ID 响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// requestPath 返回 fasthttp 解码并规范化后的路径。
func requestPath(c fiber.Ctx) string {
	return string(c.Request().URI().Path())
}

func isDiagnosticsPath(path string, registered []string) bool {
	if !strings.HasPrefix(path, "/-/") {
		return false
	}
	for _, candidate := range registered {
		if path == candidate {
			return true
		}
	}
	return false
}
