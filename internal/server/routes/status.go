package routes

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v3"

	"github.com/kingstatic/kingstatic/internal/config"
	"github.com/kingstatic/kingstatic/internal/server"
	"github.com/kingstatic/kingstatic/internal/version"
)

// PolicySource 暴露当前快照与热加载次数，config.Store 即为默认实现。
type PolicySource interface {
	Current() *config.Policy
	Reloads() int64
}

// DropCounter 暴露审计队列的丢弃计数，logging.AuditSink 即为默认实现。
type DropCounter interface {
	Dropped() int64
}

// StatusPath 为诊断接口的固定路径。
const StatusPath = "/-/status"

// StatusOptions 汇总 /-/status 所需的只读依赖。Audit 可为空。
type StatusOptions struct {
	Policies PolicySource
	Audit    DropCounter
	Root     string
}

// RegisterStatusRoutes 暴露 /-/status 诊断接口，需将 StatusPath 加入 server.AppOptions.DiagnosticsPaths。
func RegisterStatusRoutes(app *fiber.App, opts StatusOptions) {
	if app == nil || opts.Policies == nil {
		return
	}

	app.Get(StatusPath, func(c fiber.Ctx) error {
		var dropped int64
		if opts.Audit != nil {
			dropped = opts.Audit.Dropped()
		}
		return c.JSON(statusPayload{
			Version:   version.Full(),
			Root:      opts.Root,
			Policy:    encodePolicy(opts.Policies.Current()),
			Reloads:   opts.Policies.Reloads(),
			Audit:     auditPayload{Dropped: dropped},
			RequestID: server.RequestID(c),
		})
	})
}

type statusPayload struct {
	Version   string        `json:"version"`
	Root      string        `json:"root"`
	Policy    policyPayload `json:"policy"`
	Reloads   int64         `json:"reloads"`
	Audit     auditPayload  `json:"audit"`
	RequestID string        `json:"request_id,omitempty"`
}

type policyPayload struct {
	Source       string   `json:"source"`
	Bind         string   `json:"bind"`
	Blacklist    []string `json:"blacklist"`
	MimePolicy   string   `json:"mime_policy"`
	MimeTypes    int      `json:"mime_types"`
	FileLogging  bool     `json:"file_logging"`
	HidePublicIP bool     `json:"hide_public_ip"`
	LoadedAt     string   `json:"loaded_at"`
	LoadedAgo    string   `json:"loaded_ago"`
	Bootstrapped bool     `json:"bootstrapped"`
}

type auditPayload struct {
	Dropped int64 `json:"dropped"`
}

func encodePolicy(p *config.Policy) policyPayload {
	if p == nil {
		return policyPayload{}
	}
	return policyPayload{
		Source:       p.Source,
		Bind:         p.ListenAddress(),
		Blacklist:    append([]string{}, p.Blacklist...),
		MimePolicy:   string(p.MimePolicy),
		MimeTypes:    p.Mime().Len(),
		FileLogging:  p.FileLogging,
		HidePublicIP: p.RedactPublicIP,
		LoadedAt:     p.LoadedAt.Format(time.RFC3339),
		LoadedAgo:    humanize.Time(p.LoadedAt),
		Bootstrapped: p.Bootstrapped,
	}
}
