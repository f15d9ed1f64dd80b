package pipeline

import "github.com/kingstatic/kingstatic/internal/config"

// Kind 标识请求的终态分类。
type Kind string

const (
	KindOK        Kind = "ok"
	KindForbidden Kind = "forbidden"
	KindNotFound  Kind = "not_found"
	KindEmpty     Kind = "empty"
)

// Request 是传输层交给 pipeline 的只读请求视图。
type Request struct {
	Method        string
	Path          string
	RemoteAddress string
}

// Outcome 是一次解析的最终结果，由传输层原样写回客户端。
type Outcome struct {
	Kind        Kind
	Status      int
	ContentType string
	Body        []byte
	Audit       AuditEvent
}

// AuditEvent 描述一次请求的审计信息。Client 已按策略完成脱敏，只用于展示。
type AuditEvent struct {
	Client string
	Method string
	Path   string
	Status int
	Kind   Kind
	Bytes  int
}

// PolicySource 提供当前策略快照，config.Store 即为默认实现。
type PolicySource interface {
	Current() *config.Policy
}

// FileSystem 是 pipeline 依赖的文件原语，docroot.FS 即为默认实现。
type FileSystem interface {
	Root() string
	Exists(name string) bool
	IsDir(name string) bool
	ReadAll(name string) ([]byte, error)
}

// Auditor 接收审计事件。实现方负责自身的串行化，Emit 不得阻塞调用方。
type Auditor interface {
	Emit(event AuditEvent)
}

// AuditorFunc 将普通函数适配为 Auditor。
type AuditorFunc func(AuditEvent)

// Emit 调用 f(event)。
func (f AuditorFunc) Emit(event AuditEvent) {
	f(event)
}
