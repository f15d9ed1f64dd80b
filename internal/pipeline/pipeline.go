package pipeline

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kingstatic/kingstatic/internal/config"
	"github.com/kingstatic/kingstatic/internal/docroot"
	"github.com/kingstatic/kingstatic/internal/identity"
)

const (
	indexPath = "/index.html"
	pageType  = "text/html"
)

// Pipeline 把请求映射为 Outcome。实例无可变状态，可被并发调用。
type Pipeline struct {
	policies PolicySource
	files    FileSystem
	logger   logrus.FieldLogger
}

// New 构造 Pipeline。logger 为 nil 时丢弃日志。
func New(policies PolicySource, files FileSystem, logger logrus.FieldLogger) *Pipeline {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &Pipeline{policies: policies, files: files, logger: logger}
}

// Handle 解析单个请求。整个调用只读取一次策略快照，热加载不会让同一请求看到两份策略。
func (p *Pipeline) Handle(req Request) Outcome {
	policy := p.policies.Current()
	if policy == nil {
		policy = config.Defaults("")
	}

	rooted := req.Path
	if rooted == "" || rooted == "/" {
		rooted = indexPath
	}

	out := p.resolve(policy, rooted)
	out.Audit = AuditEvent{
		Client: identity.DisplayAddress(req.RemoteAddress, policy.RedactPublicIP),
		Method: req.Method,
		Path:   rooted,
		Status: out.Status,
		Kind:   out.Kind,
		Bytes:  len(out.Body),
	}
	return out
}

func (p *Pipeline) resolve(policy *config.Policy, rooted string) Outcome {
	// 同时比对规范化后的路径，"//secrets"、"/./secrets" 等写法不能绕过前缀。
	if Blacklisted(policy.Blacklist, rooted) || Blacklisted(policy.Blacklist, path.Clean("/"+rooted)) {
		return page(KindForbidden, http.StatusForbidden, policy.Page403)
	}

	target, err := docroot.Join(p.files.Root(), rooted)
	if err != nil {
		if errors.Is(err, docroot.ErrOutsideRoot) {
			p.logger.WithFields(logrus.Fields{
				"action": "path_outside_root",
				"path":   rooted,
			}).Warn("请求路径逃逸出站点根目录")
		}
		return page(KindNotFound, http.StatusNotFound, policy.Page404)
	}

	if !p.files.Exists(target) || p.files.IsDir(target) {
		return page(KindNotFound, http.StatusNotFound, policy.Page404)
	}

	body, err := p.files.ReadAll(target)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"action": "file_read_failed",
			"path":   rooted,
		}).WithError(err).Warn("读取文件失败")
		return page(KindEmpty, http.StatusNotFound, policy.PageEmpty)
	}
	if len(body) == 0 {
		return page(KindEmpty, http.StatusNotFound, policy.PageEmpty)
	}

	return Outcome{
		Kind:        KindOK,
		Status:      http.StatusOK,
		ContentType: policy.Mime().Resolve(target),
		Body:        body,
	}
}

// Blacklisted 报告 path 是否以任一黑名单前缀开头。空前缀被忽略。
func Blacklisted(prefixes []string, path string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func page(kind Kind, status int, body []byte) Outcome {
	return Outcome{Kind: kind, Status: status, ContentType: pageType, Body: body}
}
