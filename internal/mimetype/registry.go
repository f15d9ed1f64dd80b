package mimetype

import (
	"fmt"
	"strings"
)

// Fallback 是未知扩展名的默认 Content-Type。
const Fallback = "application/octet-stream"

// OverridePolicy 决定自定义 MIME 表与内置表的合并方式。
type OverridePolicy string

const (
	// PolicyReplace 只要存在任意自定义条目，就整体替换内置表（历史行为）。
	PolicyReplace OverridePolicy = "replace"
	// PolicyMerge 在内置表之上叠加自定义条目，同名键以自定义为准。
	PolicyMerge OverridePolicy = "merge"
)

// ParseOverridePolicy 将配置字符串标准化为 OverridePolicy，空串回退为 replace。
func ParseOverridePolicy(raw string) (OverridePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(PolicyReplace):
		return PolicyReplace, nil
	case string(PolicyMerge):
		return PolicyMerge, nil
	default:
		return "", fmt.Errorf("unsupported mime override policy: %s", raw)
	}
}

var defaultTypes = map[string]string{
	".html":  "text/html",
	".htm":   "text/html",
	".css":   "text/css",
	".js":    "application/javascript",
	".mjs":   "application/javascript",
	".json":  "application/json",
	".map":   "application/json",
	".xml":   "application/xml",
	".txt":   "text/plain",
	".log":   "text/plain",
	".md":    "text/markdown",
	".csv":   "text/csv",
	".cpp":   "text/plain",
	".h":     "text/plain",
	".go":    "text/plain",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".png":   "image/png",
	".gif":   "image/gif",
	".bmp":   "image/bmp",
	".ico":   "image/x-icon",
	".svg":   "image/svg+xml",
	".webp":  "image/webp",
	".avif":  "image/avif",
	".mp3":   "audio/mpeg",
	".wav":   "audio/wav",
	".ogg":   "audio/ogg",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".zip":   "application/zip",
	".gz":    "application/gzip",
	".tar":   "application/x-tar",
	".7z":    "application/x-7z-compressed",
	".rar":   "application/vnd.rar",
	".pdf":   "application/pdf",
	".chm":   "application/vnd.ms-htmlhelp",
	".wasm":  "application/wasm",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
}

// Registry 保存扩展名到 Content-Type 的映射，构造后只读，可被并发请求共享。
type Registry struct {
	types map[string]string
}

// New 根据自定义条目与策略构建 Registry。overrides 为空时总是使用内置表。
func New(overrides map[string]string, policy OverridePolicy) *Registry {
	types := make(map[string]string, len(defaultTypes)+len(overrides))

	normalized := make(map[string]string, len(overrides))
	for ext, contentType := range overrides {
		key := NormalizeExtension(ext)
		if key == "" || strings.TrimSpace(contentType) == "" {
			continue
		}
		normalized[key] = strings.TrimSpace(contentType)
	}

	if len(normalized) == 0 || policy != PolicyReplace {
		for ext, contentType := range defaultTypes {
			types[ext] = contentType
		}
	}
	for ext, contentType := range normalized {
		types[ext] = contentType
	}

	return &Registry{types: types}
}

// Default 返回仅包含内置表的 Registry。
func Default() *Registry {
	return New(nil, PolicyReplace)
}

// Resolve 取路径最后一段中最后一个 '.' 之后的扩展名进行查找，未命中时返回 Fallback。
func (r *Registry) Resolve(path string) string {
	ext := Extension(path)
	if ext == "" || r == nil {
		return Fallback
	}
	if contentType, ok := r.types[ext]; ok {
		return contentType
	}
	return Fallback
}

// Len 返回当前表中的条目数。
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.types)
}

// Extension 返回带前导点的小写扩展名；无扩展名时返回空串。
func Extension(path string) string {
	segment := path
	if idx := strings.LastIndexAny(segment, `/\`); idx >= 0 {
		segment = segment[idx+1:]
	}
	dot := strings.LastIndexByte(segment, '.')
	if dot < 0 || dot == len(segment)-1 {
		return ""
	}
	return strings.ToLower(segment[dot:])
}

// NormalizeExtension 统一配置里的扩展名写法：去空白、小写、补前导点。
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
