package docroot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot 表示请求路径拼接后逃逸出站点根目录。
var ErrOutsideRoot = errors.New("path escapes server root")

// FS 以 root 为根目录提供只读文件原语，整站复用一份实例。
type FS struct {
	root string
}

// New 解析 root 的绝对路径并确认其为目录。
func New(root string) (*FS, error) {
	if root == "" {
		return nil, errors.New("server root required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve server root: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat server root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("server root %s is not a directory", abs)
	}

	return &FS{root: abs}, nil
}

// Root 返回站点根目录的绝对路径。
func (f *FS) Root() string {
	return f.root
}

// Exists 报告路径是否存在（文件或目录均可）。
func (f *FS) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// IsDir 报告路径是否为目录；不存在时返回 false。
func (f *FS) IsDir(name string) bool {
	info, err := os.Stat(name)
	return err == nil && info.IsDir()
}

// ReadAll 读取完整文件内容。目录返回 fs.ErrInvalid。
func (f *FS) ReadAll(name string) ([]byte, error) {
	info, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fs.ErrInvalid
	}
	return os.ReadFile(name)
}

// Join 将 URL 风格的请求路径直接拼接到 root 下；拼接结果经 ".." 逃逸出 root 时
// 返回 ErrOutsideRoot。符号链接不做解析。
func Join(root, requestPath string) (string, error) {
	joined := filepath.Join(root, filepath.FromSlash(requestPath))
	if !Within(root, joined) {
		return "", ErrOutsideRoot
	}
	return joined, nil
}

// Within 报告 target 是否等于 root 或位于其子树中。
func Within(root, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(target))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
