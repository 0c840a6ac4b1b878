package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mdtangle/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// OutputDir: 输出根目录（必需）。
	OutputDir string `json:"output_dir"`
	// TruncateOnFirstOpen: 本次运行中首次打开某文件时截断，之后追加。
	// 默认 true，保证重复运行结果一致；显式 false 时始终追加到已有内容之后。
	TruncateOnFirstOpen *bool `json:"truncate_on_first_open,omitempty"`
	// PermFile/PermDir: 可选权限；为 0 表示使用实现/平台默认。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用实现默认。
	BufSize int `json:"buf_size,omitempty"`
}

// FS 以输出根目录为界的追加存储。同一时刻只允许一个打开的句柄。
type FS struct {
	root     string
	truncate bool
	permF    os.FileMode
	permD    os.FileMode
	bufSize  int

	mu   sync.Mutex
	busy bool
	seen map[string]struct{}
}

// New 创建文件系统存储。
func New(opts *Options) (*FS, error) {
	if opts == nil || strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("%w: filesystem storage requires output_dir", contract.ErrInvalidInput)
	}
	bsz := opts.BufSize
	if bsz <= 0 {
		bsz = 64 * 1024
	}
	pf := opts.PermFile
	if pf == 0 {
		pf = 0o644
	}
	pd := opts.PermDir
	if pd == 0 {
		pd = 0o755
	}
	truncate := true
	if opts.TruncateOnFirstOpen != nil {
		truncate = *opts.TruncateOnFirstOpen
	}
	return &FS{
		root:     opts.OutputDir,
		truncate: truncate,
		permF:    pf,
		permD:    pd,
		bufSize:  bsz,
		seen:     make(map[string]struct{}),
	}, nil
}

var _ contract.Storage = (*FS)(nil)

// Root 返回输出根目录。
func (s *FS) Root() string { return s.root }

// OpenAppend 打开 p 对应文件用于追加；父目录按需创建。
func (s *FS) OpenAppend(ctx context.Context, p contract.Path) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dest, err := s.mapPath(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return nil, contract.ErrHandleBusy
	}
	if err := os.MkdirAll(filepath.Dir(dest), s.permD); err != nil {
		return nil, err
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if _, ok := s.seen[dest]; !ok && s.truncate {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(dest, flags, s.permF)
	if err != nil {
		return nil, err
	}
	s.seen[dest] = struct{}{}
	s.busy = true
	return &handle{ctx: ctx, f: f, bw: bufio.NewWriterSize(f, s.bufSize), release: s.release}, nil
}

func (s *FS) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// mapPath: Clean + Join + 越界校验。
// 禁止空路径、绝对路径、父级逃逸、Windows 卷名。
func (s *FS) mapPath(p contract.Path) (string, error) {
	raw := strings.TrimSpace(string(p))
	if raw == "" {
		return "", contract.ErrPathInvalid
	}
	rel := filepath.Clean(filepath.FromSlash(raw))
	if rel == "." {
		return "", contract.ErrPathInvalid
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(raw, "/") {
		return "", contract.ErrPathInvalid
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", contract.ErrPathInvalid
	}
	if vol := filepath.VolumeName(rel); vol != "" {
		return "", contract.ErrPathInvalid
	}
	return filepath.Join(s.root, rel), nil
}

// handle: 缓冲追加句柄；每次 Write 前检查 ctx。Close 幂等。
type handle struct {
	ctx     context.Context
	f       *os.File
	bw      *bufio.Writer
	release func()
	closed  bool
}

func (h *handle) Write(p []byte) (int, error) {
	if h.closed {
		return 0, os.ErrClosed
	}
	if err := h.ctx.Err(); err != nil {
		return 0, err
	}
	return h.bw.Write(p)
}

func (h *handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	defer h.release()
	ferr := h.bw.Flush()
	cerr := h.f.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}
