package memory

import (
	"bytes"
	"context"
	"io"
	"os"
	"sort"
	"sync"

	"mdtangle/pkg/contract"
)

// Memory 以路径为键的内存存储：用于测试与演练。
// 打开不存在的路径时创建空内容（与追加语义一致），从不截断。
type Memory struct {
	mu    sync.Mutex
	files map[contract.Path]*bytes.Buffer
	order []contract.Path
	opens int
	busy  bool
}

// New 创建空的内存存储。
func New() *Memory {
	return &Memory{files: make(map[contract.Path]*bytes.Buffer)}
}

var _ contract.Storage = (*Memory)(nil)

// OpenAppend 返回 p 的追加句柄。
func (m *Memory) OpenAppend(ctx context.Context, p contract.Path) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return nil, contract.ErrHandleBusy
	}
	buf, ok := m.files[p]
	if !ok {
		buf = &bytes.Buffer{}
		m.files[p] = buf
		m.order = append(m.order, p)
	}
	m.busy = true
	m.opens++
	return &handle{m: m, buf: buf}, nil
}

// Get 返回 p 的当前内容。
func (m *Memory) Get(p contract.Path) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.files[p]
	if !ok {
		return "", false
	}
	return buf.String(), true
}

// Dump 返回全部文件内容的快照。
func (m *Memory) Dump() map[contract.Path]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[contract.Path]string, len(m.files))
	for p, buf := range m.files {
		out[p] = buf.String()
	}
	return out
}

// Paths 按首次创建顺序返回路径；sorted=true 时按字典序。
func (m *Memory) Paths(sorted bool) []contract.Path {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]contract.Path(nil), m.order...)
	if sorted {
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	}
	return out
}

// Opens 返回累计 OpenAppend 成功次数。
func (m *Memory) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Busy 报告当前是否有打开的句柄。
func (m *Memory) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

type handle struct {
	m      *Memory
	buf    *bytes.Buffer
	closed bool
}

func (h *handle) Write(p []byte) (int, error) {
	if h.closed {
		return 0, os.ErrClosed
	}
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	return h.buf.Write(p)
}

func (h *handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.m.mu.Lock()
	h.m.busy = false
	h.m.mu.Unlock()
	return nil
}
