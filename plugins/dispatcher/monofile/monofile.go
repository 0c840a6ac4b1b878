package monofile

import (
	"strings"

	"mdtangle/pkg/contract"
)

// Options: 单文件分发器选项。
type Options struct {
	// Path: 全部代码块写入的目标文件（必需）。
	Path string `json:"path"`
}

// MonoFile 将所有代码块分发到同一文件：仅首个代码块返回目标，其后恒为 nil。
type MonoFile struct {
	path    contract.Path
	emitted bool
}

// New 创建单文件分发器。
func New(opts *Options) (*MonoFile, error) {
	if opts == nil || strings.TrimSpace(opts.Path) == "" {
		return nil, contract.ErrInvalidInput
	}
	return &MonoFile{path: contract.Path(opts.Path)}, nil
}

// For 以路径直接构造。
func For(p contract.Path) *MonoFile { return &MonoFile{path: p} }

var _ contract.Dispatcher = (*MonoFile)(nil)

func (m *MonoFile) Dispatch(contract.CodeBlock) *contract.Path {
	if m.emitted {
		return nil
	}
	m.emitted = true
	p := m.path
	return &p
}
