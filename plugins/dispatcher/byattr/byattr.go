package byattr

import (
	"strings"

	"mdtangle/pkg/contract"
)

// DefaultAttr 为未配置时使用的属性名。
const DefaultAttr = "file"

// Options: 按属性分发器选项。
type Options struct {
	// Attr: 属性名；为空使用 "file"。
	Attr string `json:"attr"`
}

// ByAttr 按代码块自身属性分发：取首个名称匹配的属性值作为目标，缺失则返回 nil。
// 不沿用上一代码块的目标；“缺省即同一文件”由事件流语义在写出端实现。
type ByAttr struct {
	name string
}

// New 创建按属性分发器。
func New(opts *Options) *ByAttr {
	name := DefaultAttr
	if opts != nil && strings.TrimSpace(opts.Attr) != "" {
		name = strings.TrimSpace(opts.Attr)
	}
	return &ByAttr{name: name}
}

// For 以属性名直接构造。
func For(name string) *ByAttr { return &ByAttr{name: name} }

var _ contract.Dispatcher = (*ByAttr)(nil)

func (d *ByAttr) Dispatch(b contract.CodeBlock) *contract.Path {
	v, ok := b.Lookup(d.name)
	if !ok {
		return nil
	}
	p := contract.Path(v)
	return &p
}

// Attr 返回生效的属性名。
func (d *ByAttr) Attr() string { return d.name }
