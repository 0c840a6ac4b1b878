package source

import (
	"mdtangle/pkg/contract"
)

// Options: 按源分发器选项。
type Options struct {
	// StripExt: 是否去掉源文件最后一段扩展名（"a.rs.md" -> "a.rs"）。默认 true。
	StripExt *bool `json:"strip_ext,omitempty"`
	// Ext: 替换后追加的扩展名（例如 ".txt"）；为空不追加。
	Ext string `json:"ext,omitempty"`
}

// BySource 将每个源的代码块分发到与源同名的相对路径：
// 每个源的首个代码块返回目标，其余返回 nil。需要流水线调用 BeginSource。
type BySource struct {
	strip   bool
	ext     string
	pending *contract.Path
}

// New 创建按源分发器。
func New(opts *Options) *BySource {
	strip := true
	var ext string
	if opts != nil {
		if opts.StripExt != nil {
			strip = *opts.StripExt
		}
		ext = opts.Ext
	}
	return &BySource{strip: strip, ext: ext}
}

var (
	_ contract.Dispatcher  = (*BySource)(nil)
	_ contract.SourceAware = (*BySource)(nil)
)

// BeginSource 记录下一个源的目标；源无逻辑名时沿用当前文件。
func (d *BySource) BeginSource(src contract.Source) {
	d.pending = nil
	if src.Name() == "" {
		return
	}
	p := contract.NormalizePath(src.Name())
	if d.strip {
		p = contract.StripExt(p)
	}
	p += contract.Path(d.ext)
	d.pending = &p
}

func (d *BySource) Dispatch(contract.CodeBlock) *contract.Path {
	p := d.pending
	d.pending = nil
	return p
}
