package markdown

import (
	"bytes"
	"context"
	"iter"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"mdtangle/pkg/contract"
	"mdtangle/plugins/reader/infostring"
)

// Options 为 Markdown Reader 的可选配置。
type Options struct {
	// Langs: 仅保留这些语言的代码块（忽略大小写）；为空表示不限。
	Langs []string `json:"langs,omitempty"`
	// SkipLangs: 跳过这些语言的代码块。
	SkipLangs []string `json:"skip_langs,omitempty"`
	// Indented: 同时收录缩进式代码块（无语言、无属性）。默认 false。
	Indented bool `json:"indented,omitempty"`
}

// Markdown 以 CommonMark 规则解析源文本，按文档顺序产出围栏代码块。
type Markdown struct {
	md       goldmark.Markdown
	filter   infostring.Filter
	indented bool
}

// New 创建 Markdown Reader。
func New(opts *Options) *Markdown {
	r := &Markdown{md: goldmark.New()}
	if opts != nil {
		r.filter = infostring.NewFilter(opts.Langs, opts.SkipLangs)
		r.indented = opts.Indented
	}
	return r
}

var _ contract.Reader = (*Markdown)(nil)

// Read 物化源并返回惰性代码块序列；解析在首次迭代时进行。
func (r *Markdown) Read(ctx context.Context, src *contract.Source) (iter.Seq2[contract.CodeBlock, error], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := src.Materialize(); err != nil {
		return nil, err
	}
	txt, _ := src.Text()
	source := []byte(txt)
	return func(yield func(contract.CodeBlock, error) bool) {
		doc := r.md.Parser().Parse(text.NewReader(source))
		_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
			if !entering {
				return ast.WalkContinue, nil
			}
			var b contract.CodeBlock
			switch node := n.(type) {
			case *ast.FencedCodeBlock:
				var info string
				if node.Info != nil {
					info = string(node.Info.Segment.Value(source))
				}
				lang, attrs := infostring.Parse(info)
				if !r.filter.Keep(lang) {
					return ast.WalkSkipChildren, nil
				}
				b = contract.NewCodeBlock(lang, content(node.Lines(), source), attrs...)
			case *ast.CodeBlock:
				if !r.indented || !r.filter.Keep("") {
					return ast.WalkSkipChildren, nil
				}
				b = contract.NewCodeBlock("", content(node.Lines(), source))
			default:
				return ast.WalkContinue, nil
			}
			if !yield(b, nil) {
				return ast.WalkStop, nil
			}
			return ast.WalkSkipChildren, nil
		})
	}, nil
}

// content 按原样拼接代码块各行（含被剥离缩进中保留的填充空格）。
func content(lines *text.Segments, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if seg.Padding > 0 {
			buf.WriteString(strings.Repeat(" ", seg.Padding))
		}
		buf.Write(seg.Value(source))
	}
	return buf.String()
}
