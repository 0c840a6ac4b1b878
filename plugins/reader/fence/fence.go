package fence

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"mdtangle/pkg/contract"
	"mdtangle/plugins/reader/infostring"
)

// ErrUnclosedFence: 文本结束时仍有未闭合的围栏。
var ErrUnclosedFence = errors.New("unclosed fence")

// 开启围栏：至多 3 个空格缩进，3 个以上 ` 或 ~，其后为信息串。
var fenceOpenRe = regexp.MustCompile("^( {0,3})(`{3,}|~{3,})(.*)$")

// Options 为 Fence Reader 的可选配置。
type Options struct {
	// Langs: 仅保留这些语言的代码块（忽略大小写）；为空表示不限。
	Langs []string `json:"langs,omitempty"`
	// SkipLangs: 跳过这些语言的代码块。
	SkipLangs []string `json:"skip_langs,omitempty"`
	// AllowUnclosed: 文本结束时未闭合的围栏按闭合处理，而非报错。默认 false。
	AllowUnclosed bool `json:"allow_unclosed,omitempty"`
}

// Fence 逐行扫描任意文本中的围栏代码块，不解析其余 Markdown 结构。
// 适用于 LLM 输出、注释文档等非严格 Markdown 文本。
type Fence struct {
	filter        infostring.Filter
	allowUnclosed bool
}

// New 创建 Fence Reader。
func New(opts *Options) *Fence {
	r := &Fence{}
	if opts != nil {
		r.filter = infostring.NewFilter(opts.Langs, opts.SkipLangs)
		r.allowUnclosed = opts.AllowUnclosed
	}
	return r
}

var _ contract.Reader = (*Fence)(nil)

type open struct {
	indent int
	char   byte
	size   int
	lang   string
	attrs  []contract.Attr
	line   int
}

// Read 物化源并返回惰性代码块序列。
func (r *Fence) Read(ctx context.Context, src *contract.Source) (iter.Seq2[contract.CodeBlock, error], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := src.Materialize(); err != nil {
		return nil, err
	}
	txt, _ := src.Text()
	return func(yield func(contract.CodeBlock, error) bool) {
		var (
			cur  *open
			buf  strings.Builder
			rest = txt
			n    = 0
		)
		for rest != "" {
			var line string
			if i := strings.IndexByte(rest, '\n'); i >= 0 {
				line, rest = rest[:i+1], rest[i+1:]
			} else {
				line, rest = rest, ""
			}
			n++
			body := strings.TrimRight(line, "\r\n")

			if cur == nil {
				m := fenceOpenRe.FindStringSubmatch(body)
				if m == nil {
					continue
				}
				// 反引号围栏的信息串不得含反引号
				if m[2][0] == '`' && strings.Contains(m[3], "`") {
					continue
				}
				lang, attrs := infostring.Parse(m[3])
				cur = &open{indent: len(m[1]), char: m[2][0], size: len(m[2]), lang: lang, attrs: attrs, line: n}
				buf.Reset()
				continue
			}

			if closes(body, cur) {
				if r.filter.Keep(cur.lang) {
					if !yield(contract.NewCodeBlock(cur.lang, buf.String(), cur.attrs...), nil) {
						return
					}
				}
				cur = nil
				continue
			}
			buf.WriteString(dedent(line, cur.indent))
		}
		if cur != nil {
			if !r.allowUnclosed {
				yield(contract.CodeBlock{}, fmt.Errorf("%w: opened at line %d", ErrUnclosedFence, cur.line))
				return
			}
			if r.filter.Keep(cur.lang) {
				yield(contract.NewCodeBlock(cur.lang, buf.String(), cur.attrs...), nil)
			}
		}
	}, nil
}

// closes 报告 body 是否为 cur 的闭合围栏：至多 3 个空格缩进、同字符、长度不短于开启围栏、其后仅空白。
func closes(body string, cur *open) bool {
	s := strings.TrimLeft(body, " ")
	if len(body)-len(s) > 3 {
		return false
	}
	k := 0
	for k < len(s) && s[k] == cur.char {
		k++
	}
	return k >= cur.size && strings.TrimSpace(s[k:]) == ""
}

// dedent 去掉至多 indent 个前导空格。
func dedent(line string, indent int) string {
	for i := 0; i < indent && strings.HasPrefix(line, " "); i++ {
		line = line[1:]
	}
	return line
}
