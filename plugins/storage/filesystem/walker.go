package filesystem

import (
	"context"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mdtangle/pkg/contract"
)

// WalkOptions: 输入遍历选项。
type WalkOptions struct {
	// ExcludeDirNames: 在扫描目录时跳过这些目录名（基名完全匹配，忽略大小写）。
	// 例如 [".git","node_modules","vendor"]。仅影响目录递归，不影响单文件 root。
	ExcludeDirNames []string `json:"exclude_dir_names,omitempty"`
	// IncludeExts: 目录递归时仅收录这些扩展名（忽略大小写）；默认 [".md", ".markdown"]。
	// 单文件 root 不受限制。
	IncludeExts []string `json:"include_exts,omitempty"`
}

// DefaultIncludeExts 为目录遍历默认收录的扩展名。
var DefaultIncludeExts = []string{".md", ".markdown"}

// Walker 遍历文件系统与 STDIN，产出文件源描述符。
type Walker struct {
	excludeDir map[string]struct{}
	includeExt map[string]struct{}
	stdin      io.Reader
}

// NewWalker 创建遍历器。
func NewWalker(opts *WalkOptions) *Walker {
	ex := make(map[string]struct{})
	exts := DefaultIncludeExts
	if opts != nil {
		for _, name := range opts.ExcludeDirNames {
			if name = strings.TrimSpace(name); name != "" {
				ex[strings.ToLower(name)] = struct{}{}
			}
		}
		if len(opts.IncludeExts) > 0 {
			exts = opts.IncludeExts
		}
	}
	inc := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		inc[e] = struct{}{}
	}
	return &Walker{excludeDir: ex, includeExt: inc, stdin: os.Stdin}
}

var _ contract.Walker = (*Walker)(nil)

// Walk 按稳定顺序产出 root 下的源：
// - "-"：读取 STDIN 全部内容为一个无名文本源；
// - 常规文件（含指向常规文件的符号链接）：逻辑名为其基名；
// - 目录：递归，先子目录后文件，均按字典序；逻辑名为相对 root 的路径（正斜杠）。
// 目录符号链接与非常规文件被忽略。
func (w *Walker) Walk(ctx context.Context, root string) iter.Seq2[contract.Source, error] {
	return func(yield func(contract.Source, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(contract.Source{}, err)
			return
		}
		if root == "-" {
			data, err := io.ReadAll(w.stdin)
			if err != nil {
				yield(contract.Source{}, err)
				return
			}
			yield(contract.FromBytes(data), nil)
			return
		}

		info, err := os.Lstat(root)
		if err != nil {
			yield(contract.Source{}, err)
			return
		}
		if info.Mode()&os.ModeSymlink != 0 {
			t, err := os.Stat(root)
			if err != nil {
				yield(contract.Source{}, err)
				return
			}
			if t.Mode().IsRegular() {
				yield(contract.FromFile(root).Named(filepath.Base(root)), nil)
			}
			return
		}
		if info.IsDir() {
			w.walkDir(ctx, root, root, yield)
			return
		}
		if info.Mode().IsRegular() {
			yield(contract.FromFile(root).Named(filepath.Base(root)), nil)
		}
	}
}

// walkDir 返回 false 表示已停止（消费方中止或已产出错误）。
func (w *Walker) walkDir(ctx context.Context, root, dir string, yield func(contract.Source, error) bool) bool {
	if err := ctx.Err(); err != nil {
		yield(contract.Source{}, err)
		return false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		yield(contract.Source{}, err)
		return false
	}
	// 稳定顺序：字典序
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	// 先目录（不跟随目录符号链接）
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, skip := w.excludeDir[strings.ToLower(e.Name())]; skip {
			continue
		}
		if !w.walkDir(ctx, root, filepath.Join(dir, e.Name()), yield) {
			return false
		}
	}
	// 再文件（允许指向常规文件的符号链接）
	for _, e := range entries {
		if e.IsDir() || !w.included(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			yield(contract.Source{}, err)
			return false
		}
		p := filepath.Join(dir, e.Name())
		if e.Type()&os.ModeSymlink != 0 {
			t, err := os.Stat(p)
			if err != nil {
				yield(contract.Source{}, err)
				return false
			}
			if !t.Mode().IsRegular() {
				continue
			}
		} else if !e.Type().IsRegular() {
			// 非常规文件（如 FIFO、设备）跳过
			continue
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			yield(contract.Source{}, err)
			return false
		}
		if !yield(contract.FromFile(p).Named(filepath.ToSlash(rel)), nil) {
			return false
		}
	}
	return true
}

func (w *Walker) included(name string) bool {
	if len(w.includeExt) == 0 {
		return true
	}
	_, ok := w.includeExt[strings.ToLower(filepath.Ext(name))]
	return ok
}
