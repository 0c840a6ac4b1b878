// Package infostring 解析围栏代码块的信息串：语言与属性。
//
// 支持的形式：
//
//	rust file=src/main.rs
//	rust {file="src/a b.rs" mode=append}
//	{.rust #main file=src/main.rs}
//
// 无 "=" 的裸词记为值为空的属性；".x" 在未给出语言时作为语言，"#x" 记为 id 属性。
package infostring

import (
	"strings"

	"mdtangle/pkg/contract"
)

// Parse 拆分信息串为语言与属性（按出现顺序，名字可重复）。
func Parse(info string) (string, []contract.Attr) {
	s := strings.TrimSpace(info)
	if s == "" {
		return "", nil
	}
	var lang string
	if s[0] != '{' {
		i := strings.IndexAny(s, " \t{,")
		if i < 0 {
			return s, nil
		}
		lang, s = s[:i], strings.TrimSpace(s[i:])
	}
	if strings.HasPrefix(s, "{") {
		s = strings.TrimPrefix(s, "{")
		s = strings.TrimSuffix(strings.TrimSpace(s), "}")
	}

	var attrs []contract.Attr
	sc := scanner{s: s}
	for {
		name, value, hasValue, ok := sc.next()
		if !ok {
			break
		}
		switch {
		case hasValue:
			attrs = append(attrs, contract.Attr{Name: name, Value: value})
		case strings.HasPrefix(name, ".") && lang == "" && len(name) > 1:
			lang = name[1:]
		case strings.HasPrefix(name, "#") && len(name) > 1:
			attrs = append(attrs, contract.Attr{Name: "id", Value: name[1:]})
		default:
			attrs = append(attrs, contract.Attr{Name: name})
		}
	}
	return lang, attrs
}

type scanner struct {
	s string
	i int
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == ',' }

// next 读取一个 name[=value] 记号；value 可用单/双引号包裹，双引号内支持反斜杠转义。
func (sc *scanner) next() (name, value string, hasValue, ok bool) {
	for sc.i < len(sc.s) && isSpace(sc.s[sc.i]) {
		sc.i++
	}
	if sc.i >= len(sc.s) {
		return "", "", false, false
	}
	start := sc.i
	for sc.i < len(sc.s) && !isSpace(sc.s[sc.i]) && sc.s[sc.i] != '=' {
		sc.i++
	}
	name = sc.s[start:sc.i]
	if sc.i >= len(sc.s) || sc.s[sc.i] != '=' {
		return name, "", false, true
	}
	sc.i++ // '='
	if sc.i < len(sc.s) && (sc.s[sc.i] == '"' || sc.s[sc.i] == '\'') {
		return name, sc.quoted(sc.s[sc.i]), true, true
	}
	start = sc.i
	for sc.i < len(sc.s) && !isSpace(sc.s[sc.i]) {
		sc.i++
	}
	return name, sc.s[start:sc.i], true, true
}

// quoted 读取引号内的值；未闭合时取到行尾。
func (sc *scanner) quoted(q byte) string {
	sc.i++
	var b strings.Builder
	for sc.i < len(sc.s) {
		c := sc.s[sc.i]
		sc.i++
		switch {
		case c == q:
			return b.String()
		case c == '\\' && q == '"' && sc.i < len(sc.s):
			b.WriteByte(sc.s[sc.i])
			sc.i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Filter 按语言筛选代码块：allow 非空时仅保留其中语言；skip 中的语言总被跳过。
// 比较忽略大小写。
type Filter struct {
	allow map[string]struct{}
	skip  map[string]struct{}
}

// NewFilter 构造语言筛选器。
func NewFilter(langs, skipLangs []string) Filter {
	return Filter{allow: set(langs), skip: set(skipLangs)}
}

func set(xs []string) map[string]struct{} {
	if len(xs) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		m[strings.ToLower(strings.TrimSpace(x))] = struct{}{}
	}
	return m
}

// Keep 报告 lang 是否保留。
func (f Filter) Keep(lang string) bool {
	l := strings.ToLower(lang)
	if _, ok := f.skip[l]; ok {
		return false
	}
	if f.allow == nil {
		return true
	}
	_, ok := f.allow[l]
	return ok
}
