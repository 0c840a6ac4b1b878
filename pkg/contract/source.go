package contract

import (
	"fmt"
	"os"
)

// SourceKind: 源描述符的标签。
type SourceKind int

const (
	// SourceText: 内存文本（借用或私有副本）。
	SourceText SourceKind = iota
	// SourceFile: 文件路径，需物化后才可读取文本。
	SourceFile
)

func (k SourceKind) String() string {
	switch k {
	case SourceText:
		return "text"
	case SourceFile:
		return "file"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// Source: 源描述符（判别联合）：内存文本或文件路径。
// 转换单向且幂等：Materialize 将 File 变为私有文本；已是文本时为 no-op；永不回退为 File。
// Name 为源的逻辑名（文件源为其相对路径），物化后保留，供日志与按源分发使用。
type Source struct {
	kind  SourceKind
	text  string
	path  string
	name  string
	owned bool
}

// FromString 以借用语义包装内存文本（不复制）。
func FromString(s string) Source {
	return Source{kind: SourceText, text: s}
}

// FromBytes 以私有副本包装内存文本。
func FromBytes(b []byte) Source {
	return Source{kind: SourceText, text: string(b), owned: true}
}

// FromFile 描述一个待读取的文件；name 缺省时取 path。
func FromFile(path string) Source {
	return Source{kind: SourceFile, path: path, name: path}
}

// Named 返回带逻辑名的副本。
func (s Source) Named(name string) Source {
	s.name = name
	return s
}

// Kind 返回当前标签。
func (s Source) Kind() SourceKind { return s.kind }

// Name 返回逻辑名（可能为空）。
func (s Source) Name() string { return s.name }

// IsText 报告是否为内存文本。
func (s Source) IsText() bool { return s.kind == SourceText }

// IsFile 报告是否为文件路径。
func (s Source) IsFile() bool { return s.kind == SourceFile }

// Owned 报告文本是否为私有副本（文件源恒为 false）。
func (s Source) Owned() bool { return s.kind == SourceText && s.owned }

// Text 返回文本；文件源返回 false。
func (s Source) Text() (string, bool) {
	if s.kind != SourceText {
		return "", false
	}
	return s.text, true
}

// FilePath 返回文件路径；文本源返回 false。
func (s Source) FilePath() (string, bool) {
	if s.kind != SourceFile {
		return "", false
	}
	return s.path, true
}

// Materialize 将文件源读入为私有文本；文本源直接返回 nil。
// 失败时描述符保持 File 形态不变。
func (s *Source) Materialize() error {
	if s.kind != SourceFile {
		return nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	s.kind = SourceText
	s.text = string(b)
	s.owned = true
	s.path = ""
	return nil
}
