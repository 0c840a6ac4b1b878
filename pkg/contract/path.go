package contract

import (
	"path"
	"strings"
)

// NormalizePath 规范化路径，统一为跨平台稳定的 Path。
// 规则：
// - 使用正斜杠分隔符
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizePath(p string) Path {
	return Path(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}

// StripExt 去掉最后一段扩展名（"src/a.rs.md" -> "src/a.rs"）；无扩展名时原样返回。
func StripExt(p Path) Path {
	s := string(p)
	ext := path.Ext(s)
	if ext == "" || ext == s || strings.HasSuffix(s, "/"+ext) {
		return p
	}
	return Path(strings.TrimSuffix(s, ext))
}
