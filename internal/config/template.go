package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 默认输入为当前目录，按 file 属性分发，输出到 ./out 目录；
// - 组件名采用仓库内置实现；
// - 选项给出全部键与安全中性默认值。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Inputs:     []string{"."},
		Default:    "",
		Logging:    Logging{Level: "info"},
		Components: d.Components,
	}
	// Options：包含所有键（值可为空/默认），确保键存在。
	cfg.Options.Walker = json.RawMessage(`{
  "exclude_dir_names": [".git", "node_modules", "vendor", "out"],
  "include_exts": [".md", ".markdown"]
}`)
	cfg.Options.Reader = json.RawMessage(`{
  "langs": [],
  "skip_langs": [],
  "indented": false
}`)
	cfg.Options.Dispatcher = json.RawMessage(`{
  "attr": "file"
}`)
	cfg.Options.Storage = json.RawMessage(`{
  "output_dir": "out",
  "truncate_on_first_open": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}
