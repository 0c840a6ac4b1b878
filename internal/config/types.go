package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/YAML 键使用 snake_case；未知字段在解析期失败。
type Config struct {
	Inputs []string `json:"inputs"`
	// Default: 首个代码块未给出目标时使用的输出路径；为空表示不提供默认目标。
	Default string  `json:"default"`
	Logging Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Walker     string `json:"walker"`
	Reader     string `json:"reader"`
	Dispatcher string `json:"dispatcher"`
	Storage    string `json:"storage"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Walker     json.RawMessage `json:"walker,omitempty"`
	Reader     json.RawMessage `json:"reader,omitempty"`
	Dispatcher json.RawMessage `json:"dispatcher,omitempty"`
	Storage    json.RawMessage `json:"storage,omitempty"`
}
