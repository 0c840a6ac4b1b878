package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix 为环境变量覆盖的统一前缀。
const EnvPrefix = "MDTANGLE_"

// DefaultFiles 为工作目录下按序探测的默认配置文件。
var DefaultFiles = []string{"mdtangle.json", "mdtangle.yaml", "mdtangle.yml"}

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		Components: Components{
			Walker:     "fs",
			Reader:     "markdown",
			Dispatcher: "attr",
			Storage:    "fs",
		},
	}
}

// defaultStorageOptions: storage options 缺省时按实现名补齐（fs 输出到当前目录）。
var defaultStorageOptions = map[string]json.RawMessage{
	"fs": json.RawMessage(`{"output_dir":"."}`),
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	return decodeStrict(r)
}

// LoadYAML 从文件路径或原始 YAML 解析 Config。
// YAML 先归一为 JSON，再按与 LoadJSON 相同的严格规则解码；options 子树原样保留为 JSON。
func LoadYAML(path string, raw []byte) (Config, error) {
	if len(raw) == 0 {
		if path == "" {
			return Config{}, errors.New("no config source provided")
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		raw = b
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	if doc == nil {
		return Config{}, nil
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return Config{}, fmt.Errorf("yaml to json: %w", err)
	}
	return decodeStrict(bytes.NewReader(js))
}

// LoadFile 按扩展名选择解析器：.yaml/.yml 走 YAML，其余按 JSON。
func LoadFile(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path, nil)
	default:
		return LoadJSON(path, nil)
	}
}

// FindDefaultFile 返回 dir 下第一个存在的默认配置文件；不存在时返回空串。
func FindDefaultFile(dir string) string {
	for _, name := range DefaultFiles {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

func decodeStrict(r io.Reader) (Config, error) {
	var cfg Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if strings.TrimSpace(over.Default) != "" {
		out.Default = strings.TrimSpace(over.Default)
	}
	// Logging（仅 level）
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.TrimSpace(over.Logging.Level)
	}

	// 组件名（空不覆盖）
	if over.Components.Walker != "" {
		out.Components.Walker = over.Components.Walker
	}
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Dispatcher != "" {
		out.Components.Dispatcher = over.Components.Dispatcher
	}
	if over.Components.Storage != "" {
		out.Components.Storage = over.Components.Storage
	}

	// Options（完整替换对应键）
	if len(over.Options.Walker) > 0 {
		out.Options.Walker = cloneRaw(over.Options.Walker)
	}
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Dispatcher) > 0 {
		out.Options.Dispatcher = cloneRaw(over.Options.Dispatcher)
	}
	if len(over.Options.Storage) > 0 {
		out.Options.Storage = cloneRaw(over.Options.Storage)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 MDTANGLE_；集合之外的键忽略。
// 支持：INPUTS, DEFAULT, LOG_LEVEL, COMPONENTS_{WALKER,READER,DISPATCHER,STORAGE},
// OPTIONS_{WALKER,READER,DISPATCHER,STORAGE}_JSON（须为合法 JSON；空值视为未设置）。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[:eq]
		val := kv[eq+1:]
		nk := strings.TrimPrefix(key, EnvPrefix)
		switch nk {
		case "INPUTS":
			if val != "" {
				over.Inputs = splitComma(val)
			}
		case "DEFAULT":
			over.Default = strings.TrimSpace(val)
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "COMPONENTS_WALKER":
			over.Components.Walker = strings.TrimSpace(val)
		case "COMPONENTS_READER":
			over.Components.Reader = strings.TrimSpace(val)
		case "COMPONENTS_DISPATCHER":
			over.Components.Dispatcher = strings.TrimSpace(val)
		case "COMPONENTS_STORAGE":
			over.Components.Storage = strings.TrimSpace(val)
		case "OPTIONS_WALKER_JSON", "OPTIONS_READER_JSON", "OPTIONS_DISPATCHER_JSON", "OPTIONS_STORAGE_JSON":
			raw, err := envJSON(key, val)
			if err != nil {
				return Config{}, err
			}
			if raw == nil {
				continue
			}
			switch nk {
			case "OPTIONS_WALKER_JSON":
				over.Options.Walker = raw
			case "OPTIONS_READER_JSON":
				over.Options.Reader = raw
			case "OPTIONS_DISPATCHER_JSON":
				over.Options.Dispatcher = raw
			case "OPTIONS_STORAGE_JSON":
				over.Options.Storage = raw
			}
		default:
			// CONFIG_FILE / CONFIG_JSON 由调用方读取；其余键忽略。
		}
	}
	return over, nil
}

func envJSON(key, val string) (json.RawMessage, error) {
	v := strings.TrimSpace(val)
	if v == "" {
		return nil, nil
	}
	if !json.Valid([]byte(v)) {
		return nil, fmt.Errorf("env %s: invalid JSON", key)
	}
	return json.RawMessage(v), nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
