package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdtangle/internal/pipeline"
	"mdtangle/plugins/dispatcher/byattr"
	"mdtangle/plugins/dispatcher/monofile"
	sfs "mdtangle/plugins/storage/filesystem"
	"mdtangle/plugins/storage/memory"
)

// 解析完整 JSON 配置
func TestLoadJSON(t *testing.T) {
	cfg, err := LoadJSON("testdata/basic.json", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, cfg.Inputs)
	assert.Equal(t, "main.rs", cfg.Default)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "fence", cfg.Components.Reader)
	assert.JSONEq(t, `{"attr":"path"}`, string(cfg.Options.Dispatcher))
	require.NoError(t, Validate(cfg))
}

// YAML 与 JSON 解析结果等价，options 子树归一为 JSON
func TestLoadYAML(t *testing.T) {
	cfg, err := LoadYAML("testdata/basic.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, cfg.Inputs)
	assert.Equal(t, "main.rs", cfg.Default)
	assert.Equal(t, "fence", cfg.Components.Reader)
	assert.Empty(t, cfg.Components.Storage)
	assert.JSONEq(t, `{"attr":"path"}`, string(cfg.Options.Dispatcher))
	assert.JSONEq(t, `{"output_dir":"out","buf_size":4096}`, string(cfg.Options.Storage))
}

func TestLoadYAMLErrors(t *testing.T) {
	_, err := LoadYAML("", []byte("unknown: 1\n"))
	require.Error(t, err, "未知字段应失败")

	_, err = LoadYAML("", []byte("inputs: [a\n"))
	require.Error(t, err, "语法错误应失败")

	_, err = LoadYAML("", nil)
	require.Error(t, err)

	cfg, err := LoadYAML("", []byte("# only a comment\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Inputs)
}

func TestLoadFileByExt(t *testing.T) {
	j, err := LoadFile("testdata/basic.json")
	require.NoError(t, err)
	y, err := LoadFile("testdata/basic.yaml")
	require.NoError(t, err)
	assert.Equal(t, j.Inputs, y.Inputs)
	assert.Equal(t, j.Default, y.Default)

	_, err = LoadFile("testdata/missing.json")
	require.Error(t, err)
}

// 含非法字段
func TestLoadJSONUnknown(t *testing.T) {
	_, err := LoadJSON("", []byte(`{"unknown":1}`))
	require.Error(t, err)
	_, err = LoadJSON("", nil)
	require.Error(t, err)
}

func TestFindDefaultFile(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, FindDefaultFile(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "mdtangle.yml"), []byte("inputs: [a]\n"), 0o644))
	assert.Equal(t, filepath.Join(dir, "mdtangle.yml"), FindDefaultFile(dir))

	// json 优先
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mdtangle.json"), []byte(`{}`), 0o644))
	assert.Equal(t, filepath.Join(dir, "mdtangle.json"), FindDefaultFile(dir))
}

// ENV 覆盖部分字段
func TestEnvOverlay(t *testing.T) {
	env := []string{
		"MDTANGLE_INPUTS=a, b",
		"MDTANGLE_DEFAULT= main.c ",
		"MDTANGLE_LOG_LEVEL=warn",
		"MDTANGLE_COMPONENTS_READER=fence",
		"MDTANGLE_COMPONENTS_DISPATCHER=mono",
		"MDTANGLE_COMPONENTS_STORAGE=memory",
		"MDTANGLE_COMPONENTS_WALKER=fs",
		`MDTANGLE_OPTIONS_DISPATCHER_JSON={"path":"x.c"}`,
		"MDTANGLE_OPTIONS_STORAGE_JSON=",
		"MDTANGLE_CONFIG_FILE=ignored.json",
		"OTHER_INPUTS=zzz",
		"MDTANGLE_=x",
	}
	over, err := EnvOverlay(env)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, over.Inputs)
	assert.Equal(t, "main.c", over.Default)
	assert.Equal(t, "warn", over.Logging.Level)
	assert.Equal(t, Components{Walker: "fs", Reader: "fence", Dispatcher: "mono", Storage: "memory"}, over.Components)
	assert.JSONEq(t, `{"path":"x.c"}`, string(over.Options.Dispatcher))
	assert.Nil(t, over.Options.Storage)
}

func TestEnvOverlayInvalidJSON(t *testing.T) {
	_, err := EnvOverlay([]string{"MDTANGLE_OPTIONS_READER_JSON={bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MDTANGLE_OPTIONS_READER_JSON")
}

// 优先级：Defaults < 文件 < ENV
func TestMergeOrder(t *testing.T) {
	file, err := LoadJSON("testdata/basic.json", nil)
	require.NoError(t, err)
	env, err := EnvOverlay([]string{"MDTANGLE_COMPONENTS_READER=markdown", "MDTANGLE_DEFAULT=lib.rs"})
	require.NoError(t, err)

	cfg := Merge(Merge(Defaults(), file), env)
	assert.Equal(t, "markdown", cfg.Components.Reader)
	assert.Equal(t, "attr", cfg.Components.Dispatcher)
	assert.Equal(t, "fs", cfg.Components.Walker)
	assert.Equal(t, "lib.rs", cfg.Default)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// options 整体替换，不做深度合并
	assert.JSONEq(t, `{"output_dir":"out"}`, string(cfg.Options.Storage))
}

func TestMergeEmptyKeepsBase(t *testing.T) {
	base := DefaultTemplateConfig()
	got := Merge(base, Config{Default: "   "})
	assert.Equal(t, base, got)
}

func TestMergeClonesInputs(t *testing.T) {
	over := Config{Inputs: []string{"a"}, Options: Options{Reader: json.RawMessage(`{}`)}}
	got := Merge(Defaults(), over)
	over.Inputs[0] = "z"
	over.Options.Reader[0] = 'x'
	assert.Equal(t, []string{"a"}, got.Inputs)
	assert.Equal(t, "{}", string(got.Options.Reader))
}

func TestSplitCommaClone(t *testing.T) {
	parts := splitComma("a, b , ,c")
	assert.Equal(t, []string{"a", "b", "c"}, parts)
	assert.Nil(t, splitComma(""))

	src := []byte("abc")
	dst := cloneRaw(src)
	src[0] = 'x'
	assert.Equal(t, "abc", string(dst))
	assert.Nil(t, cloneRaw(nil))
	assert.Nil(t, cloneStrings(nil))
}

func TestValidateErrors(t *testing.T) {
	require.Error(t, Validate(Config{}), "空配置应失败")

	cases := map[string]func(*Config){
		"empty input": func(c *Config) { c.Inputs = []string{" "} },
		"dash mixed":  func(c *Config) { c.Inputs = []string{"-", "docs"} },
		"bad level":   func(c *Config) { c.Logging.Level = "verbose" },
		"walker":      func(c *Config) { c.Components.Walker = "nope" },
		"reader":      func(c *Config) { c.Components.Reader = "nope" },
		"dispatcher":  func(c *Config) { c.Components.Dispatcher = "nope" },
		"storage":     func(c *Config) { c.Components.Storage = "nope" },
	}
	for name, mut := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultTemplateConfig()
			mut(&cfg)
			require.Error(t, Validate(cfg))
		})
	}

	cfg := DefaultTemplateConfig()
	cfg.Inputs = []string{"-"}
	require.NoError(t, Validate(cfg))
}

func TestAssembleDefaults(t *testing.T) {
	cfg := Merge(Defaults(), Config{Inputs: []string{"docs"}, Default: " main.rs "})
	comp, set, err := Assemble(cfg)
	require.NoError(t, err)
	require.NotNil(t, comp.Walker)
	require.NotNil(t, comp.Reader)
	require.NotNil(t, comp.Storage)
	assert.IsType(t, &byattr.ByAttr{}, comp.Dispatcher)
	fs, ok := comp.Storage.(*sfs.FS)
	require.True(t, ok)
	assert.Equal(t, ".", fs.Root())
	assert.Equal(t, pipeline.Settings{
		Inputs:         []string{"docs"},
		Default:        "main.rs",
		DispatcherName: "attr",
		StorageName:    "fs",
	}, set)
}

func TestAssembleComponents(t *testing.T) {
	cfg := DefaultTemplateConfig()
	cfg.Components.Dispatcher = "mono"
	cfg.Components.Storage = "memory"
	cfg.Options.Dispatcher = json.RawMessage(`{"path":"all.txt"}`)
	cfg.Options.Storage = nil
	comp, set, err := Assemble(cfg)
	require.NoError(t, err)
	assert.IsType(t, &monofile.MonoFile{}, comp.Dispatcher)
	assert.IsType(t, &memory.Memory{}, comp.Storage)
	assert.Equal(t, "mono", set.DispatcherName)
	assert.Equal(t, "memory", set.StorageName)
}

// 组件 options 严格解析错误在装配期暴露
func TestAssembleOptionErrors(t *testing.T) {
	cases := map[string]func(*Config){
		"walker":     func(c *Config) { c.Options.Walker = json.RawMessage(`{"x":1}`) },
		"reader":     func(c *Config) { c.Options.Reader = json.RawMessage(`{"x":1}`) },
		"dispatcher": func(c *Config) { c.Options.Dispatcher = json.RawMessage(`{"x":1}`) },
		"storage":    func(c *Config) { c.Options.Storage = json.RawMessage(`{"x":1}`) },
	}
	for name, mut := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultTemplateConfig()
			mut(&cfg)
			_, _, err := Assemble(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}

	_, _, err := Assemble(Config{})
	require.Error(t, err)
}

// fs 的缺省 output_dir 不会带入其他 storage
func TestAssembleMemoryWithoutOptions(t *testing.T) {
	cfg := Merge(Defaults(), Config{Inputs: []string{"docs"}, Components: Components{Storage: "memory"}})
	comp, _, err := Assemble(cfg)
	require.NoError(t, err)
	assert.IsType(t, &memory.Memory{}, comp.Storage)
}

func TestTemplateAssembles(t *testing.T) {
	cfg := DefaultTemplateConfig()
	for name, raw := range map[string]json.RawMessage{
		"walker":     cfg.Options.Walker,
		"reader":     cfg.Options.Reader,
		"dispatcher": cfg.Options.Dispatcher,
		"storage":    cfg.Options.Storage,
	} {
		assert.True(t, json.Valid(raw), name)
	}
	_, _, err := Assemble(cfg)
	require.NoError(t, err)
}
