package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	cfgpkg "mdtangle/internal/config"
)

// initConfig 在 dir 下生成 mdtangle.json 与 .env 模板后退出。
func (a *app) initConfig(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return configErr("生成默认配置失败", err)
	}
	cfgPath := filepath.Join(dir, cfgpkg.DefaultFiles[0])
	if err := writeConfig(cfgPath, cfgpkg.DefaultTemplateConfig()); err != nil {
		return configErr("生成默认配置失败", err)
	}
	// 生成 .env 模板（不覆盖已存在文件）。
	if err := writeDotEnv(filepath.Join(dir, ".env")); err != nil {
		fprintf(a.stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	fprintf(a.stderr, "已生成 %s\n", cfgPath)
	return nil
}

func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	// 不覆盖已存在文件
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return err
	}
	return nil
}

// dotEnvKeys 为 .env 模板中列出的覆盖项（空值表示未设置）。
var dotEnvKeys = []string{
	"CONFIG_FILE",
	"CONFIG_JSON",
	"INPUTS",
	"DEFAULT",
	"LOG_LEVEL",
	"COMPONENTS_WALKER",
	"COMPONENTS_READER",
	"COMPONENTS_DISPATCHER",
	"COMPONENTS_STORAGE",
	"OPTIONS_WALKER_JSON",
	"OPTIONS_READER_JSON",
	"OPTIONS_DISPATCHER_JSON",
	"OPTIONS_STORAGE_JSON",
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
// 仅创建文件；不覆盖，不合并。
func writeDotEnv(path string) error {
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		return nil
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	env := make(map[string]string, len(dotEnvKeys)+2)
	for _, k := range dotEnvKeys {
		env[cfgpkg.EnvPrefix+k] = ""
	}
	// s3 storage 在 options 未给出密钥时读取
	env["AWS_ACCESS_KEY_ID"] = ""
	env["AWS_SECRET_ACCESS_KEY"] = ""
	body, err := godotenv.Marshal(env)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("# mdtangle .env 模板（由 --init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件\n")
	b.WriteString("# 空值表示未设置。\n\n")
	b.WriteString(body)
	b.WriteString("\n")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}

// preflightCheckOutputDir: 当 Storage 使用文件系统实现(fs)时，启动前检查输出目录可写性。
// 规则：
// - 若目录已存在：尝试创建并删除临时文件；失败则判为不可写。
// - 若目录不存在：检查最近的已存在祖先目录是否可写。
// 其他 storage 跳过。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	name := strings.TrimSpace(cfg.Components.Storage)
	if name == "" {
		name = cfgpkg.Defaults().Components.Storage
	}
	if name != "fs" {
		return nil
	}
	var sopts struct {
		OutputDir string `json:"output_dir"`
	}
	if len(cfg.Options.Storage) > 0 {
		_ = json.Unmarshal(cfg.Options.Storage, &sopts)
	}
	dir := strings.TrimSpace(sopts.OutputDir)
	if dir == "" {
		// 未指定时无法可靠检查，让装配阶段按实现自行报错
		return nil
	}
	for {
		st, err := os.Stat(dir)
		if err == nil {
			if !st.IsDir() {
				return fmt.Errorf("路径存在但不是目录: %s", dir)
			}
			f, err := os.CreateTemp(dir, ".wcheck-*")
			if err != nil {
				return err
			}
			name := f.Name()
			_ = f.Close()
			_ = os.Remove(name)
			return nil
		}
		if !os.IsNotExist(err) {
			return err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return fmt.Errorf("无法确定父目录: %s", dir)
		}
		dir = parent
	}
}
