package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgpkg "mdtangle/internal/config"
	"mdtangle/internal/diag"
	"mdtangle/internal/pipeline"
	"mdtangle/pkg/contract"
)

var pipelineRun = pipeline.Run

// 退出码：0 成功；1 运行期失败；3 配置/装配失败。
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

// exitError 携带退出码的错误；msg 为面向终端的前缀。
type exitError struct {
	code int
	msg  string
	err  error
}

func (e *exitError) Error() string { return e.msg + ": " + e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configErr(msg string, err error) error  { return &exitError{code: exitConfig, msg: msg, err: err} }
func runtimeErr(msg string, err error) error { return &exitError{code: exitRuntime, msg: msg, err: err} }

// flags 为全部子命令共享的旗标。
type flags struct {
	config     string
	dflt       string
	walker     string
	reader     string
	dispatcher string
	storage    string
	logLevel   string
	status     bool
	initDir    string
}

// app 持有一次调用的输出端与运行期状态。
type app struct {
	stdout io.Writer
	stderr io.Writer
	corrID string
	start  time.Time
	logger *diag.Logger
	f      flags
}

// 简化的 CLI：默认子命令 run。
// 位置参数为 roots（文件/目录 或 "-" 表示 STDIN，不能与其他根混用）。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = godotenv.Load()
	a := &app{
		stdout: stdout,
		stderr: stderr,
		corrID: uuid.NewString(),
		start:  time.Now(),
	}
	// 先占位默认 level，解析配置后按最终 level 重建
	a.logger = diag.NewLogger(a.corrID, "info")
	defer func() { _ = a.logger.Sync() }()

	root := a.rootCmd()
	if args == nil {
		// nil 时 cobra 会回退到 os.Args
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var xe *exitError
	if !errors.As(err, &xe) {
		// cobra 旗标/参数解析错误
		xe = &exitError{code: exitConfig, msg: "参数错误", err: err}
	}
	a.logger.Error("pipeline", string(diag.Classify(xe.err)), "first error", &a.start)
	if !errors.Is(err, context.Canceled) {
		fprintf(stderr, "%s: %v\n", xe.msg, xe.err)
	}
	return xe.code
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mdtangle [flags] [roots...]",
		Short: "从 Markdown 文档抽取代码块并写出为源文件",
		Long: "mdtangle 读取输入根（文件、目录或 \"-\" 表示 STDIN）中的围栏代码块，\n" +
			"按分发策略确定每个代码块的目标文件，并依序追加写出。",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, roots []string) error {
			if strings.TrimSpace(a.f.initDir) != "" {
				return a.initConfig(strings.TrimSpace(a.f.initDir))
			}
			return a.tangle(cmd.Context(), roots)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.f.config, "config", "", "配置文件路径（JSON/YAML）；缺省读取 ./mdtangle.json|yaml（若存在）")
	pf.StringVar(&a.f.dflt, "default", "", "首个代码块缺少目标时使用的默认输出路径（覆盖配置）")
	pf.StringVar(&a.f.walker, "walker", "", "walker 名称（覆盖配置）")
	pf.StringVar(&a.f.reader, "reader", "", "reader 名称（覆盖配置）")
	pf.StringVar(&a.f.dispatcher, "dispatcher", "", "dispatcher 名称（覆盖配置）")
	pf.StringVar(&a.f.storage, "storage", "", "storage 名称（覆盖配置）")
	pf.StringVar(&a.f.logLevel, "log-level", "", "日志级别 debug|info|warn|error（覆盖配置）")
	pf.BoolVar(&a.f.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	root.Flags().StringVar(&a.f.initDir, "init-config", "", "在指定目录生成默认配置 mdtangle.json 和 .env 模板（不覆盖已有 mdtangle.json）；不带值时默认当前目录")
	root.Flags().Lookup("init-config").NoOptDefVal = "."

	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(a.eventsCmd(), a.blocksCmd())
	return root
}

func (a *app) eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events [roots...]",
		Short: "演练：按行输出分发后的事件流（JSON），不写出任何文件",
		RunE: func(cmd *cobra.Command, roots []string) error {
			comp, set, err := a.prepare(roots, false)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.stdout)
			for ev, err := range pipeline.Plan(cmd.Context(), comp, set, nil) {
				if err != nil {
					return runtimeErr("运行失败", err)
				}
				line := eventLine{Lang: ev.Block.Lang, Bytes: len(ev.Block.Content)}
				if ev.Target != nil {
					s := string(*ev.Target)
					line.Target = &s
				}
				if err := enc.Encode(line); err != nil {
					return runtimeErr("输出失败", err)
				}
			}
			return nil
		},
	}
}

func (a *app) blocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blocks [roots...]",
		Short: "按行输出抽取到的代码块（JSON），不做分发",
		RunE: func(cmd *cobra.Command, roots []string) error {
			comp, set, err := a.prepare(roots, false)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.stdout)
			var cur string
			blocks := pipeline.Blocks(cmd.Context(), comp.Walker, comp.Reader, set.Inputs, func(src contract.Source) {
				cur = src.Name()
			})
			for b, err := range blocks {
				if err != nil {
					return runtimeErr("运行失败", err)
				}
				line := blockLine{Source: cur, Lang: b.Lang, Bytes: len(b.Content)}
				if len(b.Attrs) > 0 {
					line.Attrs = make([]attrLine, len(b.Attrs))
					for i, at := range b.Attrs {
						line.Attrs[i] = attrLine{Name: at.Name, Value: at.Value}
					}
				}
				if err := enc.Encode(line); err != nil {
					return runtimeErr("输出失败", err)
				}
			}
			return nil
		},
	}
}

type eventLine struct {
	Target *string `json:"target"`
	Lang   string  `json:"lang"`
	Bytes  int     `json:"bytes"`
}

type attrLine struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type blockLine struct {
	Source string     `json:"source"`
	Lang   string     `json:"lang"`
	Attrs  []attrLine `json:"attrs,omitempty"`
	Bytes  int        `json:"bytes"`
}

// tangle 为默认子命令：装配并运行完整流水线。
func (a *app) tangle(ctx context.Context, roots []string) error {
	comp, set, err := a.prepare(roots, true)
	if err != nil {
		return err
	}

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	diag.SetTerminal(diag.NewTerminal(a.stderr, a.f.status))
	defer diag.SetTerminal(nil)

	stats, err := pipelineRun(ctx, comp, set, a.logger)
	if err != nil {
		return runtimeErr("运行失败", err)
	}
	diag.ObserveDuration("pipeline", "finish", time.Since(a.start).Milliseconds())
	a.logger.DebugStart("pipeline", "summary", "", map[string]string{
		"sources": strconv.FormatInt(stats.Sources, 10),
		"blocks":  strconv.FormatInt(stats.Blocks, 10),
		"files":   strconv.FormatInt(stats.Files, 10),
		"bytes":   strconv.FormatInt(stats.Bytes, 10),
	})
	return nil
}

// prepare 解析并合并配置（Defaults < 文件 < ENV < CLI），校验后装配组件。
// writes 为 true 时对文件系统输出目录做可写性预检。
func (a *app) prepare(roots []string, writes bool) (pipeline.Components, pipeline.Settings, error) {
	var (
		comp pipeline.Components
		set  pipeline.Settings
	)
	cfg, err := a.loadConfig(roots)
	if err != nil {
		return comp, set, err
	}

	// 使用最终配置中的日志级别重建 logger
	if lv := strings.TrimSpace(cfg.Logging.Level); lv != "" {
		_ = a.logger.Sync()
		a.logger = diag.NewLogger(a.corrID, lv)
	}

	if writes {
		if err := preflightCheckOutputDir(cfg); err != nil {
			return comp, set, configErr("输出目录不可写或无法创建", err)
		}
	}

	comp, set, err = cfgpkg.Assemble(cfg)
	if err != nil {
		return comp, set, configErr("装配失败", err)
	}

	// debug: 输出生效的组件选择（不含 options）
	a.logger.DebugStart("config", "effective", "", map[string]string{
		"inputs_count": strconv.Itoa(len(cfg.Inputs)),
		"default":      cfg.Default,
		"walker":       cfg.Components.Walker,
		"reader":       cfg.Components.Reader,
		"dispatcher":   cfg.Components.Dispatcher,
		"storage":      cfg.Components.Storage,
	})
	return comp, set, nil
}

func (a *app) loadConfig(roots []string) (cfgpkg.Config, error) {
	// 配置来源：--config > MDTANGLE_CONFIG_FILE > 默认文件；MDTANGLE_CONFIG_JSON 为原文 JSON
	var cfgJSON []byte
	if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); s != "" {
		cfgJSON = []byte(s)
	}
	path := a.f.config
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	if path == "" && len(cfgJSON) == 0 {
		path = cfgpkg.FindDefaultFile(".")
	}

	cfg := cfgpkg.Defaults()
	switch {
	case len(cfgJSON) > 0:
		base, err := cfgpkg.LoadJSON("", cfgJSON)
		if err != nil {
			return cfg, configErr("配置解析失败", err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	case path != "":
		base, err := cfgpkg.LoadFile(path)
		if err != nil {
			return cfg, configErr("配置解析失败", err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	// ENV 覆盖（最小集合）
	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, configErr("环境变量解析失败", err)
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	// CLI 覆盖
	overCLI := cfgpkg.Config{
		Inputs:  roots,
		Default: a.f.dflt,
		Logging: cfgpkg.Logging{Level: a.f.logLevel},
		Components: cfgpkg.Components{
			Walker:     a.f.walker,
			Reader:     a.f.reader,
			Dispatcher: a.f.dispatcher,
			Storage:    a.f.storage,
		},
	}
	cfg = cfgpkg.Merge(cfg, overCLI)

	if err := cfgpkg.Validate(cfg); err != nil {
		// 提示打印有效配置，便于诊断
		_ = dumpConfig(a.stderr, cfg)
		return cfg, configErr("配置校验失败", err)
	}
	return cfg, nil
}

func fprintf(w io.Writer, format string, args ...any) { _, _ = fmt.Fprintf(w, format, args...) }

func dumpConfig(w io.Writer, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	fprintf(w, "有效配置:\n%s\n", b)
	return nil
}
