package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"

	"mdtangle/pkg/contract"
)

// UT-DIAG-01: 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	if _, err := w.Write([]byte("first line that is very long\n")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if _, err := w.Write([]byte("second\n")); err != nil {
		t.Fatalf("第二次写入失败: %v", err)
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("应存在轮转文件, got %d", len(files))
	}
	_ = w.Close()
}

// 当前文件名与时间戳文件均存在
func TestRotatingFileRotateFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 10)
	for i := 0; i < 5; i++ {
		if _, err := w.Write([]byte("xxxxxxxxxxxxxxxxxx\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	hasCurrent, hasRotated := false, false
	for _, e := range ents {
		if e.Name() == "mdtangle-current.txt" {
			hasCurrent = true
		}
		if strings.HasPrefix(e.Name(), "mdtangle-") && !strings.Contains(e.Name(), "current") {
			hasRotated = true
		}
	}
	if !hasCurrent || !hasRotated {
		t.Fatalf("expect both current and rotated files, got current=%v rotated=%v", hasCurrent, hasRotated)
	}
	_ = w.Close()
}

func TestRotatingFileDefaultsAndClose(t *testing.T) {
	w := NewRotatingFile(t.TempDir(), 0)
	if w.maxBytes != DefaultLogBytes {
		t.Fatalf("默认上限错误: %d", w.maxBytes)
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("未打开时 sync 应为 no-op: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("未打开时 close 应为 no-op: %v", err)
	}
}

// UT-DIAG-02: 指标计数
func TestMetrics(t *testing.T) {
	ResetMetrics()
	IncOp("writer", "open", "success")
	IncOp("writer", "open", "success")
	IncError("writer", "io")
	ObserveDuration("pipeline", "run", 5)
	snap := Snapshot()
	if snap["op_total{writer,open,success}"] != 2 {
		t.Fatalf("op_total 错误: %v", snap)
	}
	if snap["error_total{writer,io}"] != 1 || snap["op_duration_ms{pipeline,run}"] != 5 {
		t.Fatalf("指标错误: %v", snap)
	}
	if SnapshotKV()["op_total{writer,open,success}"] != "2" {
		t.Fatalf("SnapshotKV 错误")
	}
	ResetMetrics()
	if len(Snapshot()) != 0 {
		t.Fatalf("reset 未清空")
	}
}

// 错误分类
func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{contract.ErrMissingTarget, CodeInvariant},
		{fmt.Errorf("wrap: %w", contract.ErrPathInvalid), CodeInvariant},
		{contract.ErrHandleBusy, CodeInvariant},
		{contract.ErrIteration, CodeIteration},
		{contract.ErrStorageWrite, CodeIO},
		{context.Canceled, CodeCancel},
		{&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, CodeIO},
		{&net.DNSError{Err: "x"}, CodeNetwork},
		{errors.New("other"), CodeUnknown},
		{nil, CodeUnknown},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("Classify(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

type bufSyncer struct{ bytes.Buffer }

func (b *bufSyncer) Sync() error { return nil }

func decodeLines(t *testing.T, s string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("非 JSON 日志行 %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

// Logger 基本流程：字段与级别
func TestLoggerFields(t *testing.T) {
	var buf bufSyncer
	l := NewLoggerTo("corr", "debug", &buf)
	timer := l.StartWith("writer", "open", "out/a.rs")
	timer.Finish("open", 3)
	l.ErrorWithKV("writer", "io", "write failed", nil, "out/a.rs", map[string]string{"err": "boom"})
	l.DebugStart("config", "effective", "", map[string]string{"k": "v"})
	l.Warn("reader", "skip", "x.md")
	_ = l.Sync()

	lines := decodeLines(t, buf.String())
	if len(lines) != 5 {
		t.Fatalf("want 5 lines, got %d: %s", len(lines), buf.String())
	}
	first := lines[0]
	if first["corr_id"] != "corr" || first["comp"] != "writer" || first["stage"] != "start" || first["path"] != "out/a.rs" {
		t.Fatalf("start 字段错误: %v", first)
	}
	if lines[1]["stage"] != "finish" || lines[1]["count"] != float64(3) {
		t.Fatalf("finish 字段错误: %v", lines[1])
	}
	if lines[2]["level"] != "error" || lines[2]["code"] != "io" {
		t.Fatalf("error 字段错误: %v", lines[2])
	}
	if l.CorrID() != "corr" {
		t.Fatalf("corr id 错误")
	}
}

func TestLoggerLevelsAndFilter(t *testing.T) {
	var buf bufSyncer
	l := NewLoggerTo("", "error", &buf)
	l.Start("comp", "msg").Finish("ok", 0)
	l.DebugStart("comp", "msg", "", nil)
	if buf.Len() != 0 {
		t.Fatalf("低于 error 的日志应被过滤: %s", buf.String())
	}
	l.Error("comp", "code", "msg", ptrTime(time.Now()))
	if !strings.Contains(buf.String(), `"dur_ms"`) {
		t.Fatalf("error 应带 dur_ms: %s", buf.String())
	}
	for in, want := range map[string]zapcore.Level{"debug": zapcore.DebugLevel, "WARN": zapcore.WarnLevel, "error": zapcore.ErrorLevel, "": zapcore.InfoLevel, "x": zapcore.InfoLevel} {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

// 默认日志器写入 logs/ 目录
func TestNewLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(cwd)
	l := NewLogger("c", "info")
	l.Start("pipeline", "run").Finish("run", 1)
	if err := l.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, DefaultLogDir, "mdtangle-current.txt"))
	if err != nil || !strings.Contains(string(b), `"comp":"pipeline"`) {
		t.Fatalf("日志文件内容错误: %v %q", err, string(b))
	}
}

func TestLoggerNilSafe(t *testing.T) {
	var l *Logger
	l.Start("c", "m").Finish("m", 1)
	l.Error("c", "x", "m", nil)
	l.DebugStart("c", "m", "", nil)
	if l.Sync() != nil || l.CorrID() != "" || l.Zap() == nil {
		t.Fatalf("nil logger 应为 no-op")
	}
	Nop().Start("c", "m").Finish("m", 0)
}

// UT-DIAG-03: 终端（非 TTY）关键节点输出
func TestTerminalNonTTYFlow(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	if term.isTTY {
		t.Fatalf("expect non-tty")
	}
	term.RunStart("attr", "fs")
	term.SourceStart("docs/guide.md")
	term.FileOpen("src/main.rs")
	term.BlockWritten()
	term.BlockWritten()
	term.RunFinish(true, 1500*time.Millisecond)

	out := sb.String()
	if strings.Contains(out, "\r") {
		t.Fatalf("non-tty should not contain carriage returns: %q", out)
	}
	for _, want := range []string{
		"[run] dispatch=attr | storage=fs",
		"[src] guide.md",
		"[out] main.rs",
		"[ok] 全部完成 | 源 1 | 文件 1 | 代码块 2 | 总用时 1.5s",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

// UT-DIAG-04: 终端（TTY）节流与清尾
func TestTerminalTTYThrottle(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.isTTY = true
	term.RunStart("mono", "memory")
	term.SourceStart("a.md")
	first := sb.String()
	if !strings.Contains(first, "\r[run] a.md") {
		t.Fatalf("source start should be inline: %q", first)
	}
	term.BlockWritten()
	if sb.String() != first {
		t.Fatalf("block progress should be throttled")
	}
	time.Sleep(120 * time.Millisecond)
	term.BlockWritten()
	if sb.String() == first {
		t.Fatalf("progress should refresh after throttle window")
	}
	term.RunFinish(false, 10*time.Millisecond)
	if !strings.HasSuffix(sb.String(), "总用时 10ms\n") || !strings.Contains(sb.String(), "[fail]") {
		t.Fatalf("finish line missing: %q", sb.String())
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestTerminalDisableOnWriteError(t *testing.T) {
	term := NewTerminal(failWriter{}, true)
	term.RunStart("mono", "fs")
	if term.enabled {
		t.Fatalf("写失败后应禁用")
	}
	term.SourceStart("x")
	term.RunFinish(true, 0)
}

func TestTerminalNilAndDisabled(t *testing.T) {
	var nilTerm *Terminal
	nilTerm.RunStart("a", "b")
	nilTerm.SourceStart("x")
	nilTerm.FileOpen("y")
	nilTerm.BlockWritten()
	nilTerm.RunFinish(true, 0)

	var sb strings.Builder
	off := NewTerminal(&sb, false)
	off.RunStart("a", "b")
	off.FileOpen("y")
	if sb.Len() != 0 {
		t.Fatalf("disabled terminal should not print")
	}
	SetTerminal(off)
	if GetTerminal() != off {
		t.Fatalf("global terminal not set")
	}
	SetTerminal(nil)
}

func TestNewTerminalCIEnv(t *testing.T) {
	t.Setenv("CI", "1")
	if NewTerminal(os.Stderr, true).isTTY {
		t.Fatalf("CI 环境应视为非 TTY")
	}
}

func TestHelpers(t *testing.T) {
	if got := shortenBase("/a/b/averyveryverylongname.txt", 8); got != "averyve…" {
		t.Fatalf("shortenBase = %q", got)
	}
	if shortenBase("x", 0) != "" || shortenBase("dir/f.md", 48) != "f.md" {
		t.Fatalf("shortenBase 边界错误")
	}
	if safe("a\nb\rc") != "a b c" {
		t.Fatalf("safe 错误")
	}
	if formatDur(250*time.Millisecond) != "250ms" || formatDur(2500*time.Millisecond) != "2.5s" {
		t.Fatalf("formatDur 错误")
	}
	if NowUTC() == "" {
		t.Fatalf("应返回时间字符串")
	}
}
