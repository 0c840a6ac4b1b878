package diag

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 默认日志目录与单文件上限。
const (
	DefaultLogDir   = "logs"
	DefaultLogBytes = 10 * 1024 * 1024
)

// Logger 为最小结构化日志器：zap JSON 单行输出到轮转文件；支持级别过滤。
// 所有方法对 nil 接收者为 no-op。
type Logger struct {
	corrID string
	z      *zap.Logger
	sink   *RotatingFile
}

// NewLogger 通过配置的 level 初始化，并将日志写入默认目录 logs/，10MiB 轮转。
func NewLogger(corrID, level string) *Logger {
	sink := NewRotatingFile(DefaultLogDir, DefaultLogBytes)
	l := NewLoggerTo(corrID, level, sink)
	l.sink = sink
	return l
}

// NewLoggerTo 将日志写入给定的 WriteSyncer（测试或自定义输出）。
func NewLoggerTo(corrID, level string, ws zapcore.WriteSyncer) *Logger {
	if ws == nil {
		ws = zapcore.Lock(os.Stderr)
	}
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.RFC3339TimeEncoder
	enc.MessageKey = "msg"
	enc.LevelKey = "level"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, parseLevel(strings.TrimSpace(level)))
	z := zap.New(core, zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	if corrID != "" {
		z = z.With(zap.String("corr_id", corrID))
	}
	return &Logger{corrID: corrID, z: z}
}

// Nop 返回丢弃一切输出的日志器。
func Nop() *Logger { return &Logger{z: zap.NewNop()} }

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// CorrID 返回关联 ID。
func (l *Logger) CorrID() string {
	if l == nil {
		return ""
	}
	return l.corrID
}

// Zap 暴露底层 zap.Logger（nil 接收者返回 Nop）。
func (l *Logger) Zap() *zap.Logger {
	if l == nil || l.z == nil {
		return zap.NewNop()
	}
	return l.z
}

// Sync 刷新缓冲并关闭文件句柄（若有）。
func (l *Logger) Sync() error {
	if l == nil || l.z == nil {
		return nil
	}
	err := l.z.Sync()
	if l.sink != nil {
		if cerr := l.sink.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (l *Logger) emit(lv zapcore.Level, comp, stage, msg string, fields ...zap.Field) {
	if l == nil || l.z == nil {
		return
	}
	if ce := l.z.Check(lv, msg); ce != nil {
		ce.Write(append([]zap.Field{zap.String("comp", comp), zap.String("stage", stage)}, fields...)...)
	}
}

func pathField(path string) []zap.Field {
	if path == "" {
		return nil
	}
	return []zap.Field{zap.String("path", path)}
}

func kvField(kv map[string]string) []zap.Field {
	if len(kv) == 0 {
		return nil
	}
	return []zap.Field{zap.Any("kv", kv)}
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWithKV(comp, msg, "", nil)
}

// StartWith 记录带 path 的 start。
func (l *Logger) StartWith(comp, msg, path string) *Timer {
	return l.StartWithKV(comp, msg, path, nil)
}

// StartWithKV 记录带 path 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, path string, kv map[string]string) *Timer {
	if l == nil {
		return nil
	}
	l.emit(zapcore.InfoLevel, comp, "start", msg, append(pathField(path), kvField(kv)...)...)
	return &Timer{l: l, comp: comp, path: path, t0: time.Now()}
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, "", nil)
}

// ErrorWith 支持 path。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, path string) {
	l.ErrorWithKV(comp, code, msg, durSince, path, nil)
}

// ErrorWithKV 支持附带键值对（例如底层错误文本）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, path string, kv map[string]string) {
	fields := []zap.Field{zap.String("code", code)}
	if durSince != nil {
		fields = append(fields, zap.Int64("dur_ms", time.Since(*durSince).Milliseconds()))
	}
	fields = append(fields, pathField(path)...)
	fields = append(fields, kvField(kv)...)
	l.emit(zapcore.ErrorLevel, comp, "error", msg, fields...)
}

// Warn 记录 warn 事件。
func (l *Logger) Warn(comp, msg, path string) {
	l.emit(zapcore.WarnLevel, comp, "warn", msg, pathField(path)...)
}

// DebugStart 输出调试级别的 start 类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, path string, kv map[string]string) {
	l.emit(zapcore.DebugLevel, comp, "start", msg, append(pathField(path), kvField(kv)...)...)
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l    *Logger
	comp string
	path string
	t0   time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	t.FinishWithKV(msg, count, nil)
}

// FinishWithKV 记录带键值的 finish。
func (t *Timer) FinishWithKV(msg string, count int64, kv map[string]string) {
	if t == nil || t.l == nil {
		return
	}
	fields := []zap.Field{zap.Int64("dur_ms", time.Since(t.t0).Milliseconds())}
	if count > 0 {
		fields = append(fields, zap.Int64("count", count))
	}
	fields = append(fields, pathField(t.path)...)
	fields = append(fields, kvField(kv)...)
	t.l.emit(zapcore.InfoLevel, t.comp, "finish", msg, fields...)
}
