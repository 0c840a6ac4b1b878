package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"time"

	"mdtangle/internal/diag"
	"mdtangle/pkg/contract"
	"mdtangle/pkg/dispatch"
)

// - 单协程拉取：Walker → Reader → Dispatcher → (WithDefault) → Writer，全程惰性迭代。
// - 所有输入根拼成一条事件流；缺省目标只作用于整条流的首个事件。
// - 首错即停：任一阶段失败立即返回，已写出的文件不回滚。

// Components 聚合运行所需的原子组件。
type Components struct {
	Walker     contract.Walker
	Reader     contract.Reader
	Dispatcher contract.Dispatcher
	Storage    contract.Storage
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	// 输入根：文件或目录；"-" 表示标准输入（由 Walker 解释）。
	Inputs []string
	// Default: 首个事件缺少目标时使用的默认目标；为空则不套用。
	Default contract.Path
	// 终端展示用的组件名。
	DispatcherName string
	StorageName    string
}

// Stats 运行汇总。
type Stats struct {
	Sources int64
	Blocks  int64
	Files   int64
	Bytes   int64
}

// SourceHook 在每个源的首个代码块被读取之前调用。
type SourceHook func(src contract.Source)

// Blocks 依次遍历所有输入根，将每个源读取为代码块并首尾相接。
// 遍历或读取失败时产出一个错误元素后结束。
func Blocks(ctx context.Context, walker contract.Walker, reader contract.Reader, inputs []string, hook SourceHook) iter.Seq2[contract.CodeBlock, error] {
	return func(yield func(contract.CodeBlock, error) bool) {
		for _, root := range inputs {
			for src, err := range walker.Walk(ctx, root) {
				if err != nil {
					yield(contract.CodeBlock{}, fmt.Errorf("walk %s: %w", root, err))
					return
				}
				if hook != nil {
					hook(src)
				}
				blocks, err := reader.Read(ctx, &src)
				if err != nil {
					yield(contract.CodeBlock{}, fmt.Errorf("read %s: %w", src.Name(), err))
					return
				}
				for b, err := range blocks {
					if err != nil {
						yield(contract.CodeBlock{}, fmt.Errorf("read %s: %w", src.Name(), err))
						return
					}
					if !yield(b, nil) {
						return
					}
				}
			}
		}
	}
}

// Plan 构造完整事件流但不写出；SourceAware 分发器在每个源开始时收到通知。
func Plan(ctx context.Context, comp Components, set Settings, hook SourceHook) iter.Seq2[contract.Event, error] {
	aware, _ := comp.Dispatcher.(contract.SourceAware)
	blocks := Blocks(ctx, comp.Walker, comp.Reader, set.Inputs, func(src contract.Source) {
		if aware != nil {
			aware.BeginSource(src)
		}
		if hook != nil {
			hook(src)
		}
	})
	events := dispatch.Events(blocks, comp.Dispatcher)
	if set.Default != "" {
		events = dispatch.WithDefault(events, set.Default)
	}
	return events
}

// Run 执行完整流水线并返回汇总。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Stats, error) {
	var stats Stats
	if err := sanity(comp, set); err != nil {
		return stats, fmt.Errorf("sanity: %w", err)
	}
	start := time.Now()
	rtimer := logger.StartWithKV("pipeline", "run", "", map[string]string{
		"inputs":     strconv.Itoa(len(set.Inputs)),
		"dispatcher": set.DispatcherName,
		"storage":    set.StorageName,
	})
	term := diag.GetTerminal()
	term.RunStart(set.DispatcherName, set.StorageName)

	events := Plan(ctx, comp, set, func(src contract.Source) {
		stats.Sources++
		logger.DebugStart("reader", "source", src.Name(), map[string]string{"kind": src.Kind().String()})
		diag.IncOp("reader", "source", "success")
		term.SourceStart(src.Name())
	})
	w := Writer{Storage: comp.Storage, Logger: logger}
	ws, err := w.Write(ctx, events)
	stats.Blocks, stats.Files, stats.Bytes = ws.Events, ws.Files, ws.Bytes
	dur := time.Since(start)
	diag.ObserveDuration("pipeline", "run", dur.Milliseconds())
	term.RunFinish(err == nil, dur)
	if err != nil {
		var we *WriteError
		if !errors.As(err, &we) {
			// 写出端已记录类型化错误；此处只补记取消等其余错误
			code := diag.Classify(err)
			logger.ErrorWith("pipeline", string(code), "run failed", &start, "")
			diag.IncOp("pipeline", "error", "error")
			if code != diag.CodeUnknown {
				diag.IncError("pipeline", string(code))
			}
		}
		return stats, fmt.Errorf("writer write: %w", err)
	}
	rtimer.FinishWithKV("run", stats.Blocks, map[string]string{
		"sources": strconv.FormatInt(stats.Sources, 10),
		"files":   strconv.FormatInt(stats.Files, 10),
		"bytes":   strconv.FormatInt(stats.Bytes, 10),
	})
	diag.IncOp("pipeline", "finish", "success")
	return stats, nil
}

func sanity(c Components, s Settings) error {
	if c.Walker == nil || c.Reader == nil || c.Dispatcher == nil || c.Storage == nil {
		return fmt.Errorf("%w: pipeline missing components", contract.ErrInvalidInput)
	}
	if len(s.Inputs) == 0 {
		return fmt.Errorf("%w: pipeline empty inputs", contract.ErrInvalidInput)
	}
	return nil
}
