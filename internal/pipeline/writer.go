package pipeline

import (
	"context"
	"fmt"
	"io"
	"iter"

	"mdtangle/internal/diag"
	"mdtangle/pkg/contract"
)

// ErrKind 写出错误类别。
type ErrKind int

const (
	// KindMissingTarget: 首个事件缺少目标。
	KindMissingTarget ErrKind = iota + 1
	// KindIteration: 上游序列失败。
	KindIteration
	// KindOpen: 存储拒绝打开目标。
	KindOpen
	// KindWrite: 追加写入或释放句柄失败。
	KindWrite
)

func (k ErrKind) String() string {
	switch k {
	case KindMissingTarget:
		return "missing_target"
	case KindIteration:
		return "iteration"
	case KindOpen:
		return "open"
	case KindWrite:
		return "write"
	default:
		return fmt.Sprintf("ErrKind(%d)", int(k))
	}
}

func (k ErrKind) sentinel() error {
	switch k {
	case KindMissingTarget:
		return contract.ErrMissingTarget
	case KindIteration:
		return contract.ErrIteration
	case KindOpen:
		return contract.ErrStorageOpen
	case KindWrite:
		return contract.ErrStorageWrite
	default:
		return nil
	}
}

// WriteError 写出端的类型化错误。errors.Is 同时匹配类别哨兵与底层原因。
type WriteError struct {
	Kind ErrKind
	Path contract.Path
	Err  error
}

func (e *WriteError) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Path != "" {
		msg += " (" + string(e.Path) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *WriteError) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// WriteStats 单次写出的统计。
type WriteStats struct {
	Events int64
	Files  int64
	Bytes  int64
}

// Writer 将事件序列落到存储：有目标的事件切换文件，无目标的事件追加到当前文件。
// 同一时刻最多持有一个句柄；任何退出路径都会释放。
type Writer struct {
	Storage contract.Storage
	Logger  *diag.Logger
}

// WriteEvents 以默认 Writer 写出事件序列。
func WriteEvents(ctx context.Context, events iter.Seq2[contract.Event, error], st contract.Storage) (WriteStats, error) {
	w := Writer{Storage: st}
	return w.Write(ctx, events)
}

// Write 消费 events 直至耗尽或出错。
// 首个事件必须带目标，否则不触碰存储直接返回 KindMissingTarget。
// 已关闭的文件不回滚。
func (w *Writer) Write(ctx context.Context, events iter.Seq2[contract.Event, error]) (stats WriteStats, err error) {
	var (
		cur     io.WriteCloser
		curPath contract.Path
	)
	defer func() {
		if cur == nil {
			return
		}
		if cerr := cur.Close(); cerr != nil && err == nil {
			err = w.fail(&WriteError{Kind: KindWrite, Path: curPath, Err: cerr})
		}
	}()

	for ev, ierr := range events {
		if cerr := ctx.Err(); cerr != nil {
			return stats, cerr
		}
		if ierr != nil {
			return stats, w.fail(&WriteError{Kind: KindIteration, Path: curPath, Err: ierr})
		}
		if ev.Target != nil {
			if cur != nil {
				h := cur
				cur = nil
				if cerr := h.Close(); cerr != nil {
					return stats, w.fail(&WriteError{Kind: KindWrite, Path: curPath, Err: cerr})
				}
			}
			curPath = *ev.Target
			h, oerr := w.Storage.OpenAppend(ctx, curPath)
			if oerr != nil {
				return stats, w.fail(&WriteError{Kind: KindOpen, Path: curPath, Err: oerr})
			}
			cur = h
			stats.Files++
			w.Logger.DebugStart("writer", "open", string(curPath), nil)
			diag.IncOp("writer", "open", "success")
			if t := diag.GetTerminal(); t != nil {
				t.FileOpen(string(curPath))
			}
		} else if cur == nil {
			return stats, w.fail(&WriteError{Kind: KindMissingTarget})
		}
		n, werr := io.WriteString(cur, ev.Block.Content)
		stats.Bytes += int64(n)
		if werr != nil {
			return stats, w.fail(&WriteError{Kind: KindWrite, Path: curPath, Err: werr})
		}
		stats.Events++
		if t := diag.GetTerminal(); t != nil {
			t.BlockWritten()
		}
	}
	return stats, nil
}

func (w *Writer) fail(e *WriteError) error {
	code := diag.Classify(e)
	w.Logger.ErrorWithKV("writer", string(code), e.Kind.String()+" failed", nil, string(e.Path), errKV(e.Err))
	diag.IncOp("writer", "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError("writer", string(code))
	}
	return e
}

func errKV(err error) map[string]string {
	if err == nil {
		return nil
	}
	return map[string]string{"err": err.Error()}
}
