package dispatch

import (
	"iter"

	"mdtangle/pkg/contract"
)

// WithDefault 为事件序列提供默认目标：仅当首个元素是缺少目标的事件时，
// 将其目标替换为 fallback；其余元素原样透传。fallback 只在首个元素处消费一次，
// 因此对同一序列再次套用 WithDefault 不会产生任何效果。
func WithDefault(events iter.Seq2[contract.Event, error], fallback contract.Path) iter.Seq2[contract.Event, error] {
	return func(yield func(contract.Event, error) bool) {
		first := true
		for ev, err := range events {
			if first {
				first = false
				if err == nil && ev.Target == nil {
					p := fallback
					ev.Target = &p
				}
			}
			if !yield(ev, err) {
				return
			}
		}
	}
}

// Tracker 记录已流经事件中最后一个目标，用于拼接两段事件流。
type Tracker struct {
	last *contract.Path
}

// Track 返回透传 events 并记录目标的序列。
func (t *Tracker) Track(events iter.Seq2[contract.Event, error]) iter.Seq2[contract.Event, error] {
	return func(yield func(contract.Event, error) bool) {
		for ev, err := range events {
			if err == nil && ev.Target != nil {
				p := *ev.Target
				t.last = &p
			}
			if !yield(ev, err) {
				return
			}
		}
	}
}

// Last 返回最后一个已见目标。
func (t *Tracker) Last() (contract.Path, bool) {
	if t.last == nil {
		return "", false
	}
	return *t.last, true
}

// Splice 先消费 a，再消费 b；b 以 a 的最后目标作为默认目标，
// 使两段分别分发的事件流拼接后仍满足“缺省即沿用上一文件”的语义。
func Splice(a, b iter.Seq2[contract.Event, error]) iter.Seq2[contract.Event, error] {
	return func(yield func(contract.Event, error) bool) {
		var tr Tracker
		for ev, err := range tr.Track(a) {
			if !yield(ev, err) {
				return
			}
		}
		tail := b
		if last, ok := tr.Last(); ok {
			tail = WithDefault(b, last)
		}
		for ev, err := range tail {
			if !yield(ev, err) {
				return
			}
		}
	}
}
