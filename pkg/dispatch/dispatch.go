package dispatch

import (
	"iter"

	"mdtangle/pkg/contract"
)

// Events 按到达顺序对每个代码块调用 d，产出事件序列。
// 输入元素失败时立即产出该错误，不向后预读；空输入产出空序列。
// 返回的序列只能从头单次消费（d 的游标随消费推进）。
func Events(blocks iter.Seq2[contract.CodeBlock, error], d contract.Dispatcher) iter.Seq2[contract.Event, error] {
	return func(yield func(contract.Event, error) bool) {
		for b, err := range blocks {
			if err != nil {
				if !yield(contract.Event{}, err) {
					return
				}
				continue
			}
			if !yield(contract.Event{Target: d.Dispatch(b), Block: b}, nil) {
				return
			}
		}
	}
}
