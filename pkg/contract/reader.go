package contract

import (
	"context"
	"iter"
)

// Reader: 将源描述符读取为惰性代码块序列。
// 约束：
//  1. 可在内部调用 src.Materialize()；
//  2. 返回序列按源中出现顺序产出代码块；
//  3. 解析失败可在返回时报错，或作为序列元素产出；
//  4. 不在内部起并发。
type Reader interface {
	Read(ctx context.Context, src *Source) (iter.Seq2[CodeBlock, error], error)
}
