package contract

import (
	"context"
	"io"
	"iter"
)

// Storage: 输出存储能力：按相对路径打开追加句柄。
// 约束：
//  1. 同一时刻最多一个打开的句柄；违例返回 ErrHandleBusy；
//  2. 句柄 Close 后方可再次 OpenAppend；
//  3. 内容只追加；是否在创建时截断属于存储自身策略。
type Storage interface {
	OpenAppend(ctx context.Context, p Path) (io.WriteCloser, error)
}

// Walker: 递归遍历输入根，产出源描述符序列（稳定顺序）。
type Walker interface {
	Walk(ctx context.Context, root string) iter.Seq2[Source, error]
}
