// Package dispatch 将代码块序列映射为事件序列，并提供默认目标组合子。
//
// 分发器是有状态的：首个事件应给出目标文件，其后返回 nil 表示继续写入同一文件，
// 返回非 nil 表示切换到另一个文件。本包不校验首个事件是否携带目标，
// 该校验集中在写出端（pipeline.WriteEvents）。
package dispatch
