package dispatch

import (
	"fmt"
	"iter"
	"slices"
)

// Lift 将不会失败的序列提升为可失败序列（错误恒为 nil）。
func Lift[T any](seq iter.Seq[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for v := range seq {
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Slice 将切片包装为可失败序列。
func Slice[T any](xs []T) iter.Seq2[T, error] {
	return Lift(slices.Values(xs))
}

// Must 断言序列不会失败；遇到错误即 panic。
// 仅供调用方静态确知无错误的场景（例如 Lift 得到的序列）。
func Must[T any](seq iter.Seq2[T, error]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for v, err := range seq {
			if err != nil {
				panic(fmt.Sprintf("dispatch: unexpected error in errorless sequence: %v", err))
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Collect 消费整个序列；遇到首个错误即返回已收集的部分与该错误。
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
