package diag

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"mdtangle/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeNetwork   Code = "network"
	CodeInvariant Code = "invariant"
	CodeIteration Code = "iteration"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	if errors.Is(err, contract.ErrMissingTarget) ||
		errors.Is(err, contract.ErrPathInvalid) ||
		errors.Is(err, contract.ErrHandleBusy) ||
		errors.Is(err, contract.ErrInvalidInput) {
		return CodeInvariant
	}
	if errors.Is(err, contract.ErrIteration) {
		return CodeIteration
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return CodeNetwork
	}
	var perr *os.PathError
	if errors.As(err, &perr) ||
		errors.Is(err, contract.ErrStorageOpen) ||
		errors.Is(err, contract.ErrStorageWrite) {
		return CodeIO
	}
	return CodeUnknown
}

// NowUTC 返回 RFC3339 UTC 时间字符串。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
