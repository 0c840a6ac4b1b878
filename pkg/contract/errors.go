package contract

import "errors"

// 写出/存储相关最小错误分类。
var (
	// ErrMissingTarget: 事件序列的首个事件缺少目标，无文件可打开。
	ErrMissingTarget = errors.New("missing initial target")
	// ErrIteration: 上游代码块/事件序列自身失败（读取/解析错误）。
	ErrIteration = errors.New("block iteration failed")
	// ErrStorageOpen: 输出存储拒绝打开目标（权限、无效路径等）。
	ErrStorageOpen = errors.New("storage open failed")
	// ErrStorageWrite: 追加写入字节失败。
	ErrStorageWrite = errors.New("storage write failed")
	// ErrPathInvalid: 目标路径映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrHandleBusy: 存储已有一个打开的追加句柄；同一时刻只允许一个。
	ErrHandleBusy = errors.New("storage handle busy")
	// ErrInvalidInput: 调用参数不合法。
	ErrInvalidInput = errors.New("invalid input")
)
