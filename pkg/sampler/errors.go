package sampler

import "errors"

// 错误分类（统一错误语义，调用方用 errors.Is 判断类别）
// 约定：单个 source/sink 回调失败只记录日志并跳过，
// 只有生命周期误用和非法参数才会使整个调用失败。
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAlreadyActive   = errors.New("session already active")
	ErrAlreadyStopped  = errors.New("session already stopped")
	ErrNotStarted      = errors.New("session not started")
	ErrTooManyPatterns = errors.New("too many filter patterns")
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("session duration exceeded")
)
