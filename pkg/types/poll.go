package types

// ============================================================================
//                              Poll - 三态轮询结果
// ============================================================================

// PollState 轮询状态
type PollState uint8

const (
	// PollPending 尚未就绪，调用方需要稍后再次轮询
	PollPending PollState = iota

	// PollReady 已就绪，Value 有效
	PollReady

	// PollEnded 序列已结束（有序结束，不是错误）
	PollEnded
)

// String 返回状态字符串
func (s PollState) String() string {
	switch s {
	case PollPending:
		return "pending"
	case PollReady:
		return "ready"
	case PollEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Poll 一次非阻塞推进的结果
//
// 错误不在 Poll 中表示，而是通过并列的 error 返回值传递。
type Poll[T any] struct {
	State PollState
	Value T
}

// Pending 返回未就绪结果
func Pending[T any]() Poll[T] {
	return Poll[T]{State: PollPending}
}

// Ready 返回携带值的就绪结果
func Ready[T any](v T) Poll[T] {
	return Poll[T]{State: PollReady, Value: v}
}

// Ended 返回结束结果
func Ended[T any]() Poll[T] {
	return Poll[T]{State: PollEnded}
}

// IsPending 是否未就绪
func (p Poll[T]) IsPending() bool { return p.State == PollPending }

// IsReady 是否就绪
func (p Poll[T]) IsReady() bool { return p.State == PollReady }

// IsEnded 是否已结束
func (p Poll[T]) IsEnded() bool { return p.State == PollEnded }

// MapPoll 转换就绪值，保持状态不变
func MapPoll[T, U any](p Poll[T], fn func(T) U) Poll[U] {
	if p.State != PollReady {
		return Poll[U]{State: p.State}
	}
	return Ready(fn(p.Value))
}
