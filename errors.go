package p2pcore

import "errors"

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 节点生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 节点未启动
	ErrNotStarted = errors.New("node not started")

	// ErrAlreadyStarted 节点已启动
	ErrAlreadyStarted = errors.New("node already started")

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("node closed")

	// ────────────────────────────────────────────────────────────────────────
	// 选项错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrInvalidOption 选项参数无效
	ErrInvalidOption = errors.New("invalid option")
)
