package execution

import "errors"

var (
	// ErrFillTimeout 等待成交超时；由调用方负责撤单。
	ErrFillTimeout = errors.New("fill wait timeout")

	// ErrInvalidQuantity 请求数量小于 1，属于前置条件违反。
	ErrInvalidQuantity = errors.New("requested quantity must be >= 1")
)
