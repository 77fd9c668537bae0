package model

// Result 统一的操作结果信封 {success, data?, error?}
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK 成功结果
func OK[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail 失败结果，err 为 nil 时使用通用消息
func Fail[T any](err error) Result[T] {
	msg := "Unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Result[T]{Success: false, Error: msg}
}
