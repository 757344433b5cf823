package errors

// SkipMessageError 表示消息应当被确认并跳过（例如重复投递），而不是重新入队。
type SkipMessageError struct {
	Reason string
}

func (e *SkipMessageError) Error() string {
	return "skip message: " + e.Reason
}

// IsSkip 判断 err 是否为跳过类错误。
func IsSkip(err error) bool {
	_, ok := err.(*SkipMessageError)
	return ok
}
