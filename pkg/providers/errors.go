package providers

import (
	"errors"
	"fmt"

	fwerrors "FareWatch/pkg/errors"
)

// ProviderError 表示行情提供商返回的可识别错误。
// Transient 为 true 时调用方可以按策略重试（限流、5xx、网络抖动）；
// 为 false 时属于预期内的永久失败（鉴权失败、请求非法），不应重试。
type ProviderError struct {
	Provider  string
	Code      string
	Message   string
	Transient bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
}

// IsTransient 判断 err 链上是否存在可重试的提供商错误。
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}

// classifyStatus 将 HTTP 状态码映射为 ProviderError。
func classifyStatus(provider string, status int, body string) *ProviderError {
	switch {
	case status == 429:
		return &ProviderError{Provider: provider, Code: fwerrors.ProviderRateLimited.Code, Message: fwerrors.ProviderRateLimited.Message, Transient: true}
	case status == 401 || status == 403:
		return &ProviderError{Provider: provider, Code: fwerrors.ProviderAuthFailed.Code, Message: fwerrors.ProviderAuthFailed.Message, Transient: false}
	case status >= 500:
		return &ProviderError{Provider: provider, Code: fwerrors.ProviderUnavailable.Code, Message: fmt.Sprintf("upstream %d", status), Transient: true}
	default:
		return &ProviderError{Provider: provider, Code: fwerrors.ProviderBadRequest.Code, Message: truncate(body, 200), Transient: false}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
