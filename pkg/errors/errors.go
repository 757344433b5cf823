package errors

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// 行程模块错误。
var (
	TripNotFound = Definition{Code: "TRIP_NOT_FOUND", Message: "Trip not found"}
)

// 价格检查模块错误。
var (
	ProviderRateLimited  = Definition{Code: "PROVIDER_RATE_LIMITED", Message: "Provider rate limited"}
	ProviderAuthFailed   = Definition{Code: "PROVIDER_AUTH_FAILED", Message: "Provider authentication failed"}
	ProviderUnavailable  = Definition{Code: "PROVIDER_UNAVAILABLE", Message: "Provider unavailable"}
	ProviderBadRequest   = Definition{Code: "PROVIDER_BAD_REQUEST", Message: "Provider rejected the request"}
	FetchRetriesExceeded = Definition{Code: "FETCH_RETRIES_EXCEEDED", Message: "Fetch retries exceeded"}
)

// 全量刷新模块错误。
var (
	RefreshInProgress = Definition{Code: "REFRESH_IN_PROGRESS", Message: "Refresh already in progress"}
	LockUnavailable   = Definition{Code: "LOCK_UNAVAILABLE", Message: "Lock store unavailable"}
)
