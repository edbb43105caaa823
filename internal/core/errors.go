package core

// Error codes for domain errors surfaced to clients.
const (
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeBanned           = "banned"
	ErrCodeMuted            = "muted"
	ErrCodeFiltered         = "filtered_content"
	ErrCodeSelfRequest      = "self_request"
	ErrCodeDuplicateRequest = "duplicate_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeBadRequest       = "bad_request"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
