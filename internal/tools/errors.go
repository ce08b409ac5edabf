package tools

import "fmt"

// Error codes surfaced to the selection conversation. These are data,
// not exceptions: the conversation adapts to them instead of crashing.
const (
	CodeUnknownOperation = "unknown_operation"
	CodeBadArguments     = "bad_arguments"
	CodeTimeout          = "timeout"
	CodeRateLimited      = "rate_limited"
	CodeNotFound         = "not_found"
	CodeUpstream         = "upstream_error"
)

// Error is the structured failure shape every tool operation returns
// instead of raising. FallbackSuggested hints that the caller should
// try a different operation or looser arguments.
type Error struct {
	Code              string `json:"error_code"`
	Message           string `json:"message"`
	FallbackSuggested bool   `json:"fallback_suggested"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool error %s: %s", e.Code, e.Message)
}
