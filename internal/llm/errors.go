package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

// ErrorKind classifies a failed model call. Callers never see raw
// transport errors; everything is normalized into this taxonomy.
type ErrorKind string

const (
	KindRateLimited    ErrorKind = "rate_limited"
	KindTimeout        ErrorKind = "timeout"
	KindServerError    ErrorKind = "server_error"
	KindAuthError      ErrorKind = "auth_error"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindUnknown        ErrorKind = "unknown"
)

// CallError is the only error type the gateway returns.
type CallError struct {
	Kind     ErrorKind
	Message  string
	Attempts int
	Err      error
}

func (e *CallError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("llm call failed (%s) after %d attempts: %s", e.Kind, e.Attempts, e.Message)
	}
	return fmt.Sprintf("llm call failed (%s): %s", e.Kind, e.Message)
}

func (e *CallError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying.
func (e *CallError) Transient() bool {
	switch e.Kind {
	case KindRateLimited, KindTimeout, KindServerError:
		return true
	}
	return false
}

// AsCallError extracts a *CallError from an error chain.
func AsCallError(err error) (*CallError, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// classify maps SDK and transport errors onto the taxonomy.
func classify(err error) *CallError {
	if err == nil {
		return nil
	}

	if ce, ok := AsCallError(err); ok {
		return ce
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &CallError{Kind: KindTimeout, Message: err.Error(), Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &CallError{Kind: KindTimeout, Message: err.Error(), Err: err}
	}

	var anthroErr *anthropic.Error
	if errors.As(err, &anthroErr) {
		return &CallError{Kind: kindFromStatus(anthroErr.StatusCode), Message: err.Error(), Err: err}
	}

	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) {
		return &CallError{Kind: kindFromStatus(oaiErr.HTTPStatusCode), Message: err.Error(), Err: err}
	}
	var oaiReqErr *openai.RequestError
	if errors.As(err, &oaiReqErr) {
		return &CallError{Kind: kindFromStatus(oaiReqErr.HTTPStatusCode), Message: err.Error(), Err: err}
	}

	return &CallError{Kind: KindUnknown, Message: err.Error(), Err: err}
}

func kindFromStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return KindRateLimited
	case status == 408:
		return KindTimeout
	case status >= 500:
		return KindServerError
	case status == 401 || status == 403:
		return KindAuthError
	case status >= 400:
		return KindInvalidRequest
	}
	return KindUnknown
}
