package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrorCode represents a classified capture or pipeline error.
type ErrorCode string

const (
	ErrTimeout          ErrorCode = "timeout"
	ErrConnection       ErrorCode = "connection_error"
	ErrConnectionClosed ErrorCode = "connection_closed"
	ErrArchival         ErrorCode = "archival_error"
	ErrUpload           ErrorCode = "upload_error"
	ErrRateLimit        ErrorCode = "rate_limit"
	ErrModelUnavailable ErrorCode = "model_unavailable"
	ErrContextCancelled ErrorCode = "context_cancelled"
	ErrParseError       ErrorCode = "parse_error"
	ErrEmptyTranscript  ErrorCode = "empty_transcript"
	ErrProcessingError  ErrorCode = "processing_error"
)

// PipelineError is a structured error for capture and pipeline failures.
type PipelineError struct {
	Code     ErrorCode
	Stage    string
	Message  string
	Duration time.Duration
	Timeout  time.Duration
	Cause    error
}

func (e *PipelineError) Error() string {
	if e.Timeout > 0 && e.Duration > 0 {
		return fmt.Sprintf("%s: %s timed out after %s (limit: %s)", e.Code, e.Stage, e.Duration.Truncate(time.Second), e.Timeout.Truncate(time.Second))
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewStageError builds a PipelineError for a named pipeline stage.
func NewStageError(code ErrorCode, stage, message string, cause error) *PipelineError {
	return &PipelineError{Code: code, Stage: stage, Message: message, Cause: cause}
}

// ClassifyError inspects an error and returns a *PipelineError with the appropriate code.
// If the error doesn't match any known pattern, it returns a PipelineError with ErrProcessingError.
func ClassifyError(err error, stage string) *PipelineError {
	if err == nil {
		return nil
	}

	// Already classified; keep the original code and message.
	var existing *PipelineError
	if errors.As(err, &existing) {
		return existing
	}

	pe := &PipelineError{
		Stage: stage,
		Cause: err,
	}

	if errors.Is(err, context.DeadlineExceeded) {
		pe.Code = ErrTimeout
		pe.Message = "operation timed out"
		return pe
	}

	if errors.Is(err, context.Canceled) {
		pe.Code = ErrContextCancelled
		pe.Message = "operation cancelled"
		return pe
	}

	if errors.Is(err, ErrNoAudio) {
		pe.Code = ErrArchival
		pe.Message = err.Error()
		return pe
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			pe.Code = ErrTimeout
		} else {
			pe.Code = ErrConnection
		}
		pe.Message = err.Error()
		return pe
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	// Socket lifecycle patterns
	if strings.Contains(lower, "websocket") && (strings.Contains(lower, "close") || strings.Contains(lower, "closed")) {
		pe.Code = ErrConnectionClosed
		pe.Message = msg
		return pe
	}
	if strings.Contains(lower, "connection reset") || strings.Contains(lower, "broken pipe") || strings.Contains(lower, "connection refused") {
		pe.Code = ErrConnection
		pe.Message = msg
		return pe
	}

	// Upload patterns
	if strings.Contains(lower, "upload") {
		pe.Code = ErrUpload
		pe.Message = msg
		return pe
	}

	// Empty transcript patterns
	if strings.Contains(lower, "empty transcript") || strings.Contains(lower, "no transcript") || strings.Contains(lower, "transcript is empty") {
		pe.Code = ErrEmptyTranscript
		pe.Message = msg
		return pe
	}

	// Rate limit patterns
	if strings.Contains(lower, "rate limit") || strings.Contains(lower, "429") || strings.Contains(lower, "too many requests") || strings.Contains(lower, "quota exceeded") {
		pe.Code = ErrRateLimit
		pe.Message = msg
		return pe
	}

	// Model unavailable patterns
	if strings.Contains(lower, "unavailable") || strings.Contains(lower, "503") || strings.Contains(lower, "no such host") {
		pe.Code = ErrModelUnavailable
		pe.Message = msg
		return pe
	}

	// Parse patterns
	if strings.Contains(lower, "unmarshal") || strings.Contains(lower, "invalid json") || strings.Contains(lower, "parse") {
		pe.Code = ErrParseError
		pe.Message = msg
		return pe
	}

	pe.Code = ErrProcessingError
	pe.Message = msg
	return pe
}

// IsTimeout returns true if the error is a timeout error.
func IsTimeout(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code == ErrTimeout
	}
	return false
}

// IsErrorRetryable returns true if the error is likely transient and worth retrying.
// This function checks the error code using the ErrorCodeRegistry.
func IsErrorRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		if info, ok := ErrorCodeRegistry[pe.Code]; ok {
			return info.Retryable
		}
		return false
	}
	return false
}
