package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Retryable       bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrTimeout: {
		Code:            ErrTimeout,
		Retryable:       true,
		Description:     "Operation exceeded time limit",
		SuggestedAction: "Retry, or check timeout configuration in ~/.dicta/config.yaml",
	},
	ErrConnection: {
		Code:            ErrConnection,
		Retryable:       true,
		Description:     "Streaming socket could not be opened or dropped unexpectedly",
		SuggestedAction: "Check network connectivity and streaming token, then resume recording",
	},
	ErrConnectionClosed: {
		Code:            ErrConnectionClosed,
		Retryable:       true,
		Description:     "Streaming socket closed before the session terminated",
		SuggestedAction: "Resume recording; the archived frames up to the close are preserved",
	},
	ErrArchival: {
		Code:            ErrArchival,
		Retryable:       false,
		Description:     "Recorded frames could not be assembled into an audio file",
		SuggestedAction: "Inspect the meeting error message: dicta meeting show <meeting-id>",
	},
	ErrUpload: {
		Code:            ErrUpload,
		Retryable:       true,
		Description:     "Archived audio upload failed; the live transcript is preserved",
		SuggestedAction: "Retry processing once connectivity is restored: dicta process retry <meeting-id>",
	},
	ErrRateLimit: {
		Code:            ErrRateLimit,
		Retryable:       true,
		Description:     "External API rate limit exceeded",
		SuggestedAction: "Wait and retry, or check quota limits with the AI provider",
	},
	ErrModelUnavailable: {
		Code:            ErrModelUnavailable,
		Retryable:       true,
		Description:     "Speech-to-text or AI service unavailable",
		SuggestedAction: "Check service status, then: dicta process retry <meeting-id>",
	},
	ErrContextCancelled: {
		Code:            ErrContextCancelled,
		Retryable:       false,
		Description:     "Operation cancelled by user or system",
		SuggestedAction: "Check if cancellation was intentional, or investigate upstream cancellation",
	},
	ErrParseError: {
		Code:            ErrParseError,
		Retryable:       false,
		Description:     "External service response could not be parsed",
		SuggestedAction: "Inspect the job error: dicta meeting show <meeting-id>",
	},
	ErrEmptyTranscript: {
		Code:            ErrEmptyTranscript,
		Retryable:       false,
		Description:     "Transcription produced no text",
		SuggestedAction: "Verify the archived audio contains speech: dicta meeting show <meeting-id>",
	},
	ErrProcessingError: {
		Code:            ErrProcessingError,
		Retryable:       false,
		Description:     "Unclassified processing failure",
		SuggestedAction: "Inspect the job error, then: dicta process retry <meeting-id>",
	},
}

// CodeInfo returns metadata for a code, with a zero value for unknown codes.
func CodeInfo(code ErrorCode) (ErrorCodeInfo, bool) {
	info, ok := ErrorCodeRegistry[code]
	return info, ok
}
