package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError so ErrorCodeOf can resolve
// the pair to a specific code.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrDisabled     = fmt.Errorf("disabled")
)

// Sentinel errors for the query pipeline.
var (
	// ErrConfiguration is fatal at startup: unknown backend or client, missing keys.
	ErrConfiguration = fmt.Errorf("invalid configuration")
	// ErrSearchProvider is a transport or status failure talking to a search API.
	ErrSearchProvider = fmt.Errorf("search provider failed")
	// ErrCompletionRequest means the answer stream could not be started.
	ErrCompletionRequest = fmt.Errorf("completion request failed")
	// ErrRelatedQuestions never reaches a caller; it is logged and downgraded to an empty list.
	ErrRelatedQuestions = fmt.Errorf("related questions failed")
	// ErrStoreUnavailable is returned by result stores that cannot be reached.
	ErrStoreUnavailable = fmt.Errorf("result store unavailable")
	ErrDecryption       = fmt.Errorf("decryption failed")

	// LLM status classes, wrapped into ErrCompletionRequest by the engine.
	ErrContextOverflow     = fmt.Errorf("context window exceeded")
	ErrRateLimit           = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid         = fmt.Errorf("authentication failed")
	ErrProviderUnavailable = fmt.Errorf("provider unavailable")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Search.Google")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "google", "redis"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for logs and metrics labels.
type ErrorCode string

const (
	CodeUnknown             ErrorCode = "UNKNOWN"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodeInvalidInput        ErrorCode = "INVALID_INPUT"
	CodeDisabled            ErrorCode = "DISABLED"
	CodeConfiguration       ErrorCode = "CONFIGURATION"
	CodeSearchProvider      ErrorCode = "SEARCH_PROVIDER"
	CodeCompletionRequest   ErrorCode = "COMPLETION_REQUEST"
	CodeRelatedQuestions    ErrorCode = "RELATED_QUESTIONS"
	CodeStoreUnavailable    ErrorCode = "STORE_UNAVAILABLE"
	CodeDecryption          ErrorCode = "DECRYPTION"
	CodeContextOverflow     ErrorCode = "CONTEXT_OVERFLOW"
	CodeRateLimit           ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid         ErrorCode = "AUTH_INVALID"
	CodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"

	// Subsystem-specific codes.
	CodeSearchTimeout   ErrorCode = "SEARCH_TIMEOUT"
	CodeStoreMiss       ErrorCode = "STORE_MISS"
	CodeCompletionLimit ErrorCode = "COMPLETION_TIMEOUT"
)

var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:            CodeNotFound,
	ErrTimeout:             CodeTimeout,
	ErrInvalidInput:        CodeInvalidInput,
	ErrDisabled:            CodeDisabled,
	ErrConfiguration:       CodeConfiguration,
	ErrSearchProvider:      CodeSearchProvider,
	ErrCompletionRequest:   CodeCompletionRequest,
	ErrRelatedQuestions:    CodeRelatedQuestions,
	ErrStoreUnavailable:    CodeStoreUnavailable,
	ErrDecryption:          CodeDecryption,
	ErrContextOverflow:     CodeContextOverflow,
	ErrRateLimit:           CodeRateLimit,
	ErrAuthInvalid:         CodeAuthInvalid,
	ErrProviderUnavailable: CodeProviderUnavailable,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrTimeout: {
		"search": CodeSearchTimeout,
		"llm":    CodeCompletionLimit,
	},
	ErrNotFound: {
		"store": CodeStoreMiss,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	// Outer sentinels win over the ones they wrap, so check the request-level
	// categories before the provider status classes.
	for _, sentinel := range []error{ErrSearchProvider, ErrCompletionRequest, ErrRelatedQuestions, ErrConfiguration, ErrStoreUnavailable} {
		if errors.Is(err, sentinel) {
			return errorCodeMap[sentinel]
		}
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
