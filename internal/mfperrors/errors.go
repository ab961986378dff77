// Package mfperrors defines the typed error hierarchy the rest of the
// system raises and the meta-tool surface flattens into {error, error_type}
// responses.
package mfperrors

import "fmt"

// Kind identifies one of the error taxonomy's branches. The string value is
// also the wire-level error_type token the meta-tool surface emits.
type Kind string

const (
	KindCompile          Kind = "compile"
	KindSpecFetch        Kind = "spec_fetch"
	KindSecurityViolation Kind = "security"
	KindLint             Kind = "lint"
	KindExecution        Kind = "execution"
	KindExecutionTimeout Kind = "timeout"
	KindCache            Kind = "cache"
	KindServerNotFound   Kind = "server_not_found"
	KindFunctionNotFound Kind = "function_not_found"
	KindConfiguration    Kind = "configuration"
	KindInternal         Kind = "internal"
)

// MFPError is the single error type used across the module. Subkind-specific
// data (lint output, exit code, stderr) lives in dedicated fields rather
// than being encoded into Message, so callers can inspect it without
// string-parsing.
type MFPError struct {
	Kind     Kind
	Message  string
	Cause    error
	Output   string // LintError: the linter's combined output
	Stderr   string // ExecutionError: captured stderr, truncated
	ExitCode int    // ExecutionError/ExecutionTimeout: process exit code
}

func (e *MFPError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *MFPError) Unwrap() error { return e.Cause }

func NewCompileError(msg string, cause error) *MFPError {
	return &MFPError{Kind: KindCompile, Message: msg, Cause: cause}
}

// NewSpecFetchError is a CompileError subkind for spec retrieval failures
// (network or filesystem I/O).
func NewSpecFetchError(msg string, cause error) *MFPError {
	return &MFPError{Kind: KindSpecFetch, Message: msg, Cause: cause}
}

func NewSecurityViolation(msg string) *MFPError {
	return &MFPError{Kind: KindSecurityViolation, Message: msg}
}

func NewLintError(output string) *MFPError {
	return &MFPError{Kind: KindLint, Message: "lint check failed", Output: output}
}

func NewExecutionError(stderr string, exitCode int) *MFPError {
	return &MFPError{Kind: KindExecution, Message: "program exited with an error", Stderr: stderr, ExitCode: exitCode}
}

// NewExecutionTimeout is an ExecutionError subkind; exit code 124 is
// the killed-by-timeout convention.
func NewExecutionTimeout() *MFPError {
	return &MFPError{Kind: KindExecutionTimeout, Message: "execution timed out", ExitCode: 124}
}

func NewCacheError(cause error) *MFPError {
	return &MFPError{Kind: KindCache, Message: "cache operation failed", Cause: cause}
}

func NewServerNotFound(name string, available []string) *MFPError {
	return &MFPError{Kind: KindServerNotFound, Message: fmt.Sprintf("server %q not found. Available: %v", name, available)}
}

func NewFunctionNotFound(server, function string, available []string) *MFPError {
	return &MFPError{Kind: KindFunctionNotFound, Message: fmt.Sprintf("function %q not found on server %q. Available: %v", function, server, available)}
}

func NewConfigurationError(msg string) *MFPError {
	return &MFPError{Kind: KindConfiguration, Message: msg}
}

func NewInternalError(cause error) *MFPError {
	return &MFPError{Kind: KindInternal, Message: "internal error", Cause: cause}
}

// ErrorType returns the wire-level error_type token for any error: the
// Kind of an *MFPError, or "internal" for anything else (an unexpected,
// un-typed failure).
func ErrorType(err error) string {
	if err == nil {
		return ""
	}
	var mfpErr *MFPError
	if AsMFPError(err, &mfpErr) {
		return string(mfpErr.Kind)
	}
	return string(KindInternal)
}

// AsMFPError is a small errors.As wrapper kept local to avoid importing
// the standard errors package into every caller just for this one check.
func AsMFPError(err error, target **MFPError) bool {
	for err != nil {
		if e, ok := err.(*MFPError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
