package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingAPIURL is returned when no Personio API URL is configured.
var ErrMissingAPIURL = errors.New("personio api url is not configured")

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// MalformedInputError reports a feed payload that is not well-formed XML.
type MalformedInputError struct {
	Payload []byte
	Err     error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed xml: %v", e.Err)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// InvalidPathError reports a collection path that cannot be applied to a source.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid array path %q: %s", e.Path, e.Reason)
}

// FieldError is one mapping failure at a node path such as "position.1.name".
type FieldError struct {
	Path    string
	Message string
}

// MappingError aggregates every field that could not be mapped into a job.
type MappingError struct {
	Errors []FieldError
}

func (e *MappingError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Path + ": " + fe.Message
	}
	return fmt.Sprintf("malformed api response (%d errors): %s", len(e.Errors), strings.Join(parts, "; "))
}

// InvalidParametersError reports a contradictory import option combination.
type InvalidParametersError struct {
	Reason string
}

func (e *InvalidParametersError) Error() string {
	return "invalid parameters: " + e.Reason
}

// UnavailableLanguageError reports a language code missing from the site configuration.
type UnavailableLanguageError struct {
	Code string
}

func (e *UnavailableLanguageError) Error() string {
	return fmt.Sprintf("language %q is not available in the site configuration", e.Code)
}

// PostPersistError collects failures of the best-effort steps run after a
// successful persist (slugs, event, cache).
type PostPersistError struct {
	Errs []error
}

func (e *PostPersistError) Error() string {
	return fmt.Sprintf("import persisted with %d follow-up failures: %v", len(e.Errs), errors.Join(e.Errs...))
}

func (e *PostPersistError) Unwrap() []error {
	return e.Errs
}
