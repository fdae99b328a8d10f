package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrEmptyResponse       = errors.New("empty response body")
	ErrInvalidURL          = errors.New("invalid URL")
	ErrDocumentShape       = errors.New("document must be a non-empty string or a parsed document")
	ErrPaginationExhausted = errors.New("no next page")
	ErrNoFetcher           = errors.New("no fetcher configured")
	ErrNoWriter            = errors.New("no article writer configured")
	ErrNoCheckpointStore   = errors.New("no checkpoint store configured")
	ErrCrawlRunning        = errors.New("crawl is already running")
	ErrRecordNotFound      = errors.New("record not found")
)

// ConfigError reports an invalid or missing configuration value.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError builds a ConfigError from a format string.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// SelectorShapeError is returned when a selector argument is neither a
// single pattern nor an ordered list of patterns.
type SelectorShapeError struct {
	Value  any
	Reason string
}

func (e *SelectorShapeError) Error() string {
	if e.Value == nil {
		return "selector must be a pattern or a list of patterns: " + e.Reason
	}
	return fmt.Sprintf("selector must be a pattern or a list of patterns, got %T: %s", e.Value, e.Reason)
}

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError wraps errors that occur while extracting content from a page.
type ExtractionError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur while persisting articles or records.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
