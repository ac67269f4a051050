// Package ragerr defines the concept-level error taxonomy shared across
// the ingestion, search, and storage layers. Components wrap a sentinel
// with context via fmt.Errorf("...: %w", ...) rather than inventing new
// error types per package.
package ragerr

import "errors"

var (
	// ErrFetch is a network failure or non-2xx response from an external source.
	ErrFetch = errors.New("fetch error")
	// ErrParse is malformed JSON/YAML/CSV/PDF, or an LLM response violating its schema.
	ErrParse = errors.New("parse error")
	// ErrContentUnchanged means re-ingestion detected identical content; non-fatal.
	ErrContentUnchanged = errors.New("content unchanged")
	// ErrDatabase is a storage failure; fatal to the current operation.
	ErrDatabase = errors.New("database error")
	// ErrEmbedding is an embedding-service failure.
	ErrEmbedding = errors.New("embedding error")
	// ErrLLM is a generation API failure.
	ErrLLM = errors.New("llm error")
	// ErrConfiguration is missing credentials, an invalid URL pattern, or an
	// unsupported backend for an operation.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound is a missing table, repository, or document.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedOperation is returned when a backend lacks a capability.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// Is reports whether err ultimately wraps target, forwarding to errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
