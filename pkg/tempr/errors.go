package tempr

import (
	"errors"
	"fmt"
)

// Kind is the observable error category from the error taxonomy.
// Names are internal; callers match with errors.Is against the
// sentinel values below, not against Kind directly.
type Kind int

const (
	kindNotFound Kind = iota
	kindInvalid
	kindEmbedUnavailable
	kindLlmUnavailable
	kindCoreUnavailable
	kindDeadlineExceeded
)

// Sentinel errors for the taxonomy in spec §7. Wrap with fmt.Errorf("...: %w", ErrX)
// and unwrap with errors.Is/errors.As, following the donor's wrapError convention.
var (
	// ErrNotFound: bank or document absent.
	ErrNotFound = errors.New("tempr: not found")
	// ErrInvalid: malformed input (empty query, unknown fact_type, max_tokens=0, ...).
	ErrInvalid = errors.New("tempr: invalid input")
	// ErrEmbedUnavailable: the embedding client returned an error. The
	// call is not retried.
	ErrEmbedUnavailable = errors.New("tempr: embedding client unavailable")
	// ErrLlmUnavailable: an LLM-backed hook returned an error. The call is
	// not retried.
	ErrLlmUnavailable = errors.New("tempr: llm hook unavailable")
	// ErrCoreUnavailable: the fact or graph store is unavailable.
	ErrCoreUnavailable = errors.New("tempr: core store unavailable")
	// ErrDeadlineExceeded: the recall deadline elapsed before any usable result.
	ErrDeadlineExceeded = errors.New("tempr: deadline exceeded before a usable result")
)

// coreError wraps a sentinel with contextual detail, matching the donor's
// fmt.Errorf("%w: ...") idiom so errors.Is still finds the sentinel.
type coreError struct {
	sentinel error
	msg      string
}

func (e *coreError) Error() string { return e.msg }
func (e *coreError) Unwrap() error { return e.sentinel }

func wrap(sentinel error, format string, args ...any) error {
	return &coreError{sentinel: sentinel, msg: fmt.Sprintf(format, args...) + ": " + sentinel.Error()}
}

// Invalidf builds an Invalid error with a formatted message.
func Invalidf(format string, args ...any) error {
	return wrap(ErrInvalid, format, args...)
}

// NotFoundf builds a NotFound error with a formatted message.
func NotFoundf(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// EmbedUnavailablef builds an EmbedUnavailable error with a formatted message.
func EmbedUnavailablef(format string, args ...any) error {
	return wrap(ErrEmbedUnavailable, format, args...)
}

// LlmUnavailablef builds an LlmUnavailable error with a formatted message.
func LlmUnavailablef(format string, args ...any) error {
	return wrap(ErrLlmUnavailable, format, args...)
}

// CoreUnavailablef builds a CoreUnavailable error with a formatted message.
func CoreUnavailablef(format string, args ...any) error {
	return wrap(ErrCoreUnavailable, format, args...)
}

// DeadlineExceededf builds a DeadlineExceeded error with a formatted message.
func DeadlineExceededf(format string, args ...any) error {
	return wrap(ErrDeadlineExceeded, format, args...)
}

// IsNotFound, IsInvalid, etc. are convenience wrappers over errors.Is,
// matching how callers at the boundary are expected to branch on kind
// without importing the "errors" package themselves.
func IsNotFound(err error) bool         { return errors.Is(err, ErrNotFound) }
func IsInvalid(err error) bool          { return errors.Is(err, ErrInvalid) }
func IsEmbedUnavailable(err error) bool { return errors.Is(err, ErrEmbedUnavailable) }
func IsLlmUnavailable(err error) bool   { return errors.Is(err, ErrLlmUnavailable) }
func IsCoreUnavailable(err error) bool  { return errors.Is(err, ErrCoreUnavailable) }
func IsDeadlineExceeded(err error) bool { return errors.Is(err, ErrDeadlineExceeded) }

// Partial is not an error. It is the soft-failure marker from spec §7:
// attached to a RecallResponse.Warnings slice when one or more strategies
// failed but others produced results, never raised or wrapped as an error.
const (
	WarnRerankUnavailable = "rerank_unavailable"
	WarnStrategyFailed    = "strategy_failed"
)
