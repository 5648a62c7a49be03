// internal/interact/errors.go
package interact

import (
	"context"
	"errors"
	"strings"

	"github.com/xkilldash9x/zonecheck/internal/browser"
)

// Kind classifies interaction failures.
type Kind string

const (
	// Infrastructure kinds: the page did not reach the expected state in time.
	ElementNotFound Kind = "element_not_found"
	ActionTimeout   Kind = "action_timeout"
	WaitTimeout     Kind = "wait_timeout"

	// AssertionFailure is a business expectation that did not hold.
	AssertionFailure Kind = "assertion_failure"
	// InvalidArgument means the caller passed an unsupported value.
	InvalidArgument Kind = "invalid_argument"
	// DownloadValidationFailure means a downloaded artifact is missing or empty.
	DownloadValidationFailure Kind = "download_validation_failure"
	// PreconditionFailed means the application is not in a state the operation
	// can start from, such as a list with no active entries.
	PreconditionFailed Kind = "precondition_failed"
	// Internal covers driver failures that fit nothing above.
	Internal Kind = "internal"
)

// Error is a classified interaction error.
type Error struct {
	Kind    Kind
	Op      string
	Locator string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(": " + e.Op)
	}
	if e.Locator != "" {
		b.WriteString(" " + e.Locator)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is match on kind: errors.Is(err, &Error{Kind: WaitTimeout}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Locator == "" && t.Message == "" && t.Err == nil
}

// NewError creates a classified error.
func NewError(kind Kind, op string, loc browser.Locator, message string) error {
	return &Error{Kind: kind, Op: op, Locator: locString(loc), Message: message}
}

// Wrap creates a classified error with a cause.
func Wrap(kind Kind, op string, loc browser.Locator, message string, cause error) error {
	return &Error{Kind: kind, Op: op, Locator: locString(loc), Message: message, Err: cause}
}

// Errorf builds a classified error that is not tied to a locator.
func Errorf(kind Kind, op, message string) error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// KindOf returns the kind of err, defaulting to Internal.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) && ie.Kind != "" {
		return ie.Kind
	}
	return Internal
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func locString(loc browser.Locator) string {
	if loc.IsZero() {
		return ""
	}
	return loc.String()
}

// classify maps a driver error from a single-shot operation onto the taxonomy.
// Errors that are already classified pass through untouched.
func classify(op string, loc browser.Locator, err error) error {
	if err == nil {
		return nil
	}
	var ie *Error
	if errors.As(err, &ie) {
		return err
	}
	switch {
	case errors.Is(err, browser.ErrNoMatch), errors.Is(err, browser.ErrStale):
		return Wrap(ElementNotFound, op, loc, "no matching element in the current document", err)
	case errors.Is(err, browser.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return Wrap(ActionTimeout, op, loc, "driver timed out", err)
	default:
		return Wrap(Internal, op, loc, "driver error", err)
	}
}

// retryable reports whether an attempt may succeed if tried again before the
// deadline: the element is missing or not yet actionable.
func retryable(err error) bool {
	return errors.Is(err, browser.ErrNoMatch) ||
		errors.Is(err, browser.ErrNotInteractable) ||
		errors.Is(err, browser.ErrTimeout)
}
