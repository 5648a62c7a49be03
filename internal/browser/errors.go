// internal/browser/errors.go
package browser

import "errors"

// Driver sentinel errors. Drivers wrap these so callers can classify failures
// with errors.Is without knowing which driver is underneath.
var (
	// ErrNoMatch means the locator matched nothing in the current document.
	ErrNoMatch = errors.New("browser: no element matches locator")
	// ErrStale means a handle outlived the document it was resolved in.
	ErrStale = errors.New("browser: element handle is stale")
	// ErrNotInteractable means the element exists but cannot take the action
	// (hidden, disabled, zero-sized or covered).
	ErrNotInteractable = errors.New("browser: element is not interactable")
	// ErrClosed means the page, context or process was already released.
	ErrClosed = errors.New("browser: session closed")
	// ErrTimeout means the driver gave up waiting on the browser.
	ErrTimeout = errors.New("browser: operation timed out")
	// ErrUnsupported means the driver cannot honor the request, such as a
	// handle produced by a different driver.
	ErrUnsupported = errors.New("browser: unsupported by driver")
)
