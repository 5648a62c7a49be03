// Package screens models the administration application one screen at a time.
// Each screen borrows the run's Interactor, owns its fixed locators and exposes
// domain operations built from interaction primitives.
package screens

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/interact"
)

// Screen is one logical application screen.
type Screen interface {
	Name() string
	// IsDisplayed is the checkpoint used after every transition. It reports
	// false instead of failing.
	IsDisplayed(ctx context.Context) bool
}

// Navigator is implemented by screens reachable by URL.
type Navigator interface {
	Open(ctx context.Context) error
}

// Status is the activation state of a store or polygon.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// ParseStatus accepts exactly Active or Inactive.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusInactive:
		return Status(s), nil
	}
	return "", interact.Errorf(interact.InvalidArgument, "parse_status", fmt.Sprintf("invalid status %q: must be Active or Inactive", s))
}

// badgeXPath matches every status badge.
const badgeXPath = "//span[@data-testid='components_JMBadge_JMBadge_span']"

// badgeWith matches the status badges showing label.
func badgeWith(label string) browser.Locator {
	return browser.XPathf(badgeXPath+"[normalize-space()=%s]", label)
}

// base carries what every screen shares.
type base struct {
	in     *interact.Interactor
	logger *zap.Logger
}

func newBase(in *interact.Interactor, logger *zap.Logger, name string) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{in: in, logger: logger.Named(name)}
}
