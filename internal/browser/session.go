// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Session owns the chain browser process -> browsing context -> page for one run.
// Each level owns the next; Release tears the chain down innermost first.
type Session struct {
	logger  *zap.Logger
	process Process
	bctx    BrowsingContext
	page    Page

	releaseOnce sync.Once
	releaseErr  error
}

// Acquire launches a browser, opens an isolated context and a page in it. If a
// later level fails, the levels already acquired are released before returning.
func Acquire(ctx context.Context, launcher Launcher, opts Options, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{logger: logger.Named("session")}

	process, err := launcher.Launch(ctx, opts.Launch)
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	s.process = process

	bctx, err := process.NewContext(ctx, opts.Context)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating browsing context: %w", err), s.Release())
	}
	s.bctx = bctx

	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("opening page: %w", err), s.Release())
	}
	s.page = page

	s.logger.Debug("Browser session acquired.", zap.String("engine", opts.Launch.Engine), zap.Bool("headless", opts.Launch.Headless))
	return s, nil
}

// Page returns the page surface. Callers borrow it; the Session keeps ownership.
func (s *Session) Page() Page {
	return s.page
}

// Release closes page, context and process in that order. Every level is closed
// even if an earlier one fails; the errors are joined. Safe to call repeatedly.
func (s *Session) Release() error {
	s.releaseOnce.Do(func() {
		var errs []error
		if s.page != nil {
			if err := s.page.Close(); err != nil && !errors.Is(err, ErrClosed) {
				errs = append(errs, fmt.Errorf("closing page: %w", err))
			}
		}
		if s.bctx != nil {
			if err := s.bctx.Close(); err != nil && !errors.Is(err, ErrClosed) {
				errs = append(errs, fmt.Errorf("closing browsing context: %w", err))
			}
		}
		if s.process != nil {
			if err := s.process.Close(); err != nil && !errors.Is(err, ErrClosed) {
				errs = append(errs, fmt.Errorf("closing browser: %w", err))
			}
		}
		s.releaseErr = errors.Join(errs...)
		if s.releaseErr != nil {
			s.logger.Warn("Browser session released with errors.", zap.Error(s.releaseErr))
		} else {
			s.logger.Debug("Browser session released.")
		}
	})
	return s.releaseErr
}

// WithSession acquires a session, runs fn with it and releases it on every exit
// path, panics included. A release error is reported only when fn succeeded.
func WithSession(ctx context.Context, launcher Launcher, opts Options, logger *zap.Logger, fn func(context.Context, *Session) error) (err error) {
	s, err := Acquire(ctx, launcher, opts, logger)
	if err != nil {
		return err
	}
	defer func() {
		relErr := s.Release()
		if err == nil && relErr != nil {
			err = relErr
		}
	}()
	return fn(ctx, s)
}
