// internal/screens/signin.go
package screens

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/config"
	"github.com/xkilldash9x/zonecheck/internal/interact"
)

var (
	signInEmail    = browser.Role("textbox", "abc@example.com")
	signInPassword = browser.Role("textbox", "Enter Password")
	signInConsent  = browser.CSS("[data-testid='Auth_Login_index_Checkbox']")
	signInSubmit   = browser.CSS("[data-testid='Auth_Login_index_Button']")
	signInLogo     = browser.CSS("img[alt='logo']")
)

// SignIn is the login screen.
type SignIn struct {
	base
	app config.AppConfig
}

var (
	_ Screen    = (*SignIn)(nil)
	_ Navigator = (*SignIn)(nil)
)

func NewSignIn(in *interact.Interactor, app config.AppConfig, logger *zap.Logger) *SignIn {
	return &SignIn{base: newBase(in, logger, "sign_in"), app: app}
}

func (s *SignIn) Name() string { return "sign-in" }

// Open loads the application and waits for the identifier field.
func (s *SignIn) Open(ctx context.Context) error {
	if err := s.in.Navigate(ctx, s.app.BaseURL); err != nil {
		return err
	}
	if err := s.in.WaitFor(ctx, signInEmail, interact.StateVisible, 0); err != nil {
		return err
	}
	s.logger.Info("Sign-in screen opened.", zap.String("url", s.app.BaseURL))
	return nil
}

// SignIn enters the credentials, accepts the terms and submits.
func (s *SignIn) SignIn(ctx context.Context, user, secret string) error {
	s.logger.Info("Signing in.", zap.String("user", user))
	if err := s.in.Fill(ctx, signInEmail, user, 0); err != nil {
		return err
	}
	if err := s.in.Fill(ctx, signInPassword, secret, 0); err != nil {
		return err
	}
	if err := s.in.Click(ctx, signInConsent, 0); err != nil {
		return err
	}
	if err := s.in.Click(ctx, signInSubmit, 0); err != nil {
		return err
	}
	s.in.Settle(ctx)
	return nil
}

// IsDisplayed requires both the login URL and the logo.
func (s *SignIn) IsDisplayed(ctx context.Context) bool {
	s.in.Settle(ctx)
	path := s.app.LoginPath
	if path == "" {
		path = "/login"
	}
	return s.in.Eventually(ctx, 0, func(ctx context.Context) bool {
		url, err := s.in.CurrentURL(ctx)
		if err != nil || !strings.Contains(url, path) {
			return false
		}
		return s.in.IsVisible(ctx, signInLogo, s.in.Timing().PollInterval)
	})
}
