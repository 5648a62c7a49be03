// internal/screens/home.go
package screens

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/interact"
)

var (
	homeStoresNav = browser.XPath("//span[@data-testid='components_SidebarNav_index_span'][contains(text(),'Stores')]")
	homeAvatar    = browser.XPath("//div[@id='avatarContainer']")
	homeLogout    = browser.Text("Log Out")
)

// Home is the landing screen after sign-in.
type Home struct {
	base
}

var _ Screen = (*Home)(nil)

func NewHome(in *interact.Interactor, logger *zap.Logger) *Home {
	return &Home{base: newBase(in, logger, "home")}
}

func (h *Home) Name() string { return "home" }

func (h *Home) IsDisplayed(ctx context.Context) bool {
	return h.in.IsVisible(ctx, homeStoresNav, 0)
}

// NavigateToStores opens the store list from the sidebar.
func (h *Home) NavigateToStores(ctx context.Context) error {
	if err := h.in.WaitFor(ctx, homeStoresNav, interact.StateVisible, 0); err != nil {
		return err
	}
	if err := h.in.Click(ctx, homeStoresNav, 0); err != nil {
		return err
	}
	h.logger.Info("Navigated to Stores.")
	return nil
}

// Logout signs out through the avatar menu.
func (h *Home) Logout(ctx context.Context) error {
	if err := h.in.Click(ctx, homeAvatar, 0); err != nil {
		return err
	}
	if err := h.in.WaitFor(ctx, homeLogout, interact.StateVisible, 0); err != nil {
		return err
	}
	if err := h.in.Click(ctx, homeLogout, 0); err != nil {
		return err
	}
	h.in.Settle(ctx)
	h.logger.Info("Logged out.")
	return nil
}
