// internal/screens/storedetails.go
package screens

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/interact"
)

var (
	detailsHeading       = browser.CSS("h4").WithText("Store Details")
	detailsCreatePolygon = browser.CSS("[data-testid='components_JMButton_JMButton_Button']")
	detailsSearch        = browser.Role("textbox", "Search Polygon")
	detailsMenu          = browser.CSS("[data-testid='StoreDetails_SidebarHeader_SidebarHeader_SvgIcMoreVertical']")
	detailsExport        = browser.Text("Export Data")
	detailsSetInactive   = browser.Text("Set as Inactive")
	detailsSetActive     = browser.Text("Set as Active")
	polygonEdit          = browser.Text("Edit")
	polygonDistance      = browser.XPath("//p[@data-testid='StoreDetails_PolygonCard_PolygonCard_p']")
	polygonSetInactive   = browser.XPath("(//a[@target='_self'][normalize-space()='Set as Inactive'])[2]")
	polygonMenu          = browser.XPath("//span[@data-testid='StoreDetails_PolygonCard_PolygonCard_span']/div[@class='JMMenu']")

	// storeBadge is the store's own badge, the first one on the page. Polygon
	// cards carry badges with the same labels further down.
	storeBadge = browser.XPath("(" + badgeXPath + ")[1]")
)

func polygonHeading(name string) browser.Locator {
	return browser.CSS("h4").WithText(name)
}

func polygonBadge(name string, status Status) browser.Locator {
	return browser.XPathf("//h4[normalize-space()=%s]/../.."+badgeXPath+"[normalize-space()=%s]", name, string(status))
}

// StoreDetails shows one store with its polygons.
type StoreDetails struct {
	base
}

var _ Screen = (*StoreDetails)(nil)

func NewStoreDetails(in *interact.Interactor, logger *zap.Logger) *StoreDetails {
	return &StoreDetails{base: newBase(in, logger, "store_details")}
}

func (s *StoreDetails) Name() string { return "store details" }

func (s *StoreDetails) IsDisplayed(ctx context.Context) bool {
	s.in.Settle(ctx)
	return s.in.IsVisible(ctx, detailsHeading, 0)
}

// ClickCreatePolygon opens the polygon creation form.
func (s *StoreDetails) ClickCreatePolygon(ctx context.Context) error {
	if err := s.in.Click(ctx, detailsCreatePolygon, 0); err != nil {
		return err
	}
	s.in.Settle(ctx)
	s.logger.Info("Opened polygon creation form.")
	return nil
}

// SearchPolygon filters the polygon list by name. An empty name restores the
// full list.
func (s *StoreDetails) SearchPolygon(ctx context.Context, name string) error {
	s.in.Settle(ctx)
	if err := s.in.Fill(ctx, detailsSearch, name, 0); err != nil {
		return err
	}
	s.logger.Info("Searched polygons.", zap.String("name", name))
	return nil
}

// IsPolygonVisible reports whether the polygon card titled name is shown.
func (s *StoreDetails) IsPolygonVisible(ctx context.Context, name string) bool {
	visible := s.in.IsVisible(ctx, polygonHeading(name), 0)
	s.logger.Info("Polygon visibility.", zap.String("polygon", name), zap.Bool("visible", visible))
	return visible
}

// PolygonStatusIs checks the badge on the card titled name.
func (s *StoreDetails) PolygonStatusIs(ctx context.Context, name string, status Status) bool {
	return s.in.IsVisible(ctx, polygonBadge(name, status), 0)
}

// VerifyPolygonStatus fails with AssertionFailure unless the card titled name
// shows status.
func (s *StoreDetails) VerifyPolygonStatus(ctx context.Context, name string, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	return interact.AssertTrue(s.PolygonStatusIs(ctx, name, status), "verify_polygon_status",
		"polygon %q does not show status %s", name, status)
}

// openMenu opens the store header menu.
func (s *StoreDetails) openMenu(ctx context.Context) error {
	return s.in.Click(ctx, detailsMenu, 0)
}

// SetStoreStatus switches the store to status through the header menu.
func (s *StoreDetails) SetStoreStatus(ctx context.Context, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	if err := s.openMenu(ctx); err != nil {
		return err
	}
	option := detailsSetInactive
	if status == StatusActive {
		option = detailsSetActive
	}
	if err := s.in.Click(ctx, option.Nth(0), s.in.Timing().LongActionTimeout); err != nil {
		return err
	}
	s.in.Settle(ctx)
	s.logger.Info("Store status set.", zap.String("status", string(status)))
	return nil
}

// StoreStatusIs reports whether the store's badge reads status.
func (s *StoreDetails) StoreStatusIs(ctx context.Context, status Status) bool {
	s.in.Settle(ctx)
	var last string
	ok := s.in.Eventually(ctx, 0, func(ctx context.Context) bool {
		text, err := s.in.ReadText(ctx, storeBadge)
		last = text
		return err == nil && text == string(status)
	})
	if !ok {
		s.logger.Debug("Store badge mismatch.", zap.String("want", string(status)), zap.String("got", last))
	}
	return ok
}

// VerifyStoreStatus fails with AssertionFailure unless the store shows status.
func (s *StoreDetails) VerifyStoreStatus(ctx context.Context, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	return interact.AssertTrue(s.StoreStatusIs(ctx, status), "verify_store_status",
		"store does not show status %s", status)
}

// EditPolygon opens the edit form of the polygon titled name. The list must
// already be filtered down to that polygon.
func (s *StoreDetails) EditPolygon(ctx context.Context, name string) error {
	if err := s.in.Click(ctx, polygonMenu, 0); err != nil {
		return err
	}
	if err := s.in.Click(ctx, polygonEdit, 0); err != nil {
		return err
	}
	s.in.Settle(ctx)
	s.logger.Info("Editing polygon.", zap.String("polygon", name))
	return nil
}

// SetPolygonInactive deactivates the polygon titled name through its card
// menu. The list must already be filtered down to that polygon.
func (s *StoreDetails) SetPolygonInactive(ctx context.Context, name string) error {
	if err := s.in.Click(ctx, polygonMenu, 0); err != nil {
		return err
	}
	if err := s.in.Click(ctx, polygonSetInactive, 0); err != nil {
		return err
	}
	s.in.Settle(ctx)
	s.logger.Info("Polygon set inactive.", zap.String("polygon", name))
	return nil
}

// VerifyPolygonTravelDistance asserts the card reads "Travel Distance: <m> metres".
func (s *StoreDetails) VerifyPolygonTravelDistance(ctx context.Context, name string, metres int) error {
	want := fmt.Sprintf("Travel Distance: %d metres", metres)
	if err := s.in.AssertContainsText(ctx, polygonDistance, want); err != nil {
		return fmt.Errorf("polygon %q: %w", name, err)
	}
	return nil
}

// ExportData downloads the store's data through the header menu and returns the
// validated file.
func (s *StoreDetails) ExportData(ctx context.Context) (interact.Artifact, error) {
	if err := s.openMenu(ctx); err != nil {
		return interact.Artifact{}, err
	}
	art, err := s.in.Download(ctx, func(ctx context.Context) error {
		return s.in.Click(ctx, detailsExport, 0)
	})
	if err != nil {
		return interact.Artifact{}, err
	}
	s.logger.Info("Store data exported.", zap.String("path", art.Path), zap.Int64("bytes", art.Size))
	return art, nil
}
