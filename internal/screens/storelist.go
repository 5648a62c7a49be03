// internal/screens/storelist.go
package screens

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/interact"
)

var (
	storeSearch = browser.Role("textbox", "Search by Store Code")
	activeBadge = badgeWith(string(StatusActive))
	// The row of a badge is the closest clickable store entry around it.
	firstActiveRow = browser.XPath("(" + activeBadge.Query() + ")[1]/ancestor::*[self::button or self::tr or @role='row'][1]")
)

// StoreList is the searchable list of stores.
type StoreList struct {
	base
}

var _ Screen = (*StoreList)(nil)

func NewStoreList(in *interact.Interactor, logger *zap.Logger) *StoreList {
	return &StoreList{base: newBase(in, logger, "store_list")}
}

func (s *StoreList) Name() string { return "store list" }

// IsDisplayed holds when the URL points at stores or the search box shows.
func (s *StoreList) IsDisplayed(ctx context.Context) bool {
	s.in.Settle(ctx)
	return s.in.Eventually(ctx, 0, func(ctx context.Context) bool {
		if url, err := s.in.CurrentURL(ctx); err == nil && strings.Contains(strings.ToLower(url), "store") {
			return true
		}
		return s.in.IsVisible(ctx, storeSearch, s.in.Timing().PollInterval)
	})
}

// Search filters the list by store code. An empty query restores the full list.
func (s *StoreList) Search(ctx context.Context, query string) error {
	if err := s.in.Fill(ctx, storeSearch, query, 0); err != nil {
		return err
	}
	if err := s.in.Press(ctx, storeSearch, "Enter", 0); err != nil {
		return err
	}
	s.in.Settle(ctx)
	s.logger.Info("Searched stores.", zap.String("query", query))
	return nil
}

// ActiveStoreCount counts the Active badges currently listed.
func (s *StoreList) ActiveStoreCount(ctx context.Context) (int, error) {
	return s.in.Count(ctx, activeBadge)
}

// SelectFirstActiveStore opens the first store tagged Active and returns its
// display name. An empty list fails with PreconditionFailed.
func (s *StoreList) SelectFirstActiveStore(ctx context.Context) (string, error) {
	s.in.Settle(ctx)
	if err := s.in.WaitFor(ctx, storeSearch, interact.StateVisible, 0); err != nil {
		return "", err
	}
	// Rows render after the search box; give them the visibility window.
	s.in.IsVisible(ctx, activeBadge, 0)

	n, err := s.ActiveStoreCount(ctx)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", interact.NewError(interact.PreconditionFailed, "select_first_active_store", activeBadge, "no store is tagged Active")
	}

	badge, err := s.in.Resolve(ctx, activeBadge)
	if err != nil {
		return "", err
	}
	text, err := s.in.ReadInnerText(ctx, firstActiveRow)
	if err != nil {
		s.logger.Debug("No row around the first Active badge, reading the badge itself.", zap.Error(err))
		if text, err = s.in.ReadInnerText(ctx, browser.Handle(badge)); err != nil {
			return "", err
		}
	}
	name := storeName(text)

	if err := s.in.Click(ctx, browser.Handle(badge), 0); err != nil {
		return "", fmt.Errorf("opening store %q: %w", name, err)
	}
	s.in.Settle(ctx)
	s.logger.Info("Opened first active store.", zap.String("store", name), zap.Int("active_stores", n))
	return name, nil
}

// storeName picks the first non-empty line that is not badge text, falling
// back to the first line.
func storeName(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	for _, line := range lines {
		if !strings.Contains(line, string(StatusActive)) {
			return line
		}
	}
	if len(lines) > 0 {
		return lines[0]
	}
	return strings.TrimSpace(text)
}
