// internal/screens/polygonform.go
package screens

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/config"
	"github.com/xkilldash9x/zonecheck/internal/geometry"
	"github.com/xkilldash9x/zonecheck/internal/interact"
)

// FormMode tells whether the polygon form creates or edits.
type FormMode int

const (
	ModeCreate FormMode = iota + 1
	ModeEdit
)

func (m FormMode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeEdit:
		return "edit"
	}
	return "unknown"
}

// Store types offered for slotted delivery.
const (
	StoreTypeGrocery = "grocery"
	StoreTypeDigital = "digital"
)

var (
	formCreateHeader   = browser.CSS("h1").WithText("Create New Polygon")
	formEditHeader     = browser.CSS("h1").WithText("Edit Polygon")
	formCreate         = browser.CSS("button").WithText("Create")
	formUpdate         = browser.CSS("button").WithText("Update")
	formName           = browser.Role("textbox", "Add name of polygon")
	formQuickCommerce  = browser.CSS("div[class*='JMRadioCard']").WithText("Quick Commerce")
	formSlotted        = browser.CSS("div[class*='JMRadioCard']").WithText("Slotted Delivery")
	formTravelTimeTab  = browser.CSS("div[class*='_item_1hxwt_13']").WithText("Travel Time")
	formDistanceTab    = browser.CSS("div[class*='_item_1hxwt_13']").WithText("Travel Distance")
	formManualTab      = browser.CSS("div[class*='_item_1hxwt_13']").WithText("Manual")
	formTravelTime     = browser.CSS(`input#polygon\.attributes\.travel_time`)
	formTravelDistance = browser.CSS(`input#polygon\.attributes\.travel_distance`)
	formMaxPromise     = browser.XPath("//input[@id='meta.max_promise_time']")
	formFlatFee        = browser.XPath("//input[@id='meta.flat_delivery_fee']")
	formGrocery        = browser.XPath("//div[contains(@class, 'JMRadioCard') and .//div[text()='Grocery']]")
	formDigital        = browser.XPath("//div[contains(@class, 'JMRadioCard') and .//div[text()='Digital']]")
	formUploadToggle   = browser.XPath("//div[normalize-space()='Upload Coordinates']")
	formFileInput      = browser.CSS("input[type='file']")
	formMap            = browser.CSS("iframe")
)

// PolygonForm is the create and edit form of a delivery polygon.
type PolygonForm struct {
	base
	drawPause  time.Duration
	formSettle time.Duration
}

var _ Screen = (*PolygonForm)(nil)

func NewPolygonForm(in *interact.Interactor, sc config.ScenarioConfig, logger *zap.Logger) *PolygonForm {
	return &PolygonForm{
		base:       newBase(in, logger, "polygon_form"),
		drawPause:  sc.DrawPause,
		formSettle: sc.FormSettle,
	}
}

func (f *PolygonForm) Name() string { return "polygon form" }

// IsDisplayed holds when either form heading shows.
func (f *PolygonForm) IsDisplayed(ctx context.Context) bool {
	_, err := f.Mode(ctx)
	return err == nil
}

// Mode reports which heading the form shows. Neither is an AssertionFailure.
func (f *PolygonForm) Mode(ctx context.Context) (FormMode, error) {
	var mode FormMode
	poll := f.in.Timing().PollInterval
	f.in.Eventually(ctx, 0, func(ctx context.Context) bool {
		switch {
		case f.in.IsVisible(ctx, formCreateHeader, poll):
			mode = ModeCreate
		case f.in.IsVisible(ctx, formEditHeader, poll):
			mode = ModeEdit
		}
		return mode != 0
	})
	if mode == 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 0, interact.NewError(interact.AssertionFailure, "form_mode", formCreateHeader, "neither the create nor the edit heading is displayed")
	}
	return mode, nil
}

// CreateQuickCommerceTravelTime creates a quick commerce polygon bounded by
// travel time. A zero maxPromise leaves the field untouched.
func (f *PolygonForm) CreateQuickCommerceTravelTime(ctx context.Context, name string, minutes, maxPromise int) error {
	if minutes <= 0 {
		return interact.Errorf(interact.InvalidArgument, "create_qc_travel_time", fmt.Sprintf("travel time must be positive, got %d", minutes))
	}
	steps := []func(context.Context) error{
		f.enterName(name),
		f.click(formQuickCommerce, 0),
		f.click(formTravelTimeTab, f.in.Timing().LongActionTimeout),
		f.enterNumber(formTravelTime, minutes),
	}
	if maxPromise > 0 {
		steps = append(steps, f.enterNumber(formMaxPromise, maxPromise))
	}
	if err := f.run(ctx, steps...); err != nil {
		return err
	}
	if err := f.submit(ctx, formCreate); err != nil {
		return err
	}
	f.logger.Info("Created quick commerce polygon.",
		zap.String("polygon", name), zap.Int("travel_time", minutes), zap.Int("max_promise_time", maxPromise))
	return nil
}

// CreateSlottedTravelDistance creates a slotted polygon bounded by travel
// distance. A zero fee and an empty store type leave those fields untouched.
func (f *PolygonForm) CreateSlottedTravelDistance(ctx context.Context, name string, metres, fee int, storeType string) error {
	if metres <= 0 {
		return interact.Errorf(interact.InvalidArgument, "create_slotted_travel_distance", fmt.Sprintf("travel distance must be positive, got %d", metres))
	}
	var storeCard browser.Locator
	switch strings.ToLower(storeType) {
	case "":
	case StoreTypeGrocery:
		storeCard = formGrocery
	case StoreTypeDigital:
		storeCard = formDigital
	default:
		return interact.Errorf(interact.InvalidArgument, "create_slotted_travel_distance", fmt.Sprintf("unknown store type %q", storeType))
	}

	steps := []func(context.Context) error{
		f.enterName(name),
		f.click(formSlotted, 0),
		f.click(formDistanceTab, f.in.Timing().LongActionTimeout),
		f.enterNumber(formTravelDistance, metres),
	}
	if fee > 0 {
		steps = append(steps, f.enterNumber(formFlatFee, fee))
	}
	if !storeCard.IsZero() {
		steps = append(steps, f.click(storeCard, 0))
	}
	if err := f.run(ctx, steps...); err != nil {
		return err
	}
	if err := f.submit(ctx, formCreate); err != nil {
		return err
	}
	f.logger.Info("Created slotted delivery polygon.",
		zap.String("polygon", name), zap.Int("travel_distance", metres), zap.Int("flat_fee", fee), zap.String("store_type", storeType))
	return nil
}

// CreateQuickCommerceFromCSV creates a quick commerce polygon from a coordinate
// file. The file is validated before the form is touched.
func (f *PolygonForm) CreateQuickCommerceFromCSV(ctx context.Context, name, csvPath string) error {
	coords, err := ReadCoordinates(csvPath)
	if err != nil {
		return err
	}
	err = f.run(ctx,
		f.enterName(name),
		f.click(formQuickCommerce, 0),
		f.click(formManualTab, f.in.Timing().LongActionTimeout),
		f.click(formUploadToggle, 0),
		func(ctx context.Context) error { return f.in.UploadFile(ctx, formFileInput, csvPath, 0) },
		func(ctx context.Context) error { return f.in.Pause(ctx, f.formSettle) },
	)
	if err != nil {
		return err
	}
	if err := f.submit(ctx, formCreate); err != nil {
		return err
	}
	f.logger.Info("Created quick commerce polygon from coordinates.",
		zap.String("polygon", name), zap.String("file", csvPath), zap.Int("coordinates", len(coords)))
	return nil
}

// CreateSlottedManualDrawing draws a regular polygon around the center of the
// map and creates a slotted polygon from it. The drawing only counts once the
// form enables its Create button.
func (f *PolygonForm) CreateSlottedManualDrawing(ctx context.Context, name string, radius float64, vertices int) error {
	err := f.run(ctx,
		f.enterName(name),
		f.click(formSlotted, 0),
		f.click(formManualTab, f.in.Timing().LongActionTimeout),
		func(ctx context.Context) error { return f.in.Pause(ctx, f.drawPause) },
	)
	if err != nil {
		return err
	}

	box, err := f.in.BoundingBox(ctx, formMap, f.in.Timing().VisibilityTimeout)
	if err != nil {
		return err
	}
	points, err := geometry.GeneratePolygon(box.Center(), radius, vertices)
	if err != nil {
		return interact.Wrap(interact.InvalidArgument, "draw_polygon", formMap, "cannot draw polygon", err)
	}
	if ring := geometry.Bounds(points); !box.Encloses(ring) {
		return interact.NewError(interact.InvalidArgument, "draw_polygon", formMap,
			fmt.Sprintf("polygon of radius %v does not fit the %vx%v map", radius, box.Width, box.Height))
	}
	for _, p := range points {
		if err := f.in.ClickAt(ctx, p); err != nil {
			return err
		}
		if err := f.in.Pause(ctx, f.drawPause); err != nil {
			return err
		}
	}
	f.logger.Debug("Polygon drawn.", zap.Int("points", len(points)), zap.Any("center", box.Center()))

	registered := f.in.Eventually(ctx, 0, func(ctx context.Context) bool {
		enabled, err := f.in.IsEnabled(ctx, formCreate)
		return err == nil && enabled
	})
	if !registered {
		if err := ctx.Err(); err != nil {
			return err
		}
		return interact.NewError(interact.AssertionFailure, "draw_polygon", formCreate, "drawing was not registered: create button stayed disabled")
	}
	if err := f.submit(ctx, formCreate); err != nil {
		return err
	}
	f.logger.Info("Created slotted delivery polygon by drawing.", zap.String("polygon", name), zap.Int("vertices", vertices))
	return nil
}

// UpdateTravelDistance switches an edited polygon to a travel distance bound.
func (f *PolygonForm) UpdateTravelDistance(ctx context.Context, metres int) error {
	if metres <= 0 {
		return interact.Errorf(interact.InvalidArgument, "update_travel_distance", fmt.Sprintf("travel distance must be positive, got %d", metres))
	}
	mode, err := f.Mode(ctx)
	if err != nil {
		return err
	}
	if mode != ModeEdit {
		return interact.NewError(interact.PreconditionFailed, "update_travel_distance", formEditHeader, fmt.Sprintf("form is in %s mode", mode))
	}
	err = f.run(ctx,
		f.click(formDistanceTab, f.in.Timing().LongActionTimeout),
		f.enterNumber(formTravelDistance, metres),
	)
	if err != nil {
		return err
	}
	if err := f.submit(ctx, formUpdate); err != nil {
		return err
	}
	f.logger.Info("Updated polygon travel distance.", zap.Int("travel_distance", metres))
	return nil
}

func (f *PolygonForm) run(ctx context.Context, steps ...func(context.Context) error) error {
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (f *PolygonForm) enterName(name string) func(context.Context) error {
	return func(ctx context.Context) error {
		return f.in.Fill(ctx, formName, name, 0)
	}
}

func (f *PolygonForm) click(loc browser.Locator, timeout time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		return f.in.Click(ctx, loc, timeout)
	}
}

// enterNumber focuses the field before filling it; the numeric inputs ignore
// text entered without focus.
func (f *PolygonForm) enterNumber(loc browser.Locator, v int) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := f.in.Click(ctx, loc, 0); err != nil {
			return err
		}
		return f.in.Fill(ctx, loc, strconv.Itoa(v), 0)
	}
}

func (f *PolygonForm) submit(ctx context.Context, button browser.Locator) error {
	if err := f.in.Click(ctx, button, 0); err != nil {
		return err
	}
	f.in.Settle(ctx)
	return nil
}
