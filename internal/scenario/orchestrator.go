// internal/scenario/orchestrator.go

// Package scenario drives the polygon management workflow end to end: sign
// in, open the first active store, create one polygon per creation path,
// toggle store and polygon status, edit and sign out. Screens are injected
// through interfaces so the step table can be tested without a browser.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/config"
	"github.com/xkilldash9x/zonecheck/internal/interact"
	"github.com/xkilldash9x/zonecheck/internal/screens"
)

type SignInScreen interface {
	screens.Screen
	screens.Navigator
	SignIn(ctx context.Context, user, secret string) error
}

type HomeScreen interface {
	screens.Screen
	NavigateToStores(ctx context.Context) error
	Logout(ctx context.Context) error
}

type StoreListScreen interface {
	screens.Screen
	SelectFirstActiveStore(ctx context.Context) (string, error)
}

type StoreDetailsScreen interface {
	screens.Screen
	ClickCreatePolygon(ctx context.Context) error
	SearchPolygon(ctx context.Context, name string) error
	IsPolygonVisible(ctx context.Context, name string) bool
	VerifyPolygonStatus(ctx context.Context, name string, status screens.Status) error
	SetStoreStatus(ctx context.Context, status screens.Status) error
	VerifyStoreStatus(ctx context.Context, status screens.Status) error
	EditPolygon(ctx context.Context, name string) error
	SetPolygonInactive(ctx context.Context, name string) error
	VerifyPolygonTravelDistance(ctx context.Context, name string, metres int) error
	ExportData(ctx context.Context) (interact.Artifact, error)
}

type PolygonFormScreen interface {
	screens.Screen
	Mode(ctx context.Context) (screens.FormMode, error)
	CreateQuickCommerceTravelTime(ctx context.Context, name string, minutes, maxPromise int) error
	CreateSlottedTravelDistance(ctx context.Context, name string, metres, fee int, storeType string) error
	CreateQuickCommerceFromCSV(ctx context.Context, name, csvPath string) error
	CreateSlottedManualDrawing(ctx context.Context, name string, radius float64, vertices int) error
	UpdateTravelDistance(ctx context.Context, metres int) error
}

// Capturer takes the diagnostic screenshot of a failed run. It returns the
// saved path, or "" when nothing could be captured.
type Capturer interface {
	CaptureArtifact(ctx context.Context, name string) string
}

// Screens is the set of screens one run drives.
type Screens struct {
	SignIn  SignInScreen
	Home    HomeScreen
	Stores  StoreListScreen
	Details StoreDetailsScreen
	Form    PolygonFormScreen
}

// Options carries the run's inputs.
type Options struct {
	// RunID identifies the run in reports. A random one is generated when empty.
	RunID           string
	Credentials     config.CredentialsConfig
	Scenario        config.ScenarioConfig
	CoordinatesPath string
	// Now is the clock used for polygon names; time.Now when nil.
	Now func() time.Time
}

// Verdict is the single outcome of a run.
type Verdict struct {
	RunID      string        `json:"run_id"`
	Passed     bool          `json:"passed"`
	FailedStep string        `json:"failed_step,omitempty"`
	Kind       interact.Kind `json:"kind,omitempty"`
	Message    string        `json:"message,omitempty"`
	Artifacts  []string      `json:"artifacts,omitempty"`
	Duration   time.Duration `json:"duration"`
}

func (v Verdict) String() string {
	if v.Passed {
		return fmt.Sprintf("PASS run=%s duration=%s", v.RunID, v.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("FAIL run=%s step=%s kind=%s: %s", v.RunID, v.FailedStep, v.Kind, v.Message)
}

type step struct {
	name        string
	description string
	run         func(ctx context.Context) error
}

// Orchestrator runs the workflow once. It is not safe for concurrent use.
type Orchestrator struct {
	screens  Screens
	capture  Capturer
	reporter Reporter
	opts     Options
	logger   *zap.Logger
	state    *WorkflowState
}

// New validates the dependencies and returns an Orchestrator.
func New(s Screens, capture Capturer, reporter Reporter, opts Options, logger *zap.Logger) (*Orchestrator, error) {
	if s.SignIn == nil || s.Home == nil || s.Stores == nil || s.Details == nil || s.Form == nil {
		return nil, errors.New("cannot initialize orchestrator with nil screens")
	}
	if capture == nil || reporter == nil || logger == nil {
		return nil, errors.New("cannot initialize orchestrator with nil dependencies")
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		screens:  s,
		capture:  capture,
		reporter: reporter,
		opts:     opts,
		logger:   logger.Named("scenario").With(zap.String("run_id", opts.RunID)),
	}, nil
}

// RunID identifies this run.
func (o *Orchestrator) RunID() string { return o.opts.RunID }

// State is the workflow state of the last Run, nil before the first.
func (o *Orchestrator) State() *WorkflowState { return o.state }

// Run executes every step in order and stops at the first failure. A failure
// triggers a best-effort screenshot that is attached to the verdict.
func (o *Orchestrator) Run(ctx context.Context) Verdict {
	start := o.opts.Now()
	began := time.Now()
	o.state = newState(start)
	v := Verdict{RunID: o.opts.RunID, Passed: true}

	o.logger.Info("Starting polygon management workflow.",
		zap.String("qc_polygon", o.state.QuickCommerceName),
		zap.String("slotted_polygon", o.state.SlottedName),
		zap.String("csv_polygon", o.state.CSVName),
		zap.String("drawing_polygon", o.state.DrawingName))

	for i, s := range o.steps() {
		info := StepInfo{Index: i + 1, Name: s.name, Description: s.description}
		o.reporter.StepStarted(info)
		stepStart := time.Now()

		err := s.run(ctx)
		if err == nil {
			o.reporter.StepPassed(info, time.Since(stepStart))
			continue
		}

		o.reporter.StepFailed(info, err, time.Since(stepStart))
		v.Passed = false
		v.FailedStep = s.name
		v.Kind = interact.KindOf(err)
		v.Message = err.Error()
		if path := o.capture.CaptureArtifact(ctx, "failure_"+s.name); path != "" {
			v.Artifacts = append(v.Artifacts, path)
			o.reporter.Attachment("failure_"+s.name, path)
		}
		break
	}
	if o.state.ExportPath != "" {
		v.Artifacts = append([]string{o.state.ExportPath}, v.Artifacts...)
	}
	v.Duration = time.Since(began)
	o.reporter.Finished(v)
	return v
}

func (o *Orchestrator) steps() []step {
	st, sc := o.state, o.opts.Scenario
	s := o.screens
	return []step{
		{"sign_in", "Sign in with the configured credentials", func(ctx context.Context) error {
			if err := s.SignIn.Open(ctx); err != nil {
				return err
			}
			return s.SignIn.SignIn(ctx, o.opts.Credentials.Username, o.opts.Credentials.Password)
		}},
		{"home_displayed", "Home screen is shown", checkpoint(s.Home)},
		{"navigate_to_stores", "Navigate to Stores", s.Home.NavigateToStores},
		{"store_list_displayed", "Store list is shown", checkpoint(s.Stores)},
		{"select_first_active_store", "Open the first Active store", func(ctx context.Context) error {
			name, err := s.Stores.SelectFirstActiveStore(ctx)
			if err != nil {
				return err
			}
			st.StoreName = name
			o.logger.Info("Store selected.", zap.String("store", name))
			return nil
		}},
		{"store_details_displayed", "Store details are shown", checkpoint(s.Details)},
		{"open_creation_form", "Click Create Polygon", s.Details.ClickCreatePolygon},
		{"form_in_create_mode", "Polygon form is in create mode", o.expectMode(screens.ModeCreate)},
		{"create_qc_travel_time", fmt.Sprintf("Create QC polygon with travel time (%d mins)", sc.TravelTime), func(ctx context.Context) error {
			return s.Form.CreateQuickCommerceTravelTime(ctx, st.QuickCommerceName, sc.TravelTime, sc.MaxPromiseTime)
		}},
		{"verify_qc_travel_time", "QC polygon is listed", o.verifyListed(st.QuickCommerceName)},
		{"create_slotted_travel_distance", fmt.Sprintf("Create Slotted Delivery polygon with travel distance (%d m)", sc.TravelDistance), o.withForm(func(ctx context.Context) error {
			return s.Form.CreateSlottedTravelDistance(ctx, st.SlottedName, sc.TravelDistance, sc.FlatDeliveryFee, sc.StoreType)
		})},
		{"verify_slotted_travel_distance", "Slotted Delivery polygon is listed", o.verifyListed(st.SlottedName)},
		{"create_qc_csv", "Create QC polygon from a coordinate file", o.withForm(func(ctx context.Context) error {
			return s.Form.CreateQuickCommerceFromCSV(ctx, st.CSVName, o.opts.CoordinatesPath)
		})},
		{"verify_qc_csv", "Coordinate file polygon is listed", o.verifyListed(st.CSVName)},
		{"create_slotted_drawing", "Create Slotted Delivery polygon by drawing", o.withForm(func(ctx context.Context) error {
			return s.Form.CreateSlottedManualDrawing(ctx, st.DrawingName, sc.DrawRadius, sc.DrawVertices)
		})},
		{"verify_slotted_drawing", "Drawn polygon is listed", o.verifyListed(st.DrawingName)},
		{"export_store_data", "Export store data and validate the file", func(ctx context.Context) error {
			art, err := s.Details.ExportData(ctx)
			if err != nil {
				return err
			}
			st.ExportPath = art.Path
			o.reporter.Attachment("store_data", art.Path)
			return nil
		}},
		{"deactivate_store", "Set the store Inactive", o.setStoreStatus(screens.StatusInactive)},
		{"reactivate_store", "Set the store Active", o.setStoreStatus(screens.StatusActive)},
		{"edit_qc_polygon", fmt.Sprintf("Edit QC polygon to travel distance (%d m)", sc.EditedDistance), func(ctx context.Context) error {
			return run(ctx,
				o.search(st.Target),
				func(ctx context.Context) error { return s.Details.EditPolygon(ctx, st.Target) },
				o.expectMode(screens.ModeEdit),
				func(ctx context.Context) error { return s.Form.UpdateTravelDistance(ctx, sc.EditedDistance) },
				checkpoint(s.Details),
				o.search(st.Target),
				func(ctx context.Context) error {
					return s.Details.VerifyPolygonTravelDistance(ctx, st.Target, sc.EditedDistance)
				},
				o.search(""),
			)
		}},
		{"deactivate_qc_polygon", "Set QC polygon Inactive", func(ctx context.Context) error {
			return run(ctx,
				o.search(st.Target),
				func(ctx context.Context) error { return s.Details.SetPolygonInactive(ctx, st.Target) },
				o.search(st.Target),
				func(ctx context.Context) error {
					return s.Details.VerifyPolygonStatus(ctx, st.Target, screens.StatusInactive)
				},
				o.search(""),
			)
		}},
		{"log_out", "Log out", func(ctx context.Context) error {
			return run(ctx, s.Home.Logout, checkpoint(s.SignIn))
		}},
	}
}

func run(ctx context.Context, fns ...func(context.Context) error) error {
	for _, fn := range fns {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// checkpoint fails with AssertionFailure when screen is not displayed.
func checkpoint(screen screens.Screen) func(context.Context) error {
	return func(ctx context.Context) error {
		if screen.IsDisplayed(ctx) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return interact.Errorf(interact.AssertionFailure, "checkpoint", screen.Name()+" is not displayed")
	}
}

func (o *Orchestrator) expectMode(want screens.FormMode) func(context.Context) error {
	return func(ctx context.Context) error {
		mode, err := o.screens.Form.Mode(ctx)
		if err != nil {
			return err
		}
		return interact.AssertTrue(mode == want, "checkpoint", "polygon form is in %s mode, want %s", mode, want)
	}
}

// withForm opens the creation form before fn.
func (o *Orchestrator) withForm(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return run(ctx, o.screens.Details.ClickCreatePolygon, o.expectMode(screens.ModeCreate), fn)
	}
}

func (o *Orchestrator) search(name string) func(context.Context) error {
	return func(ctx context.Context) error {
		return o.screens.Details.SearchPolygon(ctx, name)
	}
}

// verifyListed filters the polygon list by name, expects the polygon and
// restores the full list.
func (o *Orchestrator) verifyListed(name string) func(context.Context) error {
	return func(ctx context.Context) error {
		d := o.screens.Details
		if err := d.SearchPolygon(ctx, name); err != nil {
			return err
		}
		if !d.IsPolygonVisible(ctx, name) {
			if err := ctx.Err(); err != nil {
				return err
			}
			return interact.Errorf(interact.AssertionFailure, "verify_polygon_listed", fmt.Sprintf("polygon %q not found in list", name))
		}
		return d.SearchPolygon(ctx, "")
	}
}

func (o *Orchestrator) setStoreStatus(status screens.Status) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := o.screens.Details.SetStoreStatus(ctx, status); err != nil {
			return err
		}
		return o.screens.Details.VerifyStoreStatus(ctx, status)
	}
}
