// Package screenstest scripts a browsertest.Page as the administration
// application: sign-in, the store list, store details and the polygon form.
// It keeps a small in-memory model of stores and polygons and re-renders the
// page after every interaction that changes it.
package screenstest

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/browser/browsertest"
	"github.com/xkilldash9x/zonecheck/internal/geometry"
)

// Default credentials accepted by the sign-in screen.
const (
	User     = "admin@example.com"
	Password = "secret"
)

const badgeXPath = "//span[@data-testid='components_JMBadge_JMBadge_span']"

// The DOM of the application, one locator per rendered element.
var (
	loginEmail    = browser.Role("textbox", "abc@example.com")
	loginPassword = browser.Role("textbox", "Enter Password")
	loginConsent  = browser.CSS("[data-testid='Auth_Login_index_Checkbox']")
	loginSubmit   = browser.CSS("[data-testid='Auth_Login_index_Button']")
	loginLogo     = browser.CSS("img[alt='logo']")

	navStores = browser.XPath("//span[@data-testid='components_SidebarNav_index_span'][contains(text(),'Stores')]")
	avatar    = browser.XPath("//div[@id='avatarContainer']")
	logout    = browser.Text("Log Out")

	storeBadge     = browser.XPath("(" + badgeXPath + ")[1]")
	storeSearch    = browser.Role("textbox", "Search by Store Code")
	firstActiveRow = browser.XPath("(" + badge(statusActive).Query() + ")[1]/ancestor::*[self::button or self::tr or @role='row'][1]")

	detailsHeading     = browser.CSS("h4").WithText("Store Details")
	detailsCreate      = browser.CSS("[data-testid='components_JMButton_JMButton_Button']")
	detailsSearch      = browser.Role("textbox", "Search Polygon")
	detailsMenu        = browser.CSS("[data-testid='StoreDetails_SidebarHeader_SidebarHeader_SvgIcMoreVertical']")
	detailsExport      = browser.Text("Export Data")
	detailsSetInactive = browser.Text("Set as Inactive")
	detailsSetActive   = browser.Text("Set as Active")
	polygonEdit        = browser.Text("Edit")
	polygonDistance    = browser.XPath("//p[@data-testid='StoreDetails_PolygonCard_PolygonCard_p']")
	polygonSetInactive = browser.XPath("(//a[@target='_self'][normalize-space()='Set as Inactive'])[2]")
	polygonMenu        = browser.XPath("//span[@data-testid='StoreDetails_PolygonCard_PolygonCard_span']/div[@class='JMMenu']")

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

const (
	statusActive   = "Active"
	statusInactive = "Inactive"
)

func badge(status string) browser.Locator {
	return browser.XPathf(badgeXPath+"[normalize-space()=%s]", status)
}

func polygonHeading(name string) browser.Locator {
	return browser.CSS("h4").WithText(name)
}

func polygonBadge(name, status string) browser.Locator {
	return browser.XPathf("//h4[normalize-space()=%s]/../.."+badgeXPath+"[normalize-space()=%s]", name, status)
}

// MapBox is where the drawing map renders.
var MapBox = geometry.Rect{X: 300, Y: 200, Width: 600, Height: 400}

// Store is one store of the model.
type Store struct {
	Code     string
	Name     string
	Status   string
	Polygons []*Polygon
}

// Polygon is one delivery polygon of a store.
type Polygon struct {
	Name           string
	Status         string
	Delivery       string
	Bound          string
	TravelTime     int
	TravelDistance int
	MaxPromiseTime int
	FlatFee        int
	StoreType      string
	Coordinates    string
	DrawnPoints    int
}

// Details is the attribute line shown on the polygon card.
func (p *Polygon) Details() string {
	switch p.Bound {
	case "time":
		return fmt.Sprintf("Travel Time: %d minutes", p.TravelTime)
	case "distance":
		return fmt.Sprintf("Travel Distance: %d metres", p.TravelDistance)
	}
	return "Manual"
}

type screen int

const (
	screenBlank screen = iota
	screenLogin
	screenHome
	screenStores
	screenDetails
	screenForm
)

// form is the state of the polygon form being filled.
type form struct {
	editing        *Polygon
	name           string
	delivery       string
	tab            string
	travelTime     int
	travelDistance int
	maxPromise     int
	flatFee        int
	storeType      string
	uploadOpen     bool
	file           string
	clicks         []geometry.Point
}

// App is the scripted application.
type App struct {
	Page    *browsertest.Page
	BaseURL string

	// IgnoreDrawing makes the map swallow clicks, so a drawing never registers.
	IgnoreDrawing bool
	// ExportName is the suggested file name of the store export.
	ExportName string

	mu          sync.Mutex
	stores      []*Store
	screen      screen
	email       string
	password    string
	consent     bool
	storeQuery  string
	storeFilter string
	current     *Store
	polyFilter  string
	menuOpen    bool
	cardMenu    bool
	avatarMenu  bool
	form        *form
	rendered    []browser.Locator
}

// New scripts page as the application at baseURL with the given stores.
func New(page *browsertest.Page, baseURL string, stores ...*Store) *App {
	a := &App{Page: page, BaseURL: strings.TrimRight(baseURL, "/"), ExportName: "store_data.csv", stores: stores}
	page.OnNavigate = a.navigated
	page.OnMouseClick = a.mouseClicked
	return a
}

// Stores returns the model.
func (a *App) Stores() []*Store {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Store(nil), a.stores...)
}

// Polygon finds a polygon by name across stores.
func (a *App) Polygon(name string) *Polygon {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.stores {
		for _, p := range s.Polygons {
			if p.Name == name {
				return p
			}
		}
	}
	return nil
}

// Current is the store whose details are open.
func (a *App) Current() *Store {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *App) navigated(url string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !strings.HasPrefix(url, a.BaseURL) {
		a.show(screenBlank, url)
		return
	}
	a.show(screenLogin, a.BaseURL+"/login")
}

func (a *App) mouseClicked(p geometry.Point) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.screen != screenForm || a.form.tab != "manual" || a.IgnoreDrawing || !MapBox.Contains(p) {
		return
	}
	a.form.clicks = append(a.form.clicks, p)
	a.render()
}

// show switches screens and re-renders. Callers hold a.mu.
func (a *App) show(s screen, url string) {
	a.screen = s
	a.menuOpen, a.cardMenu, a.avatarMenu = false, false, false
	if url != "" {
		a.Page.SetURL(url)
	}
	a.render()
}

func (a *App) put(loc browser.Locator, el *browsertest.Element) *browsertest.Element {
	a.rendered = append(a.rendered, loc)
	return a.Page.Add(loc, el)
}

// on wraps a hook so it runs under the model lock and re-renders afterwards.
func (a *App) on(fn func()) func() {
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		fn()
		a.render()
	}
}

func (a *App) onFill(fn func(string)) func(string) {
	return func(v string) {
		a.mu.Lock()
		defer a.mu.Unlock()
		fn(v)
		a.render()
	}
}

func (a *App) render() {
	for _, loc := range a.rendered {
		a.Page.Remove(loc)
	}
	a.rendered = a.rendered[:0]

	switch a.screen {
	case screenLogin:
		a.renderLogin()
	case screenHome:
		a.renderChrome()
	case screenStores:
		a.renderChrome()
		a.renderStores()
	case screenDetails:
		a.renderChrome()
		a.renderDetails()
	case screenForm:
		a.renderChrome()
		a.renderForm()
	}
}

func (a *App) renderLogin() {
	a.put(loginLogo, browsertest.NewElement(""))
	a.put(loginEmail, browsertest.NewElement("")).OnFill = func(v string) {
		a.mu.Lock()
		a.email = v
		a.mu.Unlock()
	}
	a.put(loginPassword, browsertest.NewElement("")).OnFill = func(v string) {
		a.mu.Lock()
		a.password = v
		a.mu.Unlock()
	}
	a.put(loginConsent, browsertest.NewElement("")).OnClick = func() {
		a.mu.Lock()
		a.consent = !a.consent
		a.mu.Unlock()
	}
	a.put(loginSubmit, browsertest.NewElement("Login")).OnClick = a.on(func() {
		if a.email == User && a.password == Password && a.consent {
			a.show(screenHome, a.BaseURL+"/home")
		}
	})
}

// renderChrome draws the sidebar and avatar shown on every signed-in screen.
func (a *App) renderChrome() {
	a.put(navStores, browsertest.NewElement("Stores")).OnClick = a.on(func() {
		a.storeQuery, a.storeFilter = "", ""
		a.show(screenStores, a.BaseURL+"/stores")
	})
	a.put(avatar, browsertest.NewElement("")).OnClick = a.on(func() { a.avatarMenu = !a.avatarMenu })
	if a.avatarMenu {
		a.put(logout, browsertest.NewElement("Log Out")).OnClick = a.on(func() {
			a.email, a.password, a.consent, a.current = "", "", false, nil
			a.show(screenLogin, a.BaseURL+"/login")
		})
	}
}

func (a *App) renderStores() {
	search := a.put(storeSearch, browsertest.NewElement(""))
	search.Value = a.storeQuery
	search.OnFill = func(v string) {
		a.mu.Lock()
		a.storeQuery = v
		a.mu.Unlock()
	}
	search.OnPress = func(key string) {
		if key != "Enter" {
			return
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		a.storeFilter = a.storeQuery
		a.render()
	}

	rowDone := false
	for _, s := range a.stores {
		if !matches(s.Code+" "+s.Name, a.storeFilter) {
			continue
		}
		s := s
		b := a.put(badge(s.Status), browsertest.NewElement(s.Status))
		b.OnClick = a.on(func() {
			a.current, a.polyFilter = s, ""
			a.show(screenDetails, a.BaseURL+"/stores/"+s.Code)
		})
		if s.Status == statusActive && !rowDone {
			row := browsertest.NewElement(s.Name)
			row.Inner = s.Name + "\n" + s.Code + "\n" + s.Status
			a.put(firstActiveRow, row)
			rowDone = true
		}
	}
}

func (a *App) visiblePolygons() []*Polygon {
	var out []*Polygon
	for _, p := range a.current.Polygons {
		if matches(p.Name, a.polyFilter) {
			out = append(out, p)
		}
	}
	return out
}

func (a *App) renderDetails() {
	s := a.current
	a.put(detailsHeading, browsertest.NewElement("Store Details"))
	a.put(storeBadge, browsertest.NewElement(s.Status))
	a.put(detailsCreate, browsertest.NewElement("Create Polygon")).OnClick = a.on(func() {
		a.form = &form{}
		a.show(screenForm, a.BaseURL+"/stores/"+s.Code+"/polygons/new")
	})
	search := a.put(detailsSearch, browsertest.NewElement(""))
	search.Value = a.polyFilter
	search.OnFill = a.onFill(func(v string) { a.polyFilter = v })

	a.put(detailsMenu, browsertest.NewElement("")).OnClick = a.on(func() { a.menuOpen = !a.menuOpen })
	if a.menuOpen {
		a.put(detailsExport, browsertest.NewElement("Export Data")).OnClick = a.on(func() {
			a.menuOpen = false
			a.Page.EmitDownload(a.ExportName, a.export(s))
		})
		a.put(detailsSetInactive, browsertest.NewElement("Set as Inactive")).OnClick = a.on(func() {
			s.Status, a.menuOpen = statusInactive, false
		})
		a.put(detailsSetActive, browsertest.NewElement("Set as Active")).OnClick = a.on(func() {
			s.Status, a.menuOpen = statusActive, false
		})
	}

	visible := a.visiblePolygons()
	for _, p := range visible {
		a.put(polygonHeading(p.Name), browsertest.NewElement(p.Name))
		a.put(polygonBadge(p.Name, p.Status), browsertest.NewElement(p.Status))
	}
	if len(visible) == 0 {
		return
	}
	first := visible[0]
	a.put(polygonDistance, browsertest.NewElement(first.Details()))
	a.put(polygonMenu, browsertest.NewElement("")).OnClick = a.on(func() { a.cardMenu = !a.cardMenu })
	if a.cardMenu {
		a.put(polygonEdit, browsertest.NewElement("Edit")).OnClick = a.on(func() {
			a.form = &form{editing: first, name: first.Name, delivery: first.Delivery, tab: first.Bound,
				travelTime: first.TravelTime, travelDistance: first.TravelDistance}
			a.show(screenForm, a.BaseURL+"/stores/"+s.Code+"/polygons/edit")
		})
		a.put(polygonSetInactive, browsertest.NewElement("Set as Inactive")).OnClick = a.on(func() {
			first.Status, a.cardMenu = statusInactive, false
		})
	}
}

func (a *App) export(s *Store) []byte {
	var b strings.Builder
	b.WriteString("polygon,status,details\n")
	for _, p := range s.Polygons {
		fmt.Fprintf(&b, "%s,%s,%s\n", p.Name, p.Status, p.Details())
	}
	return []byte(b.String())
}

func (a *App) renderForm() {
	f := a.form
	if f.editing != nil {
		a.put(formEditHeader, browsertest.NewElement("Edit Polygon"))
	} else {
		a.put(formCreateHeader, browsertest.NewElement("Create New Polygon"))
	}
	a.put(formName, browsertest.NewElement("")).OnFill = a.onFill(func(v string) { f.name = v })
	a.put(formQuickCommerce, browsertest.NewElement("Quick Commerce")).OnClick = a.on(func() { f.delivery = "quick_commerce" })
	a.put(formSlotted, browsertest.NewElement("Slotted Delivery")).OnClick = a.on(func() { f.delivery = "slotted" })
	a.put(formTravelTimeTab, browsertest.NewElement("Travel Time")).OnClick = a.on(func() { f.tab = "time" })
	a.put(formDistanceTab, browsertest.NewElement("Travel Distance")).OnClick = a.on(func() { f.tab = "distance" })
	a.put(formManualTab, browsertest.NewElement("Manual")).OnClick = a.on(func() { f.tab = "manual" })

	switch f.tab {
	case "time":
		a.put(formTravelTime, browsertest.NewElement("")).OnFill = a.onFill(number(&f.travelTime))
	case "distance":
		a.put(formTravelDistance, browsertest.NewElement("")).OnFill = a.onFill(number(&f.travelDistance))
	case "manual":
		a.put(formUploadToggle, browsertest.NewElement("Upload Coordinates")).OnClick = a.on(func() { f.uploadOpen = true })
		if f.uploadOpen {
			input := browsertest.NewElement("")
			input.Visible = false
			input.OnFiles = func(paths []string) {
				a.mu.Lock()
				defer a.mu.Unlock()
				if len(paths) > 0 {
					f.file = paths[0]
				}
				a.render()
			}
			a.put(formFileInput, input)
		}
		m := browsertest.NewElement("")
		m.Box = MapBox
		a.put(formMap, m)
	}
	switch f.delivery {
	case "quick_commerce":
		a.put(formMaxPromise, browsertest.NewElement("")).OnFill = a.onFill(number(&f.maxPromise))
	case "slotted":
		a.put(formFlatFee, browsertest.NewElement("")).OnFill = a.onFill(number(&f.flatFee))
		a.put(formGrocery, browsertest.NewElement("Grocery")).OnClick = a.on(func() { f.storeType = "grocery" })
		a.put(formDigital, browsertest.NewElement("Digital")).OnClick = a.on(func() { f.storeType = "digital" })
	}

	if f.editing != nil {
		a.put(formUpdate, browsertest.NewElement("Update")).OnClick = a.on(a.update)
		return
	}
	create := a.put(formCreate, browsertest.NewElement("Create"))
	create.Enabled = a.complete()
	create.OnClick = a.on(a.create)
}

// complete reports whether the form has everything needed to create a polygon.
func (a *App) complete() bool {
	f := a.form
	if f.name == "" || f.delivery == "" {
		return false
	}
	switch f.tab {
	case "time":
		return f.travelTime > 0
	case "distance":
		return f.travelDistance > 0
	case "manual":
		return f.file != "" || len(f.clicks) >= 3
	}
	return false
}

func (a *App) create() {
	f := a.form
	p := &Polygon{
		Name:           f.name,
		Status:         statusActive,
		Delivery:       f.delivery,
		Bound:          f.tab,
		TravelTime:     f.travelTime,
		TravelDistance: f.travelDistance,
		MaxPromiseTime: f.maxPromise,
		FlatFee:        f.flatFee,
		StoreType:      f.storeType,
		Coordinates:    f.file,
		DrawnPoints:    len(f.clicks),
	}
	a.current.Polygons = append(a.current.Polygons, p)
	a.form, a.polyFilter = nil, ""
	a.show(screenDetails, a.BaseURL+"/stores/"+a.current.Code)
}

func (a *App) update() {
	f := a.form
	p := f.editing
	p.Bound = f.tab
	switch f.tab {
	case "time":
		p.TravelTime = f.travelTime
	case "distance":
		p.TravelDistance = f.travelDistance
	}
	a.form, a.polyFilter = nil, ""
	a.show(screenDetails, a.BaseURL+"/stores/"+a.current.Code)
}

func number(dst *int) func(string) {
	return func(v string) {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			n = 0
		}
		*dst = n
	}
}

func matches(text, filter string) bool {
	return filter == "" || strings.Contains(strings.ToLower(text), strings.ToLower(filter))
}
