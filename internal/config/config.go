// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Supported browser drivers.
const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
)

// Supported browser engines.
const (
	EngineChromium = "chromium"
	EngineFirefox  = "firefox"
	EngineWebKit   = "webkit"
)

// Config holds the entire application configuration. It is built once at
// process start and handed to every component that needs it.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	App         AppConfig         `mapstructure:"app" yaml:"app"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"-"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Interaction InteractionConfig `mapstructure:"interaction" yaml:"interaction"`
	Paths       PathsConfig       `mapstructure:"paths" yaml:"paths"`
	Scenario    ScenarioConfig    `mapstructure:"scenario" yaml:"scenario"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color settings for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// AppConfig describes the application under test.
type AppConfig struct {
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	LoginPath string `mapstructure:"login_path" yaml:"login_path"`
}

// CredentialsConfig holds the sign-in identity. Never written back to disk.
type CredentialsConfig struct {
	Username string `mapstructure:"username" yaml:"-"`
	Password string `mapstructure:"password" yaml:"-"`
}

// BrowserConfig controls how the browser process, context and page are created.
type BrowserConfig struct {
	Driver         string         `mapstructure:"driver" yaml:"driver"`
	Engine         string         `mapstructure:"engine" yaml:"engine"`
	Headless       bool           `mapstructure:"headless" yaml:"headless"`
	SlowMo         time.Duration  `mapstructure:"slow_mo" yaml:"slow_mo"`
	Viewport       ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	DefaultTimeout time.Duration  `mapstructure:"default_timeout" yaml:"default_timeout"`
	Args           []string       `mapstructure:"args" yaml:"args"`
	ExecPath       string         `mapstructure:"exec_path" yaml:"exec_path"`
	Install        bool           `mapstructure:"install" yaml:"install"`
}

// ViewportConfig is the fixed page size.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// InteractionConfig holds the waiting and timeout policy of the interaction layer.
type InteractionConfig struct {
	ActionTimeout      time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	LongActionTimeout  time.Duration `mapstructure:"long_action_timeout" yaml:"long_action_timeout"`
	VisibilityTimeout  time.Duration `mapstructure:"visibility_timeout" yaml:"visibility_timeout"`
	SettleDelay        time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	NetworkIdleQuiet   time.Duration `mapstructure:"network_idle_quiet" yaml:"network_idle_quiet"`
	NetworkIdleTimeout time.Duration `mapstructure:"network_idle_timeout" yaml:"network_idle_timeout"`
	PollInterval       time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	DownloadTimeout    time.Duration `mapstructure:"download_timeout" yaml:"download_timeout"`
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// PathsConfig lists the directories the run reads from and writes to.
type PathsConfig struct {
	Downloads   string `mapstructure:"downloads" yaml:"downloads"`
	Screenshots string `mapstructure:"screenshots" yaml:"screenshots"`
	TestData    string `mapstructure:"test_data" yaml:"test_data"`
	Reports     string `mapstructure:"reports" yaml:"reports"`
}

// ScenarioConfig carries the business values entered by the end-to-end scenario.
type ScenarioConfig struct {
	TravelTime      int           `mapstructure:"travel_time" yaml:"travel_time"`
	MaxPromiseTime  int           `mapstructure:"max_promise_time" yaml:"max_promise_time"`
	TravelDistance  int           `mapstructure:"travel_distance" yaml:"travel_distance"`
	FlatDeliveryFee int           `mapstructure:"flat_delivery_fee" yaml:"flat_delivery_fee"`
	StoreType       string        `mapstructure:"store_type" yaml:"store_type"`
	EditedDistance  int           `mapstructure:"edited_distance" yaml:"edited_distance"`
	CoordinatesFile string        `mapstructure:"coordinates_file" yaml:"coordinates_file"`
	DrawRadius      float64       `mapstructure:"draw_radius" yaml:"draw_radius"`
	DrawVertices    int           `mapstructure:"draw_vertices" yaml:"draw_vertices"`
	DrawPause       time.Duration `mapstructure:"draw_pause" yaml:"draw_pause"`
	FormSettle      time.Duration `mapstructure:"form_settle" yaml:"form_settle"`
}

// LoginURL joins the base URL and the login path.
func (a AppConfig) LoginURL() string {
	return strings.TrimRight(a.BaseURL, "/") + "/" + strings.TrimLeft(a.LoginPath, "/")
}

// CoordinatesPath resolves the coordinate CSV inside the test data directory.
func (c *Config) CoordinatesPath() string {
	if strings.HasPrefix(c.Scenario.CoordinatesFile, "/") {
		return c.Scenario.CoordinatesFile
	}
	return strings.TrimRight(c.Paths.TestData, "/") + "/" + c.Scenario.CoordinatesFile
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "zonecheck")
	v.SetDefault("logger.log_file", "logs/zonecheck.log")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- App --
	v.SetDefault("app.login_path", "/login")

	// -- Browser --
	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.engine", EngineChromium)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.slow_mo", "100ms")
	v.SetDefault("browser.viewport.width", 1366)
	v.SetDefault("browser.viewport.height", 768)
	v.SetDefault("browser.default_timeout", "30s")
	v.SetDefault("browser.install", false)

	// -- Interaction --
	v.SetDefault("interaction.action_timeout", "1s")
	v.SetDefault("interaction.long_action_timeout", "2s")
	v.SetDefault("interaction.visibility_timeout", "5s")
	v.SetDefault("interaction.settle_delay", "1s")
	v.SetDefault("interaction.network_idle_quiet", "500ms")
	v.SetDefault("interaction.network_idle_timeout", "10s")
	v.SetDefault("interaction.poll_interval", "100ms")
	v.SetDefault("interaction.download_timeout", "30s")
	v.SetDefault("interaction.navigation_timeout", "30s")

	// -- Paths --
	v.SetDefault("paths.downloads", "downloads")
	v.SetDefault("paths.screenshots", "screenshots")
	v.SetDefault("paths.test_data", "testData")
	v.SetDefault("paths.reports", "reports")

	// -- Scenario --
	v.SetDefault("scenario.travel_time", 18)
	v.SetDefault("scenario.max_promise_time", 15)
	v.SetDefault("scenario.travel_distance", 5000)
	v.SetDefault("scenario.flat_delivery_fee", 35)
	v.SetDefault("scenario.store_type", "grocery")
	v.SetDefault("scenario.edited_distance", 200)
	v.SetDefault("scenario.coordinates_file", "lat_long_coordinates.csv")
	v.SetDefault("scenario.draw_radius", 50.0)
	v.SetDefault("scenario.draw_vertices", 5)
	v.SetDefault("scenario.draw_pause", "300ms")
	v.SetDefault("scenario.form_settle", "2s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets come from the environment, not the config file.
	_ = v.BindEnv("credentials.username", "ZONECHECK_USERNAME")
	_ = v.BindEnv("credentials.password", "ZONECHECK_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.Paths.Downloads, &c.Paths.Screenshots, &c.Paths.TestData, &c.Paths.Reports,
		&c.Logger.LogFile, &c.Browser.ExecPath,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expanding path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	var errs []error

	if c.App.BaseURL == "" {
		errs = append(errs, fmt.Errorf("app.base_url is a required configuration field"))
	}
	if c.Credentials.Username == "" || c.Credentials.Password == "" {
		errs = append(errs, fmt.Errorf("credentials are required. Set ZONECHECK_USERNAME and ZONECHECK_PASSWORD"))
	}
	if err := c.Browser.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("browser configuration invalid: %w", err))
	}
	if err := c.Interaction.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("interaction configuration invalid: %w", err))
	}
	if c.Scenario.DrawVertices < 3 {
		errs = append(errs, fmt.Errorf("scenario.draw_vertices must be at least 3"))
	}
	if c.Scenario.DrawRadius <= 0 {
		errs = append(errs, fmt.Errorf("scenario.draw_radius must be positive"))
	}
	return errors.Join(errs...)
}

// Validate checks the browser settings.
func (b *BrowserConfig) Validate() error {
	switch b.Driver {
	case DriverChromedp:
		if b.Engine != EngineChromium {
			return fmt.Errorf("driver %q only supports the %q engine", DriverChromedp, EngineChromium)
		}
	case DriverPlaywright:
		switch b.Engine {
		case EngineChromium, EngineFirefox, EngineWebKit:
		default:
			return fmt.Errorf("unknown engine %q", b.Engine)
		}
	default:
		return fmt.Errorf("unknown driver %q", b.Driver)
	}
	if b.Viewport.Width <= 0 || b.Viewport.Height <= 0 {
		return fmt.Errorf("viewport must have positive dimensions")
	}
	if b.DefaultTimeout <= 0 {
		return fmt.Errorf("default_timeout must be a positive duration")
	}
	return nil
}

// Validate checks the interaction timing settings.
func (i *InteractionConfig) Validate() error {
	if i.ActionTimeout <= 0 || i.LongActionTimeout <= 0 || i.VisibilityTimeout <= 0 {
		return fmt.Errorf("action, long action and visibility timeouts must be positive")
	}
	if i.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if i.DownloadTimeout <= 0 {
		return fmt.Errorf("download_timeout must be a positive duration")
	}
	return nil
}
