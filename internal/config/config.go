// Package config loads carlog configuration from YAML with environment
// overrides. The zero config is usable: defaults target the fleet trip-log
// form and the standard input/output file names.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ControlKind classifies a form control for type-appropriate value entry.
type ControlKind string

const (
	KindText     ControlKind = "text"
	KindDate     ControlKind = "date"
	KindSelect   ControlKind = "select"
	KindCheckbox ControlKind = "checkbox"
)

// FieldMapping binds one spreadsheet column to one form control locator.
// The mapping is configuration, not code: adding a column to the form means
// adding an entry here, never a new branch in the driver.
type FieldMapping struct {
	// Column is the spreadsheet header this mapping consumes.
	Column string `yaml:"column"`
	// Locator finds the control on the page. Values starting with "//" or
	// "(" are treated as XPath, everything else as CSS.
	Locator string `yaml:"locator"`
	// Kind selects the entry strategy: text, date, select, checkbox.
	Kind ControlKind `yaml:"kind"`
	// Required marks columns that must exist in the input header.
	Required bool `yaml:"required"`
}

// SiteConfig describes the target form page.
type SiteConfig struct {
	URL             string `yaml:"url"`
	SubmitLocator   string `yaml:"submit_locator"`
	SuccessLocator  string `yaml:"success_locator"`
	ReloadLocator   string `yaml:"reload_locator"`
	LocateTimeout   string `yaml:"locate_timeout"`   // per-control bounded wait
	SettleDelay     string `yaml:"settle_delay"`     // pause before acting, page rendering is async
	SuccessTimeout  string `yaml:"success_timeout"`  // bounded wait for the success marker
	BetweenRowDelay string `yaml:"between_row_delay"`
}

// BrowserConfig holds the Chrome session settings.
type BrowserConfig struct {
	Bin               string `yaml:"bin"`
	DebuggerURL       string `yaml:"debugger_url"`
	Headless          bool   `yaml:"headless"`
	ViewportWidth     int    `yaml:"viewport_width"`
	ViewportHeight    int    `yaml:"viewport_height"`
	NavigationTimeout string `yaml:"navigation_timeout"`
}

// AuthConfig is the authorized-operator table consumed by auth.NewStatic.
type AuthConfig struct {
	Users map[string]string `yaml:"users"`
}

// Config is the root carlog configuration.
type Config struct {
	Input      string         `yaml:"input"`
	Output     string         `yaml:"output"`
	DateFormat string         `yaml:"date_format"`
	Site       SiteConfig     `yaml:"site"`
	Browser    BrowserConfig  `yaml:"browser"`
	Fields     []FieldMapping `yaml:"fields"`
	Auth       AuthConfig     `yaml:"auth"`
}

// DefaultConfig returns the default configuration for the fleet trip-log
// form, mirroring the deployed field set.
func DefaultConfig() *Config {
	return &Config{
		Input:      "car_log_input.xlsx",
		Output:     "Submission_Log.csv",
		DateFormat: "01/02/2006",

		Site: SiteConfig{
			URL:             "https://uh.knack.com/travel-log#trip-log-open/",
			SubmitLocator:   "button.kn-button.is-primary",
			SuccessLocator:  ".kn-message.success",
			ReloadLocator:   `//button[contains(., 'Reload')] | //a[contains(., 'Reload')]`,
			LocateTimeout:   "10s",
			SettleDelay:     "500ms",
			SuccessTimeout:  "5s",
			BetweenRowDelay: "1s",
		},

		Browser: BrowserConfig{
			Headless:          false,
			ViewportWidth:     1920,
			ViewportHeight:    1080,
			NavigationTimeout: "30s",
		},

		Fields: []FieldMapping{
			{Column: "Department", Locator: `//label[contains(., 'Department')]/ancestor::div[contains(@class,'kn-input-connection')][1]//select`, Kind: KindSelect, Required: true},
			{Column: "Plate", Locator: `//label[contains(., 'Plate') or contains(., 'Vehicle')]/ancestor::div[contains(@class,'kn-input-connection')][1]//select`, Kind: KindSelect, Required: true},
			{Column: "Date", Locator: `//label[contains(., 'Date')]/following::input[1]`, Kind: KindDate, Required: true},
			{Column: "Start_Time", Locator: `//label[contains(., 'Start Time')]/following::input[1]`, Kind: KindText, Required: true},
			{Column: "Start_Mileage", Locator: `//label[contains(., 'Odometer Start')]/following::input[1]`, Kind: KindText, Required: true},
			{Column: "End_Time", Locator: `//label[contains(., 'End Time')]/following::input[1]`, Kind: KindText, Required: true},
			{Column: "End_Mileage", Locator: `//label[contains(., 'Odometer End')]/following::input[1]`, Kind: KindText, Required: true},
			{Column: "Destination", Locator: `//label[contains(., 'Destination')]/following::input[1]`, Kind: KindText, Required: true},
			{Column: "Driver", Locator: `//label[contains(., 'Driver')]/ancestor::div[contains(@class,'kn-input-connection')][1]//select`, Kind: KindSelect, Required: true},
		},

		Auth: AuthConfig{
			Users: map[string]string{},
		},
	}
}

// DefaultPath is where Load looks when no explicit config path is given.
func DefaultPath() string {
	return "carlog.yaml"
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults; a present but malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies CARLOG_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CARLOG_INPUT"); v != "" {
		c.Input = v
	}
	if v := os.Getenv("CARLOG_OUTPUT"); v != "" {
		c.Output = v
	}
	if v := os.Getenv("CARLOG_URL"); v != "" {
		c.Site.URL = v
	}
	if v := os.Getenv("CARLOG_HEADLESS"); v != "" {
		c.Browser.Headless = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("CARLOG_CHROME_BIN"); v != "" {
		c.Browser.Bin = v
	}
	if v := os.Getenv("CARLOG_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Site.URL == "" {
		return fmt.Errorf("site.url is required")
	}
	if c.Output == "" {
		return fmt.Errorf("output is required")
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("at least one field mapping is required")
	}

	seen := make(map[string]bool, len(c.Fields))
	for i, f := range c.Fields {
		if f.Column == "" {
			return fmt.Errorf("fields[%d]: column is required", i)
		}
		if f.Locator == "" {
			return fmt.Errorf("fields[%d] (%s): locator is required", i, f.Column)
		}
		switch f.Kind {
		case KindText, KindDate, KindSelect, KindCheckbox:
		default:
			return fmt.Errorf("fields[%d] (%s): unknown kind %q", i, f.Column, f.Kind)
		}
		if seen[f.Column] {
			return fmt.Errorf("duplicate field mapping for column %q", f.Column)
		}
		seen[f.Column] = true
	}
	return nil
}

// Columns returns the mapped column names in mapping order.
func (c *Config) Columns() []string {
	cols := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		cols[i] = f.Column
	}
	return cols
}

// RequiredColumns returns the columns the input header must contain.
func (c *Config) RequiredColumns() []string {
	var cols []string
	for _, f := range c.Fields {
		if f.Required {
			cols = append(cols, f.Column)
		}
	}
	return cols
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetLocateTimeout returns the bounded per-control wait.
func (c *SiteConfig) GetLocateTimeout() time.Duration {
	return parseDuration(c.LocateTimeout, 10*time.Second)
}

// GetSettleDelay returns the pause between locating and acting on controls.
func (c *SiteConfig) GetSettleDelay() time.Duration {
	return parseDuration(c.SettleDelay, 500*time.Millisecond)
}

// GetSuccessTimeout returns the bounded wait for the post-submit marker.
func (c *SiteConfig) GetSuccessTimeout() time.Duration {
	return parseDuration(c.SuccessTimeout, 5*time.Second)
}

// GetBetweenRowDelay returns the pause between consecutive rows.
func (c *SiteConfig) GetBetweenRowDelay() time.Duration {
	return parseDuration(c.BetweenRowDelay, time.Second)
}

// GetNavigationTimeout returns the page navigation timeout.
func (c *BrowserConfig) GetNavigationTimeout() time.Duration {
	return parseDuration(c.NavigationTimeout, 30*time.Second)
}
