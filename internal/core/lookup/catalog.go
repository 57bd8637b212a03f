package lookup

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog holds the portal addresses, URL markers and locator lists the
// workflow runs against.
type Catalog struct {
	Homepage         string   `yaml:"homepage"`
	LogoutPaths      []string `yaml:"logout_paths"`
	LoginMarker      string   `yaml:"login_marker"`
	FitnessMarker    string   `yaml:"fitness_marker"`
	StaleSessionText string   `yaml:"stale_session_text"`
	Locators         Locators `yaml:"locators"`
}

type Locators struct {
	PopupClose     []Locator `yaml:"popup_close"`
	Registration   []Locator `yaml:"registration"`
	Consent        []Locator `yaml:"consent"`
	FrameConsent   []Locator `yaml:"frame_consent"`
	Proceed        []Locator `yaml:"proceed"`
	Dialog         []Locator `yaml:"dialog"`
	DialogProceed  []Locator `yaml:"dialog_proceed"`
	SessionDialog  []Locator `yaml:"session_dialog"`
	SessionDismiss []Locator `yaml:"session_dismiss"`
	FitnessLink    []Locator `yaml:"fitness_link"`
	Chassis        []Locator `yaml:"chassis"`
	Validate       []Locator `yaml:"validate"`
	Mobile         []Locator `yaml:"mobile"`
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file, e.g. one pointed at a staging portal.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	u, err := url.Parse(c.Homepage)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("catalog: homepage must be an absolute URL, got %q", c.Homepage)
	}
	if c.LoginMarker == "" || c.FitnessMarker == "" {
		return fmt.Errorf("catalog: login_marker and fitness_marker are required")
	}
	if c.StaleSessionText == "" {
		return fmt.Errorf("catalog: stale_session_text is required")
	}
	required := map[string][]Locator{
		"registration": c.Locators.Registration,
		"proceed":      c.Locators.Proceed,
		"chassis":      c.Locators.Chassis,
		"validate":     c.Locators.Validate,
		"mobile":       c.Locators.Mobile,
	}
	for name, list := range required {
		if len(list) == 0 {
			return fmt.Errorf("catalog: locators.%s must not be empty", name)
		}
		for i, l := range list {
			if l.Selector == "" {
				return fmt.Errorf("catalog: locators.%s[%d] has no selector", name, i)
			}
		}
	}
	return nil
}

// Origin returns scheme://host of the homepage.
func (c *Catalog) Origin() string {
	u, err := url.Parse(c.Homepage)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
