// Package config provides YAML configuration parsing for InspectWatch.
//
// This package enables running InspectWatch as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Tower A inspections
//	port: 8080
//	base_url: ${PORTAL_URL:-http://localhost:3001/api}
//	email: ${PORTAL_EMAIL}
//	password: ${PORTAL_PASSWORD}
//	poll_interval: 5s
//	max_attempts: 60
//
//	targets:
//	  - evidence_id: evi_123
//	    name: Stairwell crack
//	    auto_trigger: true
//
//	grids:
//	  - name: Tower A
//	    id_template: "evi_towera_{{.floor}}"
//	    dimensions:
//	      floor: [f1, f2, f3]
//
//	projects:
//	  - project_id: prj_001
//	    name: Tower B
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/inspectwatch/internal/analysis"
)

const (
	// minPollInterval matches the smallest interval the watcher accepts.
	minPollInterval = 100 * time.Millisecond

	maxAttemptsLimit = 10000

	defaultPort         = 8080
	defaultBaseURL      = "http://localhost:3001/api"
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 60
	defaultMockPort     = 3001
	defaultMockStorage  = StorageMemory
)

// Mock API storage backends.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config is the root configuration structure for InspectWatch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "InspectWatch" if not set.
	Title string `yaml:"title"`

	// Port is the dashboard HTTP port. Defaults to 8080.
	Port int `yaml:"port"`

	// BaseURL is the inspection portal API root, including the /api prefix.
	// Defaults to http://localhost:3001/api.
	BaseURL string `yaml:"base_url"`

	// Token is a pre-issued bearer token. When empty and Email is set, the
	// watcher logs in with Email and Password.
	Token    string `yaml:"token"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`

	// PollInterval is the time between status checks of a polling session.
	// Defaults to 5s.
	PollInterval Duration `yaml:"poll_interval"`

	// MaxAttempts bounds the status checks of one polling session.
	// Defaults to 60.
	MaxAttempts int `yaml:"max_attempts"`

	// RequestTimeout bounds each portal request. Zero keeps the client default.
	RequestTimeout Duration `yaml:"request_timeout"`

	// MaxConcurrency bounds concurrent start-up requests to the portal.
	MaxConcurrency int `yaml:"max_concurrency"`

	// Targets defines individual evidence photos to track.
	Targets []TargetConfig `yaml:"targets"`

	// Grids defines target grids that expand via cartesian product.
	Grids []GridConfig `yaml:"grids"`

	// Projects defines projects whose evidence photos are all tracked. They
	// are listed from the portal when the watcher starts.
	Projects []ProjectConfig `yaml:"projects"`

	// Mock configures the `inspectwatch mock` command.
	Mock MockConfig `yaml:"mock"`
}

// TargetConfig defines a single tracked evidence photo.
type TargetConfig struct {
	// EvidenceID is the portal id of the photo.
	EvidenceID string `yaml:"evidence_id"`

	// Name is the display name. Defaults to the evidence id.
	Name string `yaml:"name"`

	// Labels are metadata key-value pairs for grouping/filtering.
	Labels map[string]string `yaml:"labels"`

	// AutoTrigger starts the analysis on start-up when the photo has not
	// been analysed yet.
	AutoTrigger bool `yaml:"auto_trigger"`
}

// GridConfig defines a target grid that expands via cartesian product.
//
// For example, with dimensions {floor: [f1, f2], zone: [north, south]},
// the grid expands to 4 targets.
type GridConfig struct {
	// Name is the base name for generated targets.
	Name string `yaml:"name"`

	// IDTemplate is a Go template for generating evidence ids.
	// Dimension keys are available as template variables: {{.floor}}
	IDTemplate string `yaml:"id_template"`

	// Dimensions maps dimension names to their possible values.
	Dimensions map[string][]string `yaml:"dimensions"`

	// Labels are additional labels applied to all generated targets.
	Labels map[string]string `yaml:"labels"`

	AutoTrigger bool `yaml:"auto_trigger"`
}

// ProjectConfig defines a project whose evidence photos are all tracked.
type ProjectConfig struct {
	// ProjectID is the portal id of the project.
	ProjectID string `yaml:"project_id"`

	// Name prefixes the display name of every photo: "Name (evidence id)".
	Name string `yaml:"name"`

	// Labels are applied to every photo. A "project" label is added unless
	// set here.
	Labels map[string]string `yaml:"labels"`

	AutoTrigger bool `yaml:"auto_trigger"`
}

// MockConfig configures the mock inspection portal.
type MockConfig struct {
	// Port defaults to 3001.
	Port int `yaml:"port"`

	// Storage is "memory" (default) or "sqlite".
	Storage string `yaml:"storage"`

	// Database is the SQLite file path, required for sqlite storage.
	Database string `yaml:"database"`

	// ProcessingTime is how long an analysis stays processing.
	ProcessingTime Duration `yaml:"processing_time"`

	// JWTSecret signs access tokens. A random secret is used when empty.
	JWTSecret string `yaml:"jwt_secret"`

	// FailEvidences lists evidence ids whose analysis ends in error.
	FailEvidences []string `yaml:"fail_evidences"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in base_url, token, email, password,
// evidence ids, id templates and the mock jwt_secret. Defaults are applied
// for every optional key.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(defaultPollInterval)
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Mock.Port == 0 {
		c.Mock.Port = defaultMockPort
	}
	if c.Mock.Storage == "" {
		c.Mock.Storage = defaultMockStorage
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	var err error

	for _, field := range []struct {
		name string
		val  *string
	}{
		{"base_url", &c.BaseURL},
		{"token", &c.Token},
		{"email", &c.Email},
		{"password", &c.Password},
		{"mock.jwt_secret", &c.Mock.JWTSecret},
		{"mock.database", &c.Mock.Database},
	} {
		if *field.val, err = expandEnvVars(*field.val); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}

	if err := validatePort("port", c.Port); err != nil {
		return err
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("base_url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return errors.New("base_url must have a host")
	}

	if (c.Email == "") != (c.Password == "") {
		return errors.New("email and password must be set together")
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.MaxAttempts < 1 || c.MaxAttempts > maxAttemptsLimit {
		return fmt.Errorf("max_attempts must be between 1 and %d, got %d", maxAttemptsLimit, c.MaxAttempts)
	}
	if c.RequestTimeout.Duration() < 0 {
		return fmt.Errorf("request_timeout cannot be negative, got %s", c.RequestTimeout.Duration())
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	}

	for i := range c.Targets {
		tc := &c.Targets[i]

		expanded, err := expandEnvVars(tc.EvidenceID)
		if err != nil {
			return fmt.Errorf("targets[%d]: evidence_id: %w", i, err)
		}
		tc.EvidenceID = expanded

		if err := analysis.ValidateEvidenceID(tc.EvidenceID); err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
	}

	for i := range c.Grids {
		g := &c.Grids[i]

		if g.Name == "" {
			return fmt.Errorf("grids[%d]: name is required", i)
		}

		if g.IDTemplate == "" {
			return fmt.Errorf("grids[%d] (%s): id_template is required", i, g.Name)
		}
		expanded, err := expandEnvVars(g.IDTemplate)
		if err != nil {
			return fmt.Errorf("grids[%d] (%s): id_template: %w", i, g.Name, err)
		}
		g.IDTemplate = expanded

		// fail fast before the SDK tries to use an invalid template
		if _, err := template.New("").Parse(g.IDTemplate); err != nil {
			return fmt.Errorf("grids[%d] (%s): invalid id_template: %w", i, g.Name, err)
		}

		if len(g.Dimensions) == 0 {
			return fmt.Errorf("grids[%d] (%s): at least one dimension is required", i, g.Name)
		}
		for dimName, dimValues := range g.Dimensions {
			if len(dimValues) == 0 {
				return fmt.Errorf("grids[%d] (%s): dimension %q has no values", i, g.Name, dimName)
			}
			seen := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if _, exists := seen[v]; exists {
					return fmt.Errorf("grids[%d] (%s): dimension %q has duplicate value %q", i, g.Name, dimName, v)
				}
				seen[v] = struct{}{}
			}
		}
	}

	seenProjects := make(map[string]bool, len(c.Projects))
	for i := range c.Projects {
		pc := &c.Projects[i]

		expanded, err := expandEnvVars(pc.ProjectID)
		if err != nil {
			return fmt.Errorf("projects[%d]: project_id: %w", i, err)
		}
		pc.ProjectID = expanded

		if strings.TrimSpace(pc.ProjectID) == "" {
			return fmt.Errorf("projects[%d]: project_id is required", i)
		}
		if strings.ContainsAny(pc.ProjectID, "/?# \t\r\n") {
			return fmt.Errorf("projects[%d]: project_id %q contains a reserved character", i, pc.ProjectID)
		}
		if seenProjects[pc.ProjectID] {
			return fmt.Errorf("projects[%d]: duplicate project_id %q", i, pc.ProjectID)
		}
		seenProjects[pc.ProjectID] = true
	}

	if len(c.Targets) == 0 && len(c.Grids) == 0 && len(c.Projects) == 0 {
		return errors.New("at least one target, grid or project must be defined")
	}

	return c.Mock.validate()
}

func (m *MockConfig) validate() error {
	if err := validatePort("mock.port", m.Port); err != nil {
		return err
	}
	switch m.Storage {
	case StorageMemory:
	case StorageSQLite:
		if m.Database == "" {
			return errors.New("mock.database is required for sqlite storage")
		}
	default:
		return fmt.Errorf("mock.storage must be %q or %q, got %q", StorageMemory, StorageSQLite, m.Storage)
	}
	if m.ProcessingTime.Duration() < 0 {
		return fmt.Errorf("mock.processing_time cannot be negative, got %s", m.ProcessingTime.Duration())
	}
	for i, id := range m.FailEvidences {
		if err := analysis.ValidateEvidenceID(id); err != nil {
			return fmt.Errorf("mock.fail_evidences[%d]: %w", i, err)
		}
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}
