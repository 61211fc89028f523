// internal/config/config.go
//
// This package handles configuration and the .brandguard directory
// structure. Every project that uses brandguard gets a .brandguard/ folder
// created in its root holding the config file, logs, and wizard drafts.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// BrandguardDir is the name of the directory we create in each project
	BrandguardDir = ".brandguard"

	defaultBaseURL     = "http://localhost:8000"
	defaultPageSize    = 100
	defaultMaxPages    = 50
	defaultIndustry    = "insurance"
	envBaseURL         = "BRANDGUARD_API_URL"
	envToken           = "BRANDGUARD_API_TOKEN"
	projectConfigName  = "config.yaml"
	defaultEnvFileName = ".env"
)

const defaultProjectConfigYAML = `# brandguard project configuration
version: 1

api:
  # Base URL of the compliance API. Override with BRANDGUARD_API_URL.
  base_url: http://localhost:8000
  # Bearer token. Prefer BRANDGUARD_API_TOKEN over storing it here.
  token: ""

catalog:
  # Largest page size the server honors for rule listings.
  page_size: 100
  # Hard ceiling on pages scanned per catalog refresh.
  max_pages: 50

wizard:
  # Default industry preset for new workspaces.
  industry: insurance
  # Set to false to skip the agent selection stage.
  agent_stage: true
`

// APIConfig points the client at the compliance backend.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token,omitempty"`
}

// CatalogConfig tunes the rule catalog scan.
type CatalogConfig struct {
	PageSize int `yaml:"page_size"`
	MaxPages int `yaml:"max_pages"`
}

// WizardConfig captures wizard preferences.
type WizardConfig struct {
	Industry   string `yaml:"industry"`
	AgentStage *bool  `yaml:"agent_stage,omitempty"`
}

// ProjectConfig models .brandguard/config.yaml.
type ProjectConfig struct {
	Version int           `yaml:"version"`
	API     APIConfig     `yaml:"api"`
	Catalog CatalogConfig `yaml:"catalog"`
	Wizard  WizardConfig  `yaml:"wizard"`
}

// Config holds the runtime configuration for brandguard.
type Config struct {
	// ProjectDir is the directory where the user ran `brandguard` from
	ProjectDir string

	// BrandguardProjectDir is ProjectDir/.brandguard
	BrandguardProjectDir string

	Project ProjectConfig
}

// InitBrandguardDir creates the .brandguard directory structure in the
// given project directory. This is called when the TUI starts up.
//
// Structure created:
// .brandguard/
// ├── logs/    <- Structured logs and the session journal
// └── state/   <- Wizard drafts persisted between runs
func InitBrandguardDir(projectDir string) error {
	root := filepath.Join(projectDir, BrandguardDir)

	dirs := []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "state"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return ensureProjectConfig(filepath.Join(root, projectConfigName))
}

// NewConfig creates a Config populated from .brandguard/config.yaml, a
// .env file if present, and environment variables. Environment values win
// over the file so tokens never have to live on disk.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:           projectDir,
		BrandguardProjectDir: filepath.Join(projectDir, BrandguardDir),
		Project:              defaultProjectConfig(),
	}

	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.BrandguardProjectDir, "logs")
}

// StateDir returns the path to the state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.BrandguardProjectDir, "state")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.BrandguardProjectDir, projectConfigName)
}

// BaseURL returns the API base URL.
func (c *Config) BaseURL() string {
	return c.Project.API.BaseURL
}

// Token returns the bearer token, possibly empty for unauthenticated
// local development servers.
func (c *Config) Token() string {
	return c.Project.API.Token
}

// PageSize returns the catalog listing page size.
func (c *Config) PageSize() int {
	return c.Project.Catalog.PageSize
}

// MaxPages returns the catalog scan ceiling.
func (c *Config) MaxPages() int {
	return c.Project.Catalog.MaxPages
}

// Industry returns the default industry preset.
func (c *Config) Industry() string {
	return c.Project.Wizard.Industry
}

// AgentStageEnabled reports whether the wizard includes the agent
// selection stage.
func (c *Config) AgentStageEnabled() bool {
	if c.Project.Wizard.AgentStage == nil {
		return true
	}
	return *c.Project.Wizard.AgentStage
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()

	c.Project = parsed
	return nil
}

// applyEnvOverrides layers .env and process environment values over the
// file config. godotenv never overwrites variables already exported, so
// the precedence is process env > .env > config.yaml.
func (c *Config) applyEnvOverrides() {
	envPath := filepath.Join(c.ProjectDir, defaultEnvFileName)
	if _, err := os.Stat(envPath); err == nil {
		_ = godotenv.Load(envPath)
	}
	if v := strings.TrimSpace(os.Getenv(envBaseURL)); v != "" {
		c.Project.API.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv(envToken)); v != "" {
		c.Project.API.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("BRANDGUARD_PAGE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Project.Catalog.PageSize = n
		}
	}
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		API:     APIConfig{BaseURL: defaultBaseURL},
		Catalog: CatalogConfig{PageSize: defaultPageSize, MaxPages: defaultMaxPages},
		Wizard:  WizardConfig{Industry: defaultIndustry},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.API.BaseURL == "" {
		pc.API.BaseURL = defaultBaseURL
	}
	if pc.Catalog.PageSize == 0 {
		pc.Catalog.PageSize = defaultPageSize
	}
	if pc.Catalog.MaxPages == 0 {
		pc.Catalog.MaxPages = defaultMaxPages
	}
	if pc.Wizard.Industry == "" {
		pc.Wizard.Industry = defaultIndustry
	}
}

func (pc *ProjectConfig) normalize() {
	pc.API.BaseURL = strings.TrimRight(strings.TrimSpace(pc.API.BaseURL), "/")
	pc.API.Token = strings.TrimSpace(pc.API.Token)
	pc.Wizard.Industry = strings.ToLower(strings.TrimSpace(pc.Wizard.Industry))
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	parsed, err := url.Parse(pc.API.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL")
	}
	if pc.Catalog.PageSize < 1 {
		return fmt.Errorf("catalog.page_size must be >= 1")
	}
	if pc.Catalog.MaxPages < 1 {
		return fmt.Errorf("catalog.max_pages must be >= 1")
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}

// Save persists the in-memory project config back to
// .brandguard/config.yaml.
func (c *Config) Save() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.BrandguardProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure brandguard dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
