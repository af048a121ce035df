package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/source"
)

// Following the XDG base directory spec:
// User config:    $XDG_CONFIG_HOME/folio/config.yaml
// Project config: <workspace>/.folio.yaml

const (
	// ConfigDir is the subdirectory name under $XDG_CONFIG_HOME
	ConfigDir = "folio"
	// UserConfigFile is the user-level config filename
	UserConfigFile = "config.yaml"
	// ProjectConfigFile marks a folio workspace and holds project settings
	ProjectConfigFile = ".folio.yaml"
)

// Environment overrides
const (
	EnvRepository = "FOLIO_REPOSITORY"
	EnvRef        = "FOLIO_REF"
	EnvIndexPath  = "FOLIO_INDEX_PATH"
)

const (
	DefaultRepository    = "github/awesome-copilot"
	DefaultRef           = "main"
	DefaultIndexPath     = "index.json"
	DefaultMaxIndexBytes = 1 << 20
	DefaultMaxItemBytes  = 256 << 10
	DefaultConcurrency   = 4
	MaxConcurrency       = 16
	DefaultTimeout       = 30 * time.Second
)

//go:embed schema/config.schema.json
var configSchema []byte

// Duration is a time.Duration written as "30s" in YAML
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the effective configuration after layering
type Config struct {
	Repository             string   `yaml:"repository"`
	Ref                    string   `yaml:"ref"`
	IndexPath              string   `yaml:"indexPath"`
	Allowlist              []string `yaml:"allowlist"`
	MaxIndexBytes          int64    `yaml:"maxIndexBytes"`
	MaxItemBytes           int64    `yaml:"maxItemBytes"`
	MaxConcurrentDownloads int      `yaml:"maxConcurrentDownloads"`
	Timeout                Duration `yaml:"timeout"`
	// TrustedWorkspaces lists workspace roots the user allows installs into.
	// Only the user file can set it.
	TrustedWorkspaces      []string `yaml:"trustedWorkspaces"`

	// Sources lists the files and env vars that contributed, in order
	Sources []string `yaml:"-"`
}

// fileConfig distinguishes "unset" from zero values in one layer
type fileConfig struct {
	Repository             *string   `yaml:"repository"`
	Ref                    *string   `yaml:"ref"`
	IndexPath              *string   `yaml:"indexPath"`
	Allowlist              *[]string `yaml:"allowlist"`
	MaxIndexBytes          *int64    `yaml:"maxIndexBytes"`
	MaxItemBytes           *int64    `yaml:"maxItemBytes"`
	MaxConcurrentDownloads *int      `yaml:"maxConcurrentDownloads"`
	Timeout                *Duration `yaml:"timeout"`
	TrustedWorkspaces      *[]string `yaml:"trustedWorkspaces"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Repository:             DefaultRepository,
		Ref:                    DefaultRef,
		IndexPath:              DefaultIndexPath,
		Allowlist:              []string{DefaultRepository},
		MaxIndexBytes:          DefaultMaxIndexBytes,
		MaxItemBytes:           DefaultMaxItemBytes,
		MaxConcurrentDownloads: DefaultConcurrency,
		Timeout:                Duration(DefaultTimeout),
	}
}

// LoadOptions controls where Load looks
type LoadOptions struct {
	WorkspaceRoot string
	// UserConfigPath overrides $XDG_CONFIG_HOME/folio/config.yaml
	UserConfigPath string
	// Getenv overrides os.Getenv
	Getenv func(string) string
}

// UserConfigPath returns $XDG_CONFIG_HOME/folio/config.yaml
func UserConfigPath() string {
	return filepath.Join(xdg.ConfigHome, ConfigDir, UserConfigFile)
}

// Load layers defaults, the user file, the project file and the environment.
// The project file cannot change the allowlist or the trusted workspaces;
// those stay per-user decisions.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	userPath := opts.UserConfigPath
	if userPath == "" {
		userPath = UserConfigPath()
	}
	user, err := readFile(userPath)
	if err != nil {
		return nil, err
	}
	if user != nil {
		cfg.apply(user, true)
		cfg.Sources = append(cfg.Sources, userPath)
	}

	if opts.WorkspaceRoot != "" {
		projectPath := filepath.Join(opts.WorkspaceRoot, ProjectConfigFile)
		project, err := readFile(projectPath)
		if err != nil {
			return nil, err
		}
		if project != nil {
			cfg.apply(project, false)
			cfg.Sources = append(cfg.Sources, projectPath)
		}
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, env := range []struct {
		name string
		dst  *string
	}{
		{EnvRepository, &cfg.Repository},
		{EnvRef, &cfg.Ref},
		{EnvIndexPath, &cfg.IndexPath},
	} {
		if v := strings.TrimSpace(getenv(env.name)); v != "" {
			*env.dst = v
			cfg.Sources = append(cfg.Sources, "$"+env.name)
		}
	}

	return cfg, nil
}

func (c *Config) apply(f *fileConfig, userLevel bool) {
	if f.Repository != nil {
		c.Repository = *f.Repository
	}
	if f.Ref != nil {
		c.Ref = *f.Ref
	}
	if f.IndexPath != nil {
		c.IndexPath = *f.IndexPath
	}
	if f.Allowlist != nil && userLevel {
		c.Allowlist = *f.Allowlist
	}
	if f.TrustedWorkspaces != nil && userLevel {
		c.TrustedWorkspaces = *f.TrustedWorkspaces
	}
	if f.MaxIndexBytes != nil {
		c.MaxIndexBytes = *f.MaxIndexBytes
	}
	if f.MaxItemBytes != nil {
		c.MaxItemBytes = *f.MaxItemBytes
	}
	if f.MaxConcurrentDownloads != nil {
		c.MaxConcurrentDownloads = *f.MaxConcurrentDownloads
	}
	if f.Timeout != nil {
		c.Timeout = *f.Timeout
	}
}

// readFile returns nil, nil when path does not exist
func readFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &fileConfig{}, nil
	}

	if err := validateSchema(path, data); err != nil {
		return nil, err
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &f, nil
}

// validateSchema checks a YAML document against the embedded JSON schema.
// YAML is converted through JSON so the validator sees plain JSON types.
func validateSchema(path string, data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc == nil {
		return nil // comments only
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	var value any
	if err := json.Unmarshal(asJSON, &value); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	compiler := jsonschema.NewCompiler()
	const id = "inmemory://folio/config.schema.json"
	if err := compiler.AddResource(id, bytes.NewReader(configSchema)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(id)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := compiled.Validate(value); err != nil {
		return fmt.Errorf("%s: invalid configuration: %w", path, err)
	}
	return nil
}

// Repo parses the configured repository
func (c *Config) Repo() (source.Repo, error) {
	return source.ParseRepo(c.Repository)
}

// Validate checks the repository format, the ref, the allowlist and limits
func (c *Config) Validate() error {
	repo, err := c.Repo()
	if err != nil {
		return err
	}
	if err := source.ValidateRef(c.Ref); err != nil {
		return err
	}
	if err := repo.CheckAllowed(c.Allowlist); err != nil {
		return err
	}
	if err := checkIndexPath(c.IndexPath); err != nil {
		return err
	}
	if c.MaxConcurrentDownloads < 1 || c.MaxConcurrentDownloads > MaxConcurrency {
		return fmt.Errorf("maxConcurrentDownloads must be between 1 and %d, got %d", MaxConcurrency, c.MaxConcurrentDownloads)
	}
	if c.MaxIndexBytes <= 0 || c.MaxItemBytes <= 0 {
		return errors.New("maxIndexBytes and maxItemBytes must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

func checkIndexPath(p string) error {
	clean := filepath.ToSlash(filepath.Clean(p))
	if p == "" || strings.HasPrefix(clean, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: indexPath %q", artifact.ErrPathTraversal, p)
	}
	return nil
}

// Trusts reports whether workspaceRoot is listed in trustedWorkspaces.
// Relative entries never match.
func (c *Config) Trusts(workspaceRoot string) bool {
	if workspaceRoot == "" {
		return false
	}
	want := canonical(workspaceRoot)
	for _, p := range c.TrustedWorkspaces {
		if filepath.IsAbs(p) && canonical(p) == want {
			return true
		}
	}
	return false
}

func canonical(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}

// TrustGate reports whether installs may write into a workspace. Trust comes
// from the --trust flag or the user's trustedWorkspaces list, never from a
// file inside the workspace itself.
func (c *Config) TrustGate(flag bool) func(workspaceRoot string) bool {
	return func(root string) bool {
		return flag || c.Trusts(root)
	}
}
