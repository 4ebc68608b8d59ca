// Package projectconfig provides the ProjectConfig struct and loader for
// .council.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up by Load.
const FileName = ".council.yaml"

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultProvider = "copilot"

	DefaultCacheBackend   = "file"
	DefaultCacheDir       = ".council-cache"
	DefaultBlobContainer  = "council-cache"
	DefaultEventDir       = ".council-events"

	DefaultServiceName = "consensus-council"
)

// Cache backends.
const (
	CacheBackendNone   = "none"
	CacheBackendMemory = "memory"
	CacheBackendFile   = "file"
	CacheBackendBlob   = "blob"
)

// CacheConfig selects and configures the result cache.
type CacheConfig struct {
	Backend   string `yaml:"backend,omitempty"`
	Dir       string `yaml:"dir,omitempty"`
	BlobURL   string `yaml:"blob_url,omitempty"`
	Container string `yaml:"container,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
}

// EventsConfig controls the NDJSON event log.
type EventsConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// TelemetryConfig enables OpenTelemetry tracing when Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty"`
	ServiceName string `yaml:"service_name,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .council.yaml.
type ProjectConfig struct {
	// Provider is "copilot" or "scripted".
	Provider  string          `yaml:"provider,omitempty"`
	Templates string          `yaml:"templates,omitempty"`
	Cache     CacheConfig     `yaml:"cache,omitempty"`
	Events    EventsConfig    `yaml:"events,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`

	// Orchestrator holds config.Options keys, decoded by config.Decode.
	Orchestrator map[string]any `yaml:"orchestrator,omitempty"`

	// Dir is the directory the file was found in, empty when none was.
	Dir string `yaml:"-"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Provider: DefaultProvider,
		Cache: CacheConfig{
			Backend:   DefaultCacheBackend,
			Dir:       DefaultCacheDir,
			Container: DefaultBlobContainer,
		},
		Events: EventsConfig{
			Enabled: boolPtr(false),
		},
		Telemetry: TelemetryConfig{
			ServiceName: DefaultServiceName,
		},
		Orchestrator: map[string]any{},
	}
}

// Load finds .council.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, dir, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	mergeConfig(cfg, &fileCfg)
	cfg.Dir = dir
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Join(dir, FileName), err)
	}
	return cfg, nil
}

// Resolve makes p absolute relative to the directory the config came from.
func (c *ProjectConfig) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

func (c *ProjectConfig) validate() error {
	switch c.Cache.Backend {
	case CacheBackendNone, CacheBackendMemory, CacheBackendFile:
	case CacheBackendBlob:
		if c.Cache.BlobURL == "" {
			return errors.New("cache.blob_url is required for the blob backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Provider {
	case "copilot", "scripted":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	return nil
}

// findConfigFile walks up from dir looking for .council.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found.
func findConfigFile(dir string) ([]byte, string, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, dir, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, "", os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	if src.Provider != "" {
		dst.Provider = src.Provider
	}
	if src.Templates != "" {
		dst.Templates = src.Templates
	}

	if src.Cache.Backend != "" {
		dst.Cache.Backend = src.Cache.Backend
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}
	if src.Cache.BlobURL != "" {
		dst.Cache.BlobURL = src.Cache.BlobURL
	}
	if src.Cache.Container != "" {
		dst.Cache.Container = src.Cache.Container
	}
	if src.Cache.Prefix != "" {
		dst.Cache.Prefix = src.Cache.Prefix
	}

	if src.Events.Enabled != nil {
		dst.Events.Enabled = src.Events.Enabled
	}
	if src.Events.Path != "" {
		dst.Events.Path = src.Events.Path
	}

	if src.Telemetry.Endpoint != "" {
		dst.Telemetry.Endpoint = src.Telemetry.Endpoint
	}
	if src.Telemetry.ServiceName != "" {
		dst.Telemetry.ServiceName = src.Telemetry.ServiceName
	}

	for k, v := range src.Orchestrator {
		dst.Orchestrator[k] = v
	}
}

func boolPtr(b bool) *bool {
	return &b
}
