package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".civicmap"

// EnvPrefix prefixes every environment override, e.g. CIVICMAP_ADDR.
const EnvPrefix = "CIVICMAP_"

// File represents the structure of the .civicmap configuration file.
// Zero values leave the corresponding setting untouched.
type File struct {
	// DataDir overrides the XDG data directory.
	DataDir string `yaml:"dataDir,omitempty"`

	// ImageDir overrides DataDir/images.
	ImageDir string `yaml:"imageDir,omitempty"`

	Server    ServerFile    `yaml:"server,omitempty"`
	Identity  IdentityFile  `yaml:"identity,omitempty"`
	Lifecycle LifecycleFile `yaml:"lifecycle,omitempty"`
	Heatmap   HeatmapFile   `yaml:"heatmap,omitempty"`
}

// ServerFile holds HTTP server settings.
type ServerFile struct {
	Addr            string        `yaml:"addr,omitempty"`
	MaxConnections  int           `yaml:"maxConnections,omitempty"`
	ReadTimeout     time.Duration `yaml:"readTimeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"writeTimeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"`
	CORSOrigins     []string      `yaml:"corsOrigins,omitempty"`
	MaxImageSize    int64         `yaml:"maxImageSize,omitempty"`
}

// IdentityFile holds token settings.
type IdentityFile struct {
	TokenSecret string        `yaml:"tokenSecret,omitempty"`
	TokenTTL    time.Duration `yaml:"tokenTTL,omitempty"`
}

// LifecycleFile holds report lifecycle policy.
type LifecycleFile struct {
	// OwnerWindow is a pointer so that an explicit 0s can disable owner
	// close and delete.
	OwnerWindow *time.Duration `yaml:"ownerWindow,omitempty"`

	// Preset is "unrestricted" or "forward-only".
	Preset string `yaml:"preset,omitempty"`

	// Transitions maps a source status to the statuses it may move to.
	Transitions map[string][]string `yaml:"transitions,omitempty"`
}

// HeatmapFile holds nearby query settings.
type HeatmapFile struct {
	ClusterThresholdKM float64 `yaml:"clusterThresholdKM,omitempty"`
	Concurrency        int     `yaml:"concurrency,omitempty"`
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
//  1. If configPath is specified, use it directly
//  2. Look for .civicmap in the current directory
//  3. Look for .civicmap in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// ApplyFile copies every non-zero setting of f into c.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	if f.DataDir != "" {
		c.SetDataDir(f.DataDir)
	}
	if f.ImageDir != "" {
		c.ImageDir = f.ImageDir
	}

	setString(&c.Addr, f.Server.Addr)
	setInt(&c.MaxConnections, f.Server.MaxConnections)
	setDuration(&c.ReadTimeout, f.Server.ReadTimeout)
	setDuration(&c.WriteTimeout, f.Server.WriteTimeout)
	setDuration(&c.ShutdownTimeout, f.Server.ShutdownTimeout)
	if len(f.Server.CORSOrigins) > 0 {
		c.CORSOrigins = f.Server.CORSOrigins
	}
	if f.Server.MaxImageSize != 0 {
		c.MaxImageSize = f.Server.MaxImageSize
	}

	setString(&c.TokenSecret, f.Identity.TokenSecret)
	setDuration(&c.TokenTTL, f.Identity.TokenTTL)

	if f.Lifecycle.OwnerWindow != nil {
		c.OwnerWindow = *f.Lifecycle.OwnerWindow
	}
	setString(&c.TransitionPreset, f.Lifecycle.Preset)
	if len(f.Lifecycle.Transitions) > 0 {
		c.Transitions = f.Lifecycle.Transitions
	}

	if f.Heatmap.ClusterThresholdKM != 0 {
		c.ClusterThresholdKM = f.Heatmap.ClusterThresholdKM
	}
	setInt(&c.Concurrency, f.Heatmap.Concurrency)
}

// ApplyEnv overrides c with CIVICMAP_* variables from the process
// environment.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(nil)
}

// applyEnv reads overrides from environ, or from the process environment
// when environ is nil.
func (c *Config) applyEnv(environ map[string]string) error {
	dataDir, imageDir := c.DataDir, c.ImageDir
	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	if c.DataDir != dataDir && c.ImageDir == imageDir {
		newDir := c.DataDir
		c.DataDir = dataDir
		c.SetDataDir(newDir)
	}
	return nil
}

// Load builds a Config from defaults, the configuration file and the
// environment. A missing file is only an error when configPath was given
// explicitly.
func Load(configPath string) (*Config, error) {
	cfg := NewConfig()
	cfg.ConfigFilePath = configPath

	if path := FindConfigFile(configPath); path != "" {
		f, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg.ApplyFile(f)
		cfg.ConfigFilePath = path
	} else if configPath != "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
