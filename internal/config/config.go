package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/civicmap/internal/cluster"
	"github.com/nao1215/civicmap/internal/identity"
	"github.com/nao1215/civicmap/internal/imagestore"
	"github.com/nao1215/civicmap/internal/lifecycle"
	"github.com/nao1215/civicmap/internal/pipeline"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "civicmap"

	// DefaultAddr is the listen address of the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// DefaultMaxConnections caps simultaneous client connections.
	DefaultMaxConnections = 256

	// DefaultReadTimeout bounds reading a whole request, image uploads
	// included.
	DefaultReadTimeout = 30 * time.Second

	// DefaultWriteTimeout bounds writing a response.
	DefaultWriteTimeout = 30 * time.Second

	// DefaultShutdownTimeout is how long in-flight requests get to finish
	// after a shutdown signal.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultTokenTTL is the lifetime of tokens minted by the token command.
	DefaultTokenTTL = 24 * time.Hour

	// PresetUnrestricted allows every status transition.
	PresetUnrestricted = "unrestricted"

	// PresetForwardOnly forbids leaving terminal states and moving backwards
	// other than reopening a resolved report.
	PresetForwardOnly = "forward-only"
)

// Config holds all configuration options. It is populated once at startup
// and passed to components explicitly.
type Config struct {
	// ConfigFilePath is the YAML file to load. If empty, .civicmap is
	// searched in the current directory and then the home directory.
	ConfigFilePath string

	// DataDir holds the SQLite database. Defaults to the XDG data directory
	// (~/.local/share/civicmap on Linux).
	DataDir string `env:"DATA_DIR"`

	// ImageDir holds uploaded images. Defaults to DataDir/images.
	ImageDir string `env:"IMAGE_DIR"`

	// Addr is the HTTP listen address in "host:port" format.
	Addr string `env:"ADDR"`

	// MaxConnections caps simultaneous client connections.
	MaxConnections int `env:"MAX_CONNECTIONS"`

	ReadTimeout     time.Duration `env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`

	// CORSOrigins lists browser origins allowed to call the API.
	// Empty disables CORS headers.
	CORSOrigins []string `env:"CORS_ORIGINS"`

	// TokenSecret signs and verifies bearer tokens (HS256). Required by the
	// serve and token commands.
	TokenSecret string `env:"TOKEN_SECRET"`

	// TokenTTL is the lifetime of minted tokens.
	TokenTTL time.Duration `env:"TOKEN_TTL"`

	// OwnerWindow is how long after creation a citizen may close or delete
	// their own report.
	OwnerWindow time.Duration `env:"OWNER_WINDOW"`

	// TransitionPreset selects a built-in transition table. Ignored when
	// Transitions is set.
	TransitionPreset string `env:"TRANSITIONS"`

	// Transitions is an explicit table of allowed status changes, keyed by
	// source status. Only settable from the configuration file.
	Transitions map[string][]string

	// ClusterThresholdKM is the heatmap clustering distance.
	ClusterThresholdKM float64 `env:"CLUSTER_THRESHOLD_KM"`

	// Concurrency bounds parallel nearby queries in batch mode.
	Concurrency int `env:"CONCURRENCY"`

	// MaxImageSize is the largest accepted upload in bytes.
	MaxImageSize int64 `env:"MAX_IMAGE_SIZE"`

	// Verbose enables debug logging.
	Verbose bool `env:"VERBOSE"`

	// JSONLog switches log output to JSON.
	JSONLog bool `env:"JSON_LOG"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	dataDir := XDGDataDir()
	return &Config{
		DataDir:            dataDir,
		ImageDir:           filepath.Join(dataDir, "images"),
		Addr:               DefaultAddr,
		MaxConnections:     DefaultMaxConnections,
		ReadTimeout:        DefaultReadTimeout,
		WriteTimeout:       DefaultWriteTimeout,
		ShutdownTimeout:    DefaultShutdownTimeout,
		TokenTTL:           DefaultTokenTTL,
		OwnerWindow:        lifecycle.DefaultOwnerWindow,
		TransitionPreset:   PresetUnrestricted,
		ClusterThresholdKM: cluster.DefaultThresholdKM,
		Concurrency:        pipeline.DefaultConcurrency,
		MaxImageSize:       imagestore.DefaultMaxSize,
	}
}

// XDGDataDir returns the XDG data directory for civicmap.
// On Linux: ~/.local/share/civicmap
// On macOS: ~/Library/Application Support/civicmap
// On Windows: %LOCALAPPDATA%\civicmap
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for civicmap.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// SetDataDir changes DataDir and, when ImageDir still points inside the
// previous data directory, moves ImageDir along with it.
func (c *Config) SetDataDir(dir string) {
	if c.ImageDir == filepath.Join(c.DataDir, "images") {
		c.ImageDir = filepath.Join(dir, "images")
	}
	c.DataDir = dir
}

// TransitionTable builds the lifecycle transition table from the
// configuration. An explicit table wins over the preset.
func (c *Config) TransitionTable() (lifecycle.TransitionTable, error) {
	if len(c.Transitions) > 0 {
		return lifecycle.ParseTransitionTable(c.Transitions)
	}
	switch c.TransitionPreset {
	case PresetUnrestricted, "":
		return nil, nil
	case PresetForwardOnly:
		return lifecycle.ForwardOnly(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransitionPreset, c.TransitionPreset)
	}
}

// Validate checks the settings every command relies on and returns the
// first problem found.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return ErrNoDataDir
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxConnections <= 0 {
		return ErrInvalidMaxConnections
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.OwnerWindow < 0 {
		return ErrInvalidOwnerWindow
	}
	if c.ClusterThresholdKM <= 0 {
		return ErrInvalidClusterThreshold
	}
	if c.MaxImageSize <= 0 {
		return ErrInvalidMaxImageSize
	}
	if c.TokenTTL <= 0 {
		return ErrInvalidTokenTTL
	}
	if _, err := c.TransitionTable(); err != nil {
		return err
	}
	return nil
}

// ValidateServe additionally requires what the HTTP server needs.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Addr == "" {
		return ErrNoAddr
	}
	return c.ValidateSecret()
}

// ValidateSecret checks the token signing secret.
func (c *Config) ValidateSecret() error {
	if c.TokenSecret == "" {
		return ErrNoTokenSecret
	}
	if len(c.TokenSecret) < identity.MinSecretLength {
		return ErrShortTokenSecret
	}
	return nil
}
