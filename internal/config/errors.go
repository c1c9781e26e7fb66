package config

import "errors"

// Configuration validation errors returned by Config.Validate and friends.
var (
	// ErrNoDataDir is returned when no data directory could be determined.
	ErrNoDataDir = errors.New("no data directory: set --data-dir or CIVICMAP_DATA_DIR")

	// ErrNoAddr is returned when the server has no listen address.
	ErrNoAddr = errors.New("no listen address: set --addr or CIVICMAP_ADDR")

	// ErrInvalidTimeout is returned when a server timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxConnections is returned when the connection cap is not positive.
	ErrInvalidMaxConnections = errors.New("invalid max connections: must be positive")

	// ErrInvalidConcurrency is returned when batch concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidOwnerWindow is returned when the owner window is negative.
	// Zero is allowed and disables owner close and delete.
	ErrInvalidOwnerWindow = errors.New("invalid owner window: must be non-negative")

	// ErrInvalidClusterThreshold is returned when the clustering distance is not positive.
	ErrInvalidClusterThreshold = errors.New("invalid cluster threshold: must be positive")

	// ErrInvalidMaxImageSize is returned when the upload limit is not positive.
	ErrInvalidMaxImageSize = errors.New("invalid max image size: must be positive")

	// ErrInvalidTokenTTL is returned when the token lifetime is not positive.
	ErrInvalidTokenTTL = errors.New("invalid token ttl: must be positive")

	// ErrNoTokenSecret is returned when a command that handles tokens has
	// no signing secret.
	ErrNoTokenSecret = errors.New("no token secret: set CIVICMAP_TOKEN_SECRET or identity.tokenSecret in the config file")

	// ErrShortTokenSecret is returned when the signing secret is too short.
	ErrShortTokenSecret = errors.New("token secret too short: use at least 16 bytes")

	// ErrUnknownTransitionPreset is returned for an unknown preset name.
	ErrUnknownTransitionPreset = errors.New("unknown transition preset (supported: unrestricted, forward-only)")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
