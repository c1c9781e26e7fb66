// Package config provides the configuration of civicmap: server settings,
// storage locations, identity and lifecycle policy.
//
// Values are layered, later layers winning:
//  1. NewConfig defaults
//  2. the optional YAML file (.civicmap in the working or home directory)
//  3. CIVICMAP_* environment variables
//  4. command-line flags, applied by the cmd package
package config
