// Package config loads and validates the shadowsync agent configuration.
//
// Configuration comes from a YAML file with hardcoded defaults underneath
// and SHADOWSYNC_* environment variable overrides on top. Load returns a
// fully validated Config; every other package receives its own section by
// value and never reads files or the environment itself.
package config
