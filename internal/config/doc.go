// Package config loads the client configuration from a TOML file.
//
// Values support ${VAR} environment expansion, durations are written as
// strings ("30s", "2m") and parsed at load time, and every field has a
// working default so running without a config file points at a local
// service. Validation failures name the offending key.
package config
