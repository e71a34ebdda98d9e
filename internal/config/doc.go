// Package config provides the snapctl configuration.
//
//   - spec.go: Config struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation (engine names, ranges, data directory)
//   - sanitize.go: Masking of secrets before logging
//   - load.go: Layered loading through internal/infra/confloader
//
// Sources are merged as defaults, then the YAML file, then TRAJSNAP_*
// environment variables, then command-line flags.
package config
