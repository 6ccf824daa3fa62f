// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// After the file is loaded, PRICESTREAM_* environment variables (and a .env
// file, if present) override individual keys. Configuration is resolved once
// at startup; nothing re-reads it while the process runs.
package config
