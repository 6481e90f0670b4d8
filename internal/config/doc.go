// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Exchange credentials are deliberately excluded: they are read from the
// environment by internal/auth.
package config
