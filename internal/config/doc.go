// Package config loads and validates gateway configuration from YAML
// files. Environment variables in the form ${VAR} are expanded before
// parsing, so secrets like API keys and database passwords can stay out
// of the file itself.
package config
