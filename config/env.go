// Package config reads the NYTRIX_* environment into typed settings.
package config

// This file contains the environment lookup helpers shared by all settings.

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Env looks up an environment variable.
type Env func(key string) (string, bool)

// OSEnv reads the process environment.
func OSEnv() Env {
	return os.LookupEnv
}

// MapEnv reads from a fixed map, mostly useful in tests.
func MapEnv(m map[string]string) Env {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// Reader parses values from an Env. Malformed values fall back to the
// default and are reported as warnings.
type Reader struct {
	env    Env
	logger zerolog.Logger
}

func NewReader(env Env, logger zerolog.Logger) Reader {
	if env == nil {
		env = OSEnv()
	}
	return Reader{env: env, logger: logger}
}

// Lookup returns the trimmed value and whether the variable is set.
func (r Reader) Lookup(key string) (string, bool) {
	v, ok := r.env(key)
	return strings.TrimSpace(v), ok
}

// Has reports whether key is set, even to an empty value.
func (r Reader) Has(key string) bool {
	_, ok := r.env(key)
	return ok
}

// String returns the trimmed value of key or def when unset or empty.
func (r Reader) String(key, def string) string {
	if v, _ := r.Lookup(key); v != "" {
		return v
	}
	return def
}

// Bool parses 1/true/yes/on/y and 0/false/no/off/n.
func (r Reader) Bool(key string, def bool) bool {
	v, _ := r.Lookup(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on", "y":
		return true
	case "0", "false", "no", "off", "n":
		return false
	}
	r.logger.Warn().Str("key", key).Str("value", v).Bool("default", def).Msg("Ignoring malformed boolean")
	return def
}

// Int parses an integer. Values that fail to parse fall back to def, values
// below minimum are raised to minimum.
func (r Reader) Int(key string, def, minimum int) int {
	v, _ := r.Lookup(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.logger.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("Ignoring malformed integer")
		return def
	}
	return max(n, minimum)
}

// Positive parses an integer that must be > 0, otherwise def is used.
func (r Reader) Positive(key string, def int) int {
	v, _ := r.Lookup(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		r.logger.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("Ignoring invalid positive integer")
		return def
	}
	return n
}
