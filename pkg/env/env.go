// Package env reads process environment values that are needed before the
// envconfig-backed configuration is loaded.
package env

import (
	"os"
	"strconv"
	"strings"
)

// Get returns the value of key, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	if val, ok := First(key); ok {
		return val
	}
	return fallback
}

// First returns the first non-blank value among keys. Later keys act as
// legacy aliases for earlier ones.
func First(keys ...string) (string, bool) {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val, true
		}
	}
	return "", false
}

// Bool parses key with strconv.ParseBool. Unparseable values yield fallback.
func Bool(key string, fallback bool) bool {
	val, ok := First(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
