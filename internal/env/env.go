package env

import (
	"os"
	"strconv"
)

// Get retrieves an environment variable
func Get(key string) (string, bool) {
	value := os.Getenv(key)
	if value == "" {
		return "", false
	}
	return value, true
}

// GetOrDefault retrieves an environment variable with a default value
func GetOrDefault(key, defaultValue string) string {
	if value, ok := Get(key); ok {
		return value
	}
	return defaultValue
}

// GetBool retrieves a boolean environment variable. Unset or unparsable
// values read as false.
func GetBool(key string) bool {
	value, ok := Get(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return b
}
