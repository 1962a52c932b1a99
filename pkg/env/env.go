package env

import "os"

// Process-level switches read outside of config.Load.
const (
	LogFormat  = "AUTOPARTS_LOG_FORMAT"
	InstanceID = "AUTOPARTS_INSTANCE_ID"
)

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
