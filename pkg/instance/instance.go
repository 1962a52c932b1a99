package instance

import (
	"os"

	"github.com/angelmondragon/autoparts-backend/pkg/env"
)

// GetID returns the process instance identifier, falling back to the hostname.
func GetID() string {
	if id := env.Get(env.InstanceID, ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "instance-0"
}
