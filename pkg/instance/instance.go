package instance

import "os"

// GetID returns the process instance identifier reported by health checks.
func GetID() string {
	if id := os.Getenv("PRODUCTFEED_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "productfeed-0"
}
