package jobinfo

import (
	"fmt"
	"strings"
)

// SupportedDrivers lists the available Repository backends.
var SupportedDrivers = []string{"bbolt", "json"}

// NewRepository creates a Repository backed by the named driver.
//
//   - "bbolt": BoltDB-backed, recommended for production.
//   - "json": JSON file-backed, suitable for testing and small deployments.
func NewRepository(driver, path string) (Repository, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))

	if path == "" {
		return nil, fmt.Errorf("repository path is required")
	}

	switch driver {
	case "bbolt":
		return NewBoltRepository(path)
	case "json":
		return NewJSONRepository(path)
	default:
		return nil, fmt.Errorf("unsupported repository driver: %s (supported: %v)", driver, SupportedDrivers)
	}
}
