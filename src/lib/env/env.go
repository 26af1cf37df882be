package env

import "os"

// Environment selects behavior that differs between a deployed worker and a
// local run, currently just the log output format.
type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
)

// Get reads TRACKMUX_ENV, defaulting to Development when unset.
func Get() Environment {
	switch os.Getenv("TRACKMUX_ENV") {
	case "":
		return Development
	case string(Production):
		return Production
	case string(Development):
		return Development
	default:
		panic("Invalid environment is set")
	}
}
