package buildinfo

import "fmt"

// Set at link time with -ldflags "-X".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	return fmt.Sprintf("weather-now %s (commit=%s, date=%s)", Version, Commit, Date)
}
